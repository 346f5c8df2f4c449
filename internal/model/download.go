// Package model fetches pre-exported ONNX artifacts from Hugging Face for
// use with --skip-export.
package model

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const DefaultBaseURL = "https://huggingface.co"

type DownloadOptions struct {
	Repo     string
	Revision string
	Files    []string
	// SHA256 maps file names to expected checksums.
	SHA256  map[string]string
	OutDir  string
	HFToken string
	// BaseURL overrides the Hugging Face endpoint (mirrors, tests).
	BaseURL string
	// Progress enables periodic byte-count lines while streaming.
	Progress bool
	Stdout   io.Writer
	Stderr  io.Writer
}

type AccessDeniedError struct {
	Repo string
	Msg  string
}

func (e *AccessDeniedError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return fmt.Sprintf("access denied for %s", e.Repo)
}

type lockManifest struct {
	Generated string                `json:"generated"`
	Files     map[string]lockRecord `json:"files"`
}

// lockRecord pins one local file to the repo and revision it came from.
type lockRecord struct {
	Repo     string `json:"repo"`
	Revision string `json:"revision"`
	SHA256   string `json:"sha256"`
}

func (r lockRecord) matches(repo string, f ModelFile) bool {
	return r.Repo == repo && r.Revision == f.Revision && isSHA256Hex(r.SHA256)
}

const lockFileName = "download-manifest.lock.json"

var shaHexPattern = regexp.MustCompile(`(?i)^[a-f0-9]{64}$`)

type hfClient struct {
	http    *http.Client
	baseURL string
}

func newHFClient(baseURL string) *hfClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &hfClient{http: &http.Client{}, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// Download fetches each file into OutDir and returns the local paths in
// manifest order. Files whose local copy already matches are skipped.
func Download(ctx context.Context, opts DownloadOptions) ([]string, error) {
	if opts.OutDir == "" {
		return nil, errors.New("out dir is required")
	}
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}

	manifest, err := BuildManifest(opts.Repo, opts.Revision, opts.Files, opts.SHA256)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("create out dir: %w", err)
	}

	lockPath := filepath.Join(opts.OutDir, lockFileName)
	lock := readLockManifest(lockPath)

	// record pins a verified file and persists the lock right away so an
	// error on a later file keeps what was already checked.
	record := func(f ModelFile, sum string) error {
		lock.Files[f.Filename] = lockRecord{Repo: manifest.Repo, Revision: f.Revision, SHA256: sum}
		lock.Generated = time.Now().UTC().Format(time.RFC3339)
		return writeLockManifest(lockPath, lock)
	}

	progress := io.Discard
	if opts.Progress {
		progress = opts.Stdout
	}

	client := newHFClient(opts.BaseURL)
	paths := make([]string, 0, len(manifest.Files))

	for _, f := range manifest.Files {
		expected := f.SHA256
		if expected == "" {
			if lr, ok := lock.Files[f.Filename]; ok && lr.matches(manifest.Repo, f) {
				expected = strings.ToLower(lr.SHA256)
			} else {
				expected, err = client.resolveChecksum(ctx, manifest.Repo, f, opts.HFToken)
				if err != nil {
					return nil, err
				}
			}
		}

		localPath := filepath.Join(opts.OutDir, filepath.FromSlash(f.Filename))
		if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
			return nil, fmt.Errorf("create local subdir: %w", err)
		}
		paths = append(paths, localPath)

		if ok, err := existingMatches(localPath, expected); err != nil {
			return nil, err
		} else if ok {
			fmt.Fprintf(opts.Stdout, "skip %s (checksum match)\n", f.Filename)
			if err := record(f, expected); err != nil {
				return nil, err
			}
			continue
		}

		fmt.Fprintf(opts.Stdout, "download %s/%s@%s -> %s\n", manifest.Repo, f.Filename, f.Revision, localPath)
		actual, err := client.download(ctx, manifest.Repo, f, opts.HFToken, localPath, progress)
		if err != nil {
			return nil, err
		}
		if actual != expected {
			_ = os.Remove(localPath)
			return nil, fmt.Errorf("checksum mismatch for %s: expected %s got %s", f.Filename, expected, actual)
		}
		fmt.Fprintf(opts.Stdout, "verified %s (sha256=%s)\n", f.Filename, actual)
		if err := record(f, expected); err != nil {
			return nil, err
		}
	}

	fmt.Fprintf(opts.Stdout, "wrote lock manifest: %s\n", lockPath)
	return paths, nil
}

func existingMatches(path, expected string) (bool, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat existing file: %w", err)
	}
	if fi.IsDir() {
		return false, fmt.Errorf("expected file at %s, found directory", path)
	}
	actual, err := fileSHA256(path)
	if err != nil {
		return false, err
	}
	return actual == expected, nil
}

func (c *hfClient) download(ctx context.Context, repo string, file ModelFile, token, outPath string, progress io.Writer) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolveURL(repo, file), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	setAuth(req, token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", accessDenied(repo)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("download failed for %s: %s", file.Filename, resp.Status)
	}

	tmp := outPath + ".tmp"
	fh, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	h := sha256.New()
	counter := &progressWriter{w: progress, total: resp.ContentLength}
	if _, err := io.Copy(io.MultiWriter(fh, h, counter), resp.Body); err != nil {
		_ = fh.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("download %s: %w", file.Filename, err)
	}

	if err := fh.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp, outPath); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("move temp file into place: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// progressWriter counts bytes and prints a line to w at most every 700ms.
type progressWriter struct {
	w       io.Writer
	total   int64
	written int64
	last    time.Time
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.written += int64(len(b))
	if time.Since(p.last) < 700*time.Millisecond {
		return len(b), nil
	}
	p.last = time.Now()
	if p.total > 0 {
		fmt.Fprintf(p.w, "  progress: %.1f%% (%d/%d bytes)\n", float64(p.written)*100/float64(p.total), p.written, p.total)
	} else {
		fmt.Fprintf(p.w, "  progress: %d bytes\n", p.written)
	}
	return len(b), nil
}

// resolveChecksum reads the sha256 that Hugging Face publishes for LFS files
// in the X-Linked-Etag header of a HEAD request.
func (c *hfClient) resolveChecksum(ctx context.Context, repo string, f ModelFile, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.resolveURL(repo, f), nil)
	if err != nil {
		return "", fmt.Errorf("build metadata request: %w", err)
	}
	setAuth(req, token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("metadata request failed for %s: %w", f.Filename, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", accessDenied(repo)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 399 {
		return "", fmt.Errorf("metadata request failed for %s: %s", f.Filename, resp.Status)
	}

	for _, key := range []string{"X-Linked-Etag", "Etag"} {
		if v := normalizeETag(resp.Header.Get(key)); isSHA256Hex(v) {
			return strings.ToLower(v), nil
		}
	}

	return "", fmt.Errorf("unable to resolve sha256 metadata for %s; pass --sha256 %s=<hex>", f.Filename, f.Filename)
}

func (c *hfClient) resolveURL(repo string, file ModelFile) string {
	return fmt.Sprintf("%s/%s/resolve/%s/%s", c.baseURL, repo, file.Revision, file.Filename)
}

func accessDenied(repo string) error {
	return &AccessDeniedError{
		Repo: repo,
		Msg:  fmt.Sprintf("access denied for %s; provide HF_TOKEN or --hf-token", repo),
	}
}

func setAuth(req *http.Request, token string) {
	if token == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)
}

func normalizeETag(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "W/")
	v = strings.Trim(v, "\"")
	return v
}

func isSHA256Hex(v string) bool {
	return shaHexPattern.MatchString(v)
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file for checksum: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("read file for checksum: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func readLockManifest(path string) lockManifest {
	out := lockManifest{Files: map[string]lockRecord{}}
	b, err := os.ReadFile(path)
	if err != nil {
		return out
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return lockManifest{Files: map[string]lockRecord{}}
	}
	if out.Files == nil {
		out.Files = map[string]lockRecord{}
	}
	return out
}

func writeLockManifest(path string, lock lockManifest) error {
	b, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return fmt.Errorf("encode lock manifest: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write lock manifest: %w", err)
	}
	return nil
}
