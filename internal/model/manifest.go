package model

import (
	"fmt"
	"path"
	"strings"
)

// DefaultONNXRepo hosts a community ONNX export of Qwen3-TTS.
const DefaultONNXRepo = "zukky/Qwen3-TTS-ONNX-DLL"

type Manifest struct {
	Repo  string      `json:"repo"`
	Files []ModelFile `json:"files"`
}

type ModelFile struct {
	Filename string `json:"filename"`
	Revision string `json:"revision"`
	SHA256   string `json:"sha256"`
}

// BuildManifest pins every file of repo to revision. checksums maps a file
// name to its expected sha256; files without an entry are resolved at
// download time.
func BuildManifest(repo, revision string, files []string, checksums map[string]string) (Manifest, error) {
	if repo == "" {
		return Manifest{}, fmt.Errorf("repo is required")
	}
	if len(files) == 0 {
		return Manifest{}, fmt.Errorf("at least one file is required")
	}
	if revision == "" {
		revision = "main"
	}

	m := Manifest{Repo: repo}
	seen := make(map[string]bool, len(files))
	for _, f := range files {
		name := strings.TrimPrefix(path.Clean("/"+strings.TrimSpace(f)), "/")
		if name == "" || name == "." {
			return Manifest{}, fmt.Errorf("invalid file name %q", f)
		}
		if seen[name] {
			continue
		}
		seen[name] = true

		sum := strings.ToLower(checksums[f])
		if sum != "" && !isSHA256Hex(sum) {
			return Manifest{}, fmt.Errorf("invalid sha256 for %s: %q", name, checksums[f])
		}
		m.Files = append(m.Files, ModelFile{Filename: name, Revision: revision, SHA256: sum})
	}

	for name := range checksums {
		if !seen[name] {
			return Manifest{}, fmt.Errorf("sha256 given for %q, which is not in the file list", name)
		}
	}

	return m, nil
}
