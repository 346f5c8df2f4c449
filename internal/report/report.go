// Package report summarizes the size change between the exported and the
// quantized artifact.
package report

import (
	"errors"
	"fmt"
	"io"
)

const bytesPerMB = 1024 * 1024

// Summary holds the measured artifact sizes.
type Summary struct {
	OriginalBytes  int64
	QuantizedBytes int64
	Output         string
}

func NewSummary(original, quantized int64, output string) (Summary, error) {
	if original <= 0 {
		return Summary{}, errors.New("original artifact is empty; cannot compute size reduction")
	}
	if quantized < 0 {
		return Summary{}, fmt.Errorf("invalid quantized size %d", quantized)
	}
	return Summary{OriginalBytes: original, QuantizedBytes: quantized, Output: output}, nil
}

// Reduction is the size saved by quantization as a percentage of the original.
func (s Summary) Reduction() float64 {
	return (1 - float64(s.QuantizedBytes)/float64(s.OriginalBytes)) * 100
}

func (s Summary) OriginalMB() float64  { return float64(s.OriginalBytes) / bytesPerMB }
func (s Summary) QuantizedMB() float64 { return float64(s.QuantizedBytes) / bytesPerMB }

func (s Summary) Write(w io.Writer) error {
	_, err := fmt.Fprintf(w,
		"\nDone!\n"+
			"  Original:   %.1f MB\n"+
			"  Quantized:  %.1f MB\n"+
			"  Reduction:  %.1f%%\n"+
			"  Output:     %s\n",
		s.OriginalMB(), s.QuantizedMB(), s.Reduction(), s.Output)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
