package sz_test

import (
	"context"
	"math"
	"testing"

	"github.com/cuszgo/sz"
	"github.com/cuszgo/sz/predictor"
)

func TestAbsModeRoundTrip(t *testing.T) {
	dims := predictor.Dims{X: 2048, Y: 1, Z: 1}
	input := make([]float64, dims.N())
	for i := range input {
		input[i] = math.Cos(float64(i) * 0.02)
	}
	cfg := sz.Config{Mode: sz.Abs, Eb: 0.01, Dims: dims}

	blob, err := sz.Compress(context.Background(), cfg, input)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	_, out, err := sz.Decompress(context.Background(), blob)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	for i, s := range input {
		if math.Abs(out[i]-s) > cfg.Eb+1e-9 {
			t.Fatalf("index %d: |%v - %v| exceeds error bound", i, out[i], s)
		}
	}
}

func TestR2RModeScalesErrorBoundByRange(t *testing.T) {
	dims := predictor.Dims{X: 1024, Y: 1, Z: 1}
	input := make([]float64, dims.N())
	for i := range input {
		input[i] = float64(i%200) * 5
	}
	lo, hi := input[0], input[0]
	for _, v := range input {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	cfg := sz.Config{Mode: sz.R2R, Eb: 0.001, Dims: dims}

	blob, err := sz.Compress(context.Background(), cfg, input)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	_, out, err := sz.Decompress(context.Background(), blob)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	absEb := cfg.Eb * (hi - lo)
	for i, s := range input {
		if math.Abs(out[i]-s) > absEb+1e-9 {
			t.Fatalf("index %d: |%v - %v| exceeds scaled error bound", i, out[i], s)
		}
	}
}

func TestR2REmptyInput(t *testing.T) {
	cfg := sz.Config{Mode: sz.R2R, Eb: 0.01, Dims: predictor.Dims{X: 1, Y: 1, Z: 1}}
	if _, err := sz.Compress(context.Background(), cfg, nil); err == nil {
		t.Fatalf("expected an error for an empty input array")
	}
}
