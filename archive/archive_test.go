package archive_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/cuszgo/sz/archive"
	"github.com/cuszgo/sz/header"
	"github.com/cuszgo/sz/predictor"
	"github.com/cuszgo/sz/szerr"
)

func TestCompressDecompressRoundTrip1D(t *testing.T) {
	dims := predictor.Dims{X: 4096, Y: 1, Z: 1}
	input := make([]float64, dims.N())
	for i := range input {
		input[i] = math.Sin(float64(i)*0.01) * 100
	}
	cfg := archive.Config{Dims: dims, Eb: 0.5}

	blob, err := archive.Compress(context.Background(), cfg, input)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if len(blob) < header.Size {
		t.Fatalf("archive blob shorter than the header alone: %d bytes", len(blob))
	}

	gotCfg, out, err := archive.Decompress(context.Background(), blob)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if gotCfg.Dims != dims {
		t.Fatalf("decompressed dims %+v, want %+v", gotCfg.Dims, dims)
	}
	for i, s := range input {
		if math.Abs(out[i]-s) > cfg.Eb+1e-9 {
			t.Fatalf("index %d: |%v - %v| exceeds error bound", i, out[i], s)
		}
	}
}

func TestCompressDecompressRoundTrip3D(t *testing.T) {
	dims := predictor.Dims{X: 20, Y: 18, Z: 10}
	input := make([]float64, dims.N())
	for i := range input {
		input[i] = float64((i*13)%97) - 48
	}
	cfg := archive.Config{Dims: dims, Eb: 1.0, Radius: 128, Pardeg: 4}

	blob, err := archive.Compress(context.Background(), cfg, input)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	_, out, err := archive.Decompress(context.Background(), blob)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	for i, s := range input {
		if math.Abs(out[i]-s) > cfg.Eb+1e-9 {
			t.Fatalf("index %d: |%v - %v| exceeds error bound", i, out[i], s)
		}
	}
}

func TestCompressWithLargeOutliersForcesGatherCapacity(t *testing.T) {
	dims := predictor.Dims{X: 64, Y: 1, Z: 1}
	input := make([]float64, dims.N())
	for i := range input {
		input[i] = float64(i) * 1e9 // wildly discontinuous: almost everything becomes an outlier
	}
	cfg := archive.Config{Dims: dims, Eb: 0.001, Radius: 4, DensityFactor: 4}

	_, err := archive.Compress(context.Background(), cfg, input)
	if err == nil {
		t.Fatalf("expected a capacity-exceeded error")
	}
	if !errors.Is(err, szerr.CapacityExceeded) {
		t.Fatalf("expected szerr.CapacityExceeded, got %v", err)
	}
}

func TestDecompressTruncatedBlob(t *testing.T) {
	dims := predictor.Dims{X: 100, Y: 1, Z: 1}
	input := make([]float64, dims.N())
	cfg := archive.Config{Dims: dims, Eb: 0.1}
	blob, err := archive.Compress(context.Background(), cfg, input)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	_, _, err = archive.Decompress(context.Background(), blob[:len(blob)-1])
	if err == nil {
		t.Fatalf("expected a header-invalid error on a truncated blob")
	}
	if !errors.Is(err, szerr.HeaderInvalid) {
		t.Fatalf("expected szerr.HeaderInvalid, got %v", err)
	}
}

func TestCompressInvalidConfig(t *testing.T) {
	cases := []archive.Config{
		{Dims: predictor.Dims{X: 10, Y: 1, Z: 1}, Eb: 0},
		{Dims: predictor.Dims{X: 0, Y: 1, Z: 1}, Eb: 0.1},
	}
	for i, cfg := range cases {
		if _, err := archive.Compress(context.Background(), cfg, make([]float64, cfg.Dims.N())); err == nil {
			t.Fatalf("case %d: expected a validation error", i)
		} else if !errors.Is(err, szerr.ConfigInvalid) {
			t.Fatalf("case %d: expected szerr.ConfigInvalid, got %v", i, err)
		}
	}
}

func TestCompressLengthMismatch(t *testing.T) {
	cfg := archive.Config{Dims: predictor.Dims{X: 10, Y: 1, Z: 1}, Eb: 0.1}
	if _, err := archive.Compress(context.Background(), cfg, make([]float64, 3)); err == nil {
		t.Fatalf("expected a length-mismatch error")
	}
}

func TestConstantArrayCompressesToSmallArchive(t *testing.T) {
	dims := predictor.Dims{X: 8192, Y: 1, Z: 1}
	input := make([]float64, dims.N())
	for i := range input {
		input[i] = 7.0
	}
	cfg := archive.Config{Dims: dims, Eb: 0.01}
	blob, err := archive.Compress(context.Background(), cfg, input)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	// A constant array should compress far below the N*sizeof(T)/2 cap.
	if len(blob) >= dims.N()*8/2 {
		t.Fatalf("constant-array archive is %d bytes, expected well under the reserved cap", len(blob))
	}
}
