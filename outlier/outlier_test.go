package outlier_test

import (
	"errors"
	"testing"

	"github.com/cuszgo/sz/outlier"
	"github.com/cuszgo/sz/szerr"
)

func TestGatherScatterRoundTrip(t *testing.T) {
	n := 100
	dense := make([]float64, n)
	dense[3] = 1.5
	dense[17] = -2.25
	dense[99] = 42

	csr, err := outlier.Gather(dense, n, outlier.DefaultDensityFactor)
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(csr.Values) != 3 {
		t.Fatalf("expected 3 nonzero entries, got %d", len(csr.Values))
	}

	out := make([]float64, n)
	if err := outlier.Scatter(csr, n, out); err != nil {
		t.Fatalf("Scatter: %v", err)
	}
	for i := range dense {
		if out[i] != dense[i] {
			t.Fatalf("index %d: got %v, want %v", i, out[i], dense[i])
		}
	}
}

func TestGatherAllZero(t *testing.T) {
	n := 64
	dense := make([]float64, n)
	csr, err := outlier.Gather(dense, n, outlier.DefaultDensityFactor)
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(csr.Values) != 0 {
		t.Fatalf("expected no nonzero entries, got %d", len(csr.Values))
	}
	out := make([]float64, n)
	if err := outlier.Scatter(csr, n, out); err != nil {
		t.Fatalf("Scatter: %v", err)
	}
}

func TestGatherCapacityExceeded(t *testing.T) {
	n := 16
	dense := make([]float64, n)
	for i := range dense {
		dense[i] = float64(i + 1)
	}
	_, err := outlier.Gather(dense, n, outlier.DefaultDensityFactor)
	if err == nil {
		t.Fatalf("expected a capacity error")
	}
	if !errors.Is(err, szerr.CapacityExceeded) {
		t.Fatalf("expected szerr.CapacityExceeded, got %v", err)
	}
}

func TestScatterMalformedRowPtr(t *testing.T) {
	csr := outlier.CSR{
		M:      2,
		RowPtr: []int32{0, 5, 5},
		ColIdx: []int32{},
		Values: []float64{},
	}
	out := make([]float64, 4)
	if err := outlier.Scatter(csr, 4, out); err == nil {
		t.Fatalf("expected a malformed-rowptr error")
	} else if !errors.Is(err, szerr.HeaderInvalid) {
		t.Fatalf("expected szerr.HeaderInvalid, got %v", err)
	}
}

func TestFootprint(t *testing.T) {
	csr := outlier.CSR{M: 10, RowPtr: make([]int32, 11), ColIdx: make([]int32, 5), Values: make([]float64, 5)}
	want := int64(8 + 8 + 4*11 + 4*5 + 8*5)
	if got := csr.Footprint(); got != want {
		t.Fatalf("Footprint() = %d, want %d", got, want)
	}
}
