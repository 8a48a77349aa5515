package szerr_test

import (
	"errors"
	"testing"

	"github.com/cuszgo/sz/szerr"
)

func TestWrapIs(t *testing.T) {
	base := errors.New("boom")
	err := szerr.Wrap(szerr.CapacityExceeded, "gather", base)
	if !errors.Is(err, szerr.CapacityExceeded) {
		t.Fatalf("expected errors.Is to match CapacityExceeded, got %v", err)
	}
	if errors.Is(err, szerr.HeaderInvalid) {
		t.Fatalf("did not expect errors.Is to match HeaderInvalid")
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected the wrapped error to remain in the chain")
	}
}

func TestWrapNil(t *testing.T) {
	if err := szerr.Wrap(szerr.ConfigInvalid, "unused", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestNewf(t *testing.T) {
	err := szerr.Newf(szerr.ConfigInvalid, "radius %d must be > 0", -1)
	if !errors.Is(err, szerr.ConfigInvalid) {
		t.Fatalf("expected ConfigInvalid, got %v", err)
	}
}
