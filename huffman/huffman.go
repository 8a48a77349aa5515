// Package huffman implements the coarse-grained, dual-width canonical
// Huffman codec: histogram, code-book construction, chunked parallel
// encode/decode, and the runtime width fallback (4-byte codewords, retried
// at 8-byte on overflow).
//
// A canonical code book needs only per-symbol code lengths to be fully
// reconstructible (the codes themselves follow from the lengths by the
// canonical assignment rule), so the serialized blob below carries lengths
// rather than a separate (code, length) table per symbol — the same
// simplification deflate's dynamic Huffman blocks make.
package huffman

import (
	"bytes"
	"container/heap"
	"context"
	"encoding/binary"
	"runtime"

	"github.com/icza/bitio"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"

	"github.com/cuszgo/sz/szerr"
)

// MaxCodeLen returns the longest code length a widthBytes-wide codeword can
// hold: 8*W - 1 bits, reserving the top bit the way the reference codec
// does for its packed (code, length) word.
func MaxCodeLen(widthBytes int) int {
	return 8*widthBytes - 1
}

// Histogram counts occurrences of each symbol in [0, alphabetSize) using a
// pool of block-local counters reduced into one global histogram,
// mirroring the reference codec's parallel-reduce histogram stage.
func Histogram(symbols []int32, alphabetSize int) []uint32 {
	h := make([]uint32, alphabetSize)
	if len(symbols) == 0 {
		return h
	}

	workers := runtime.GOMAXPROCS(0)
	if workers < 1 {
		workers = 1
	}
	if workers > len(symbols) {
		workers = len(symbols)
	}
	chunk := (len(symbols) + workers - 1) / workers

	partials := make([][]uint32, workers)
	var wg errgroup.Group
	for w := 0; w < workers; w++ {
		w := w
		lo := w * chunk
		if lo >= len(symbols) {
			partials[w] = nil
			continue
		}
		hi := lo + chunk
		if hi > len(symbols) {
			hi = len(symbols)
		}
		wg.Go(func() error {
			local := make([]uint32, alphabetSize)
			for _, s := range symbols[lo:hi] {
				local[s]++
			}
			partials[w] = local
			return nil
		})
	}
	_ = wg.Wait() // counting never fails

	for _, local := range partials {
		for sym, c := range local {
			h[sym] += c
		}
	}
	return h
}

// Codebook is a canonical Huffman code table: per-symbol bit length, with
// codes implied by the canonical assignment rule (ascending length, then
// ascending symbol).
type Codebook struct {
	Lengths []uint8
	codes   []uint32 // derived; valid only where Lengths[sym] > 0
	maxLen  int
}

type heapNode struct {
	weight uint64
	// sym is the symbol id for a leaf (tie-break key), or -1 for an
	// internal node.
	sym         int32
	left, right *heapNode
}

func (n *heapNode) isLeaf() bool { return n.left == nil && n.right == nil }

type nodeHeap []*heapNode

func (h nodeHeap) Len() int { return len(h) }
func (h nodeHeap) Less(i, j int) bool {
	if h[i].weight != h[j].weight {
		return h[i].weight < h[j].weight
	}
	return h[i].sym < h[j].sym
}
func (h nodeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap) Push(x interface{}) { *h = append(*h, x.(*heapNode)) }
func (h *nodeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// BuildCodebook derives canonical code lengths from hist by repeated
// min-two-weight merges, the standard Huffman tree construction, then
// assigns canonical codes in ascending-length, ascending-symbol order.
// It fails with szerr.CapacityExceeded if the resulting max code length
// would exceed maxLen, signalling the caller to retry at a wider width.
//
// Depths are accumulated as plain ints and checked against maxLen before
// ever being narrowed to the Codebook's uint8 lengths: maxLen is always
// <= 63 (MaxCodeLen(8)), but an unchecked pathological tree can produce a
// depth in the hundreds, and narrowing that straight to uint8 first would
// silently wrap it into a small, wrong length that passes the maxLen gate.
func BuildCodebook(hist []uint32, maxLen int) (Codebook, error) {
	alphabetSize := len(hist)
	depths := make([]int, alphabetSize)

	var used []int32
	for sym, c := range hist {
		if c > 0 {
			used = append(used, int32(sym))
		}
	}

	switch len(used) {
	case 0:
		// no symbols at all; fall through with all-zero depths.
	case 1:
		depths[used[0]] = 1
	default:
		h := make(nodeHeap, 0, len(used))
		for _, sym := range used {
			h = append(h, &heapNode{weight: uint64(hist[sym]), sym: sym})
		}
		heap.Init(&h)

		for h.Len() > 1 {
			a := heap.Pop(&h).(*heapNode)
			b := heap.Pop(&h).(*heapNode)
			parent := &heapNode{weight: a.weight + b.weight, sym: -1, left: a, right: b}
			heap.Push(&h, parent)
		}
		assignDepths(h[0], 0, depths)
	}

	return finalizeCodebook(depths, maxLen)
}

func assignDepths(n *heapNode, depth int, depths []int) {
	if n.isLeaf() {
		if depth == 0 {
			depth = 1 // single-symbol subtree still needs one bit on the wire
		}
		depths[n.sym] = depth
		return
	}
	assignDepths(n.left, depth+1, depths)
	assignDepths(n.right, depth+1, depths)
}

func finalizeCodebook(depths []int, maxLen int) (Codebook, error) {
	type entry struct {
		sym int32
		len int
	}
	var entries []entry
	max := 0
	for sym, l := range depths {
		if l == 0 {
			continue
		}
		entries = append(entries, entry{int32(sym), l})
		if l > max {
			max = l
		}
	}
	if max > maxLen {
		return Codebook{}, szerr.Newf(szerr.CapacityExceeded, "max code length %d exceeds width budget %d", max, maxLen)
	}

	slices.SortFunc(entries, func(a, b entry) int {
		if a.len != b.len {
			return a.len - b.len
		}
		return int(a.sym - b.sym)
	})

	lengths := make([]uint8, len(depths))
	codes := make([]uint32, len(depths))
	var code uint32
	prevLen := 0
	for i, e := range entries {
		if i > 0 {
			code = (code + 1) << uint(e.len-prevLen)
		}
		lengths[e.sym] = uint8(e.len)
		codes[e.sym] = code
		prevLen = e.len
	}

	return Codebook{Lengths: lengths, codes: codes, maxLen: max}, nil
}

// chunkMeta is the per-chunk metadata the spec calls out: bit length and
// byte offset (offsets are byte-aligned, one codec byte buffer per chunk).
type chunkMeta struct {
	BitLen     uint32
	ByteOffset uint32
}

// EncodeWidth runs the full codec: histogram, code-book construction,
// chunked parallel encode, and blob assembly, all gated at the given
// codeword width. It returns szerr.CapacityExceeded (recoverable by the
// caller via a retry at widthBytes=8) if no code book fits within
// MaxCodeLen(widthBytes).
func EncodeWidth(ctx context.Context, symbols []int32, radius int, pardeg int, widthBytes int) ([]byte, error) {
	if radius <= 0 {
		return nil, szerr.Newf(szerr.ConfigInvalid, "radius must be > 0, got %d", radius)
	}
	if pardeg <= 0 {
		return nil, szerr.Newf(szerr.ConfigInvalid, "pardeg must be > 0, got %d", pardeg)
	}
	alphabetSize := 2 * radius

	hist := Histogram(symbols, alphabetSize)
	book, err := BuildCodebook(hist, MaxCodeLen(widthBytes))
	if err != nil {
		return nil, err
	}

	n := len(symbols)
	sublen := 0
	if n > 0 {
		sublen = (n + pardeg - 1) / pardeg
	}

	chunks := make([]chunkMeta, pardeg)
	chunkBytes := make([][]byte, pardeg)

	g, gctx := errgroup.WithContext(ctx)
	for c := 0; c < pardeg; c++ {
		c := c
		lo := c * sublen
		if lo > n {
			lo = n
		}
		hi := lo + sublen
		if hi > n {
			hi = n
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var buf bytes.Buffer
			bw := bitio.NewWriter(&buf)
			var bits uint64
			for _, sym := range symbols[lo:hi] {
				l := book.Lengths[sym]
				if l == 0 {
					return szerr.Newf(szerr.DeviceFailure, "symbol %d has no code book entry", sym)
				}
				if err := bw.WriteBits(uint64(book.codes[sym]), l); err != nil {
					return szerr.Wrap(szerr.DeviceFailure, "chunk encode", err)
				}
				bits += uint64(l)
			}
			if err := bw.Close(); err != nil {
				return szerr.Wrap(szerr.DeviceFailure, "chunk flush", err)
			}
			if bits > 0xFFFFFFFF {
				return szerr.Newf(szerr.DeviceFailure, "chunk %d bit length %d exceeds uint32", c, bits)
			}
			chunks[c] = chunkMeta{BitLen: uint32(bits)}
			chunkBytes[c] = buf.Bytes()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var offset uint32
	for c := range chunks {
		chunks[c].ByteOffset = offset
		offset += uint32(len(chunkBytes[c]))
	}

	var out bytes.Buffer
	_ = binary.Write(&out, binary.LittleEndian, uint32(pardeg))
	_ = binary.Write(&out, binary.LittleEndian, uint32(n))
	_ = binary.Write(&out, binary.LittleEndian, uint32(alphabetSize))
	writeSparseLengths(&out, book.Lengths)
	for _, cm := range chunks {
		_ = binary.Write(&out, binary.LittleEndian, cm.BitLen)
		_ = binary.Write(&out, binary.LittleEndian, cm.ByteOffset)
	}
	for _, b := range chunkBytes {
		out.Write(b)
	}
	return out.Bytes(), nil
}

// Decode reconstructs the original symbol stream from a blob produced by
// EncodeWidth. The codeword width used to encode is not needed: canonical
// decoding only depends on the stored per-symbol lengths.
func Decode(ctx context.Context, blob []byte) ([]int32, error) {
	r := bytes.NewReader(blob)
	var pardeg, n, alphabetSize uint32
	for _, f := range []*uint32{&pardeg, &n, &alphabetSize} {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return nil, szerr.Wrap(szerr.HeaderInvalid, "huffman blob header", err)
		}
	}
	lengths, err := readSparseLengths(r, int(alphabetSize))
	if err != nil {
		return nil, szerr.Wrap(szerr.HeaderInvalid, "huffman code lengths", err)
	}
	book, err := rebuildDecodeTable(lengths)
	if err != nil {
		return nil, err
	}

	chunks := make([]chunkMeta, pardeg)
	for i := range chunks {
		if err := binary.Read(r, binary.LittleEndian, &chunks[i].BitLen); err != nil {
			return nil, szerr.Wrap(szerr.HeaderInvalid, "chunk metadata", err)
		}
		if err := binary.Read(r, binary.LittleEndian, &chunks[i].ByteOffset); err != nil {
			return nil, szerr.Wrap(szerr.HeaderInvalid, "chunk metadata", err)
		}
	}

	dataStart := len(blob) - r.Len()
	data := blob[dataStart:]

	n64 := int(n)
	sublen := 0
	if n64 > 0 && pardeg > 0 {
		sublen = (n64 + int(pardeg) - 1) / int(pardeg)
	}

	out := make([]int32, n64)
	g, gctx := errgroup.WithContext(ctx)
	for c := 0; c < int(pardeg); c++ {
		c := c
		lo := c * sublen
		if lo > n64 {
			lo = n64
		}
		hi := lo + sublen
		if hi > n64 {
			hi = n64
		}
		if lo == hi {
			continue
		}
		cm := chunks[c]
		chunkData := data[cm.ByteOffset:]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			br := bitio.NewReader(bytes.NewReader(chunkData))
			remaining := cm.BitLen
			for i := lo; i < hi; i++ {
				sym, nbits, err := decodeSymbol(br, book)
				if err != nil {
					return szerr.Wrap(szerr.HeaderInvalid, "chunk decode", err)
				}
				if uint32(nbits) > remaining {
					return szerr.New(szerr.HeaderInvalid, "chunk decode ran past its recorded bit length")
				}
				remaining -= uint32(nbits)
				out[i] = sym
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// writeSparseLengths serializes only the non-zero entries of a dense code
// length table, as a count followed by (symbol, length) pairs. A near-
// constant input has a handful of used symbols out of an alphabet that can
// run into the thousands, so writing the table densely would dominate the
// archive size of exactly the inputs it compresses best.
func writeSparseLengths(out *bytes.Buffer, lengths []uint8) {
	var used []uint32
	for sym, l := range lengths {
		if l != 0 {
			used = append(used, uint32(sym))
		}
	}
	_ = binary.Write(out, binary.LittleEndian, uint32(len(used)))
	for _, sym := range used {
		_ = binary.Write(out, binary.LittleEndian, sym)
		_ = binary.Write(out, binary.LittleEndian, lengths[sym])
	}
}

// readSparseLengths inverts writeSparseLengths, reconstructing a dense
// alphabetSize-entry table with zero for every symbol not written.
func readSparseLengths(r *bytes.Reader, alphabetSize int) ([]uint8, error) {
	var numUsed uint32
	if err := binary.Read(r, binary.LittleEndian, &numUsed); err != nil {
		return nil, err
	}
	lengths := make([]uint8, alphabetSize)
	for i := uint32(0); i < numUsed; i++ {
		var sym uint32
		var l uint8
		if err := binary.Read(r, binary.LittleEndian, &sym); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &l); err != nil {
			return nil, err
		}
		if int(sym) >= alphabetSize {
			return nil, szerr.Newf(szerr.HeaderInvalid, "code length symbol %d outside alphabet size %d", sym, alphabetSize)
		}
		lengths[sym] = l
	}
	return lengths, nil
}

// decodeTable supports canonical decoding: for each length, the first
// (smallest) canonical code of that length, and the sorted symbols sharing
// it, indexed by (code - firstCode[length]).
type decodeTable struct {
	firstCode    map[uint8]uint32
	symbolsByLen map[uint8][]int32
	maxLen       uint8
}

func rebuildDecodeTable(lengths []uint8) (decodeTable, error) {
	type entry struct {
		sym int32
		len uint8
	}
	var entries []entry
	var maxLen uint8
	for sym, l := range lengths {
		if l == 0 {
			continue
		}
		entries = append(entries, entry{int32(sym), l})
		if l > maxLen {
			maxLen = l
		}
	}
	slices.SortFunc(entries, func(a, b entry) int {
		if a.len != b.len {
			return int(a.len) - int(b.len)
		}
		return int(a.sym - b.sym)
	})

	firstCode := make(map[uint8]uint32)
	symbolsByLen := make(map[uint8][]int32)
	var code uint32
	prevLen := uint8(0)
	for i, e := range entries {
		if i > 0 {
			code = (code + 1) << (e.len - prevLen)
		}
		if _, ok := firstCode[e.len]; !ok {
			firstCode[e.len] = code
		}
		symbolsByLen[e.len] = append(symbolsByLen[e.len], e.sym)
		prevLen = e.len
	}
	return decodeTable{firstCode: firstCode, symbolsByLen: symbolsByLen, maxLen: maxLen}, nil
}

func decodeSymbol(br *bitio.Reader, book decodeTable) (int32, int, error) {
	var code uint32
	for l := uint8(1); l <= book.maxLen; l++ {
		bit, err := br.ReadBits(1)
		if err != nil {
			return 0, 0, err
		}
		code = (code << 1) | uint32(bit)
		first, ok := book.firstCode[l]
		if !ok {
			continue
		}
		syms := book.symbolsByLen[l]
		if code >= first && int(code-first) < len(syms) {
			return syms[code-first], int(l), nil
		}
	}
	return 0, 0, szerr.New(szerr.HeaderInvalid, "no canonical code matched the bitstream")
}
