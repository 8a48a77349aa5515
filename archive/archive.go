// Package archive drives the full compress and decompress flows: predict,
// gather, encode (with width fallback), fill the header, and concatenate
// subfiles into one blob, then the inverse on decompress.
//
// The state machine below names the same stages spec.md's orchestrator
// does (ALLOC -> PREDICT -> GATHER -> ENCODE -> HEADER_FILL -> CONCAT),
// matching the teacher's top-level Encode/NewStream functions in spirit: a
// single driver function that calls each stage in turn and wraps the first
// failure with enough context to locate it.
package archive

import (
	"context"
	"encoding/binary"
	"errors"
	"math"

	"github.com/mewkiz/pkg/dbg"
	pkgerrors "github.com/pkg/errors"

	"github.com/cuszgo/sz/header"
	"github.com/cuszgo/sz/huffman"
	"github.com/cuszgo/sz/outlier"
	"github.com/cuszgo/sz/predictor"
	"github.com/cuszgo/sz/szerr"
)

func init() {
	dbg.Debug = false
}

// DefaultRadius matches the reference implementation's default residual
// radius.
const DefaultRadius = 512

// DefaultDensityFactor bounds the expected outlier density: at most
// N/DefaultDensityFactor outliers are tolerated before gather fails.
const DefaultDensityFactor = outlier.DefaultDensityFactor

// symbolsPerChunk is the nominal chunk size used to pick a default pardeg
// when the caller doesn't set one, matching spec.md §6's "chunks of 32k
// symbols" default.
const symbolsPerChunk = 32 * 1024

// Config parameterizes one compress or decompress call. Zero values for
// Radius, Pardeg, and DensityFactor select the documented defaults.
type Config struct {
	Dims          predictor.Dims
	Eb            float64
	Radius        int
	Pardeg        int
	DensityFactor int
}

func (c Config) withDefaults() Config {
	if c.Radius <= 0 {
		c.Radius = DefaultRadius
	}
	if c.DensityFactor <= 0 {
		c.DensityFactor = DefaultDensityFactor
	}
	if c.Pardeg <= 0 {
		n := c.Dims.N()
		c.Pardeg = (n + symbolsPerChunk - 1) / symbolsPerChunk
		if c.Pardeg < 1 {
			c.Pardeg = 1
		}
	}
	return c
}

func (c Config) validate() error {
	if c.Eb <= 0 {
		return szerr.Newf(szerr.ConfigInvalid, "error bound must be > 0, got %v", c.Eb)
	}
	if c.Radius <= 0 {
		return szerr.Newf(szerr.ConfigInvalid, "radius must be > 0, got %d", c.Radius)
	}
	if c.Pardeg <= 0 {
		return szerr.Newf(szerr.ConfigInvalid, "pardeg must be > 0, got %d", c.Pardeg)
	}
	if c.Dims.X <= 0 || c.Dims.Y <= 0 || c.Dims.Z <= 0 {
		return szerr.Newf(szerr.ConfigInvalid, "all dimensions must be > 0, got %+v", c.Dims)
	}
	return nil
}

// Compress runs the full ALLOC -> PREDICT -> GATHER -> ENCODE ->
// HEADER_FILL -> CONCAT pipeline over input and returns the archive blob.
func Compress(ctx context.Context, cfg Config, input []float64) ([]byte, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	n := cfg.Dims.N()
	if len(input) != n {
		return nil, szerr.Newf(szerr.ConfigInvalid, "input length %d does not match shape %+v (%d)", len(input), cfg.Dims, n)
	}
	// ALLOC: the reserved output buffer is capped at N*sizeof(float64)/2;
	// an archive that would not fit is a usage error, not retried. The cap
	// applies to the compressed payload, not the fixed 128-byte header that
	// every archive carries regardless of N, so it is checked against the
	// subfile bytes alone (entry[END] minus the header).
	maxBytes := int64(n) * 8 / 2

	// PREDICT.
	q, o, err := predictor.Predict(ctx, predictor.Config{Dims: cfg.Dims, Eb: cfg.Eb, Radius: cfg.Radius}, input)
	if err != nil {
		return nil, pkgerrors.WithMessage(err, "predict")
	}
	dbg.Println("predict: quant codes:", len(q), "outliers (dense):", len(o))

	// GATHER.
	csr, err := outlier.Gather(o, n, cfg.DensityFactor)
	if err != nil {
		return nil, pkgerrors.WithMessage(err, "gather")
	}
	spfmt := marshalCSR(csr)
	dbg.Println("gather: nnz:", len(csr.Values), "m:", csr.M)

	// ENCODE, with the width-4 -> width-8 fallback on code-length overflow.
	byteVLE := 4
	vle, err := huffman.EncodeWidth(ctx, q, cfg.Radius, cfg.Pardeg, byteVLE)
	if errors.Is(err, szerr.CapacityExceeded) {
		dbg.Println("encode: width 4 code book overflowed, retrying at width 8")
		byteVLE = 8
		vle, err = huffman.EncodeWidth(ctx, q, cfg.Radius, cfg.Pardeg, byteVLE)
	}
	if err != nil {
		return nil, pkgerrors.WithMessage(err, "encode")
	}
	dbg.Println("encode: byteVLE:", byteVLE, "vle bytes:", len(vle))

	// HEADER_FILL.
	var entry [header.EntryEnd + 1]uint32
	entry[header.EntryHeader] = 0
	entry[header.EntryAnchor] = header.Size
	entry[header.EntryVLE] = entry[header.EntryAnchor] // anchor subfile is reserved, empty by default
	entry[header.EntrySPFMT] = entry[header.EntryVLE] + uint32(len(vle))
	entry[header.EntryEnd] = entry[header.EntrySPFMT] + uint32(len(spfmt))

	payloadBytes := int64(entry[header.EntryEnd]) - int64(header.Size)
	if payloadBytes > maxBytes {
		return nil, szerr.Newf(szerr.OutputInflation, "compressed payload %d bytes (excluding header) exceeds reserved buffer %d", payloadBytes, maxBytes)
	}

	h := header.Header{
		X: uint32(cfg.Dims.X), Y: uint32(cfg.Dims.Y), Z: uint32(cfg.Dims.Z),
		Radius:          int32(cfg.Radius),
		VlePardeg:       int32(cfg.Pardeg),
		Eb:              cfg.Eb,
		ByteVLE:         int32(byteVLE),
		CodecsInUse:     1,
		NzDensityFactor: int32(cfg.DensityFactor),
		HeaderNbyte:     header.Size,
	}
	h.Entry = entry
	hdrBytes, err := h.Marshal()
	if err != nil {
		return nil, pkgerrors.WithMessage(err, "header fill")
	}

	// CONCAT.
	out := make([]byte, 0, entry[header.EntryEnd])
	out = append(out, hdrBytes[:]...)
	out = append(out, vle...)
	out = append(out, spfmt...)
	return out, nil
}

// Decompress parses an archive blob and reconstructs the original array.
func Decompress(ctx context.Context, blob []byte) (Config, []float64, error) {
	h, err := header.Unmarshal(blob, int64(len(blob)))
	if err != nil {
		return Config{}, nil, pkgerrors.WithMessage(err, "header parse")
	}

	cfg := Config{
		Dims:          predictor.Dims{X: int(h.X), Y: int(h.Y), Z: int(h.Z)},
		Eb:            h.Eb,
		Radius:        int(h.Radius),
		Pardeg:        int(h.VlePardeg),
		DensityFactor: int(h.NzDensityFactor),
	}
	n := cfg.Dims.N()
	dbg.Println("header parsed: dims:", cfg.Dims, "byteVLE:", h.ByteVLE)

	vle := blob[h.Entry[header.EntryVLE]:h.Entry[header.EntrySPFMT]]
	spfmt := blob[h.Entry[header.EntrySPFMT]:h.Entry[header.EntryEnd]]

	q, err := huffman.Decode(ctx, vle)
	if err != nil {
		return Config{}, nil, pkgerrors.WithMessage(err, "decode")
	}
	if len(q) != n {
		return Config{}, nil, szerr.Newf(szerr.HeaderInvalid, "decoded quant stream length %d does not match shape %+v (%d)", len(q), cfg.Dims, n)
	}

	csr, err := unmarshalCSR(spfmt)
	if err != nil {
		return Config{}, nil, pkgerrors.WithMessage(err, "scatter")
	}
	o := make([]float64, n)
	if err := outlier.Scatter(csr, n, o); err != nil {
		return Config{}, nil, pkgerrors.WithMessage(err, "scatter")
	}

	out := make([]float64, n)
	if err := predictor.Reconstruct(ctx, predictor.Config{Dims: cfg.Dims, Eb: cfg.Eb, Radius: cfg.Radius}, q, o, out); err != nil {
		return Config{}, nil, pkgerrors.WithMessage(err, "reconstruct")
	}
	return cfg, out, nil
}

// marshalCSR packs (nnz, m, rowptr, colidx, values) into the SPFMT subfile
// layout spec.md §6 documents.
func marshalCSR(csr outlier.CSR) []byte {
	nnz := len(csr.Values)
	buf := make([]byte, 0, csr.Footprint())
	var tmp [8]byte

	binary.LittleEndian.PutUint64(tmp[:], uint64(nnz))
	buf = append(buf, tmp[:]...)
	binary.LittleEndian.PutUint64(tmp[:], uint64(csr.M))
	buf = append(buf, tmp[:]...)
	for _, v := range csr.RowPtr {
		binary.LittleEndian.PutUint32(tmp[:4], uint32(v))
		buf = append(buf, tmp[:4]...)
	}
	for _, v := range csr.ColIdx {
		binary.LittleEndian.PutUint32(tmp[:4], uint32(v))
		buf = append(buf, tmp[:4]...)
	}
	for _, v := range csr.Values {
		binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v))
		buf = append(buf, tmp[:]...)
	}
	return buf
}

func unmarshalCSR(buf []byte) (outlier.CSR, error) {
	if len(buf) < 16 {
		return outlier.CSR{}, szerr.New(szerr.HeaderInvalid, "sparse subfile too short for nnz/m header")
	}
	nnz := int(binary.LittleEndian.Uint64(buf[0:8]))
	m := int(binary.LittleEndian.Uint64(buf[8:16]))
	off := 16

	rowptrLen := m + 1
	if nnz < 0 || m < 0 || off+4*rowptrLen+4*nnz+8*nnz > len(buf) {
		return outlier.CSR{}, szerr.New(szerr.HeaderInvalid, "sparse subfile shorter than its own nnz/m imply")
	}

	rowptr := make([]int32, rowptrLen)
	for i := range rowptr {
		rowptr[i] = int32(binary.LittleEndian.Uint32(buf[off : off+4]))
		off += 4
	}
	colidx := make([]int32, nnz)
	for i := range colidx {
		colidx[i] = int32(binary.LittleEndian.Uint32(buf[off : off+4]))
		off += 4
	}
	values := make([]float64, nnz)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[off : off+8]))
		off += 8
	}
	return outlier.CSR{M: m, RowPtr: rowptr, ColIdx: colidx, Values: values}, nil
}
