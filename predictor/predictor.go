// Package predictor implements the dual-output Lorenzo predictor-quantizer.
//
// For every sample it predicts a value from already-written lower-index
// neighbors (the Lorenzo inclusion-exclusion sum), compares the prequantized
// residual against the caller's radius, and emits either a small integer
// quant code (quantizable) or an outlier carrying the full-precision
// residual. The array is tiled so that tiles can be predicted independently
// by a worker pool: a tile's boundary samples predict from an implicit zero
// rather than reaching into a neighboring tile, trading a small amount of
// compression ratio for embarrassingly parallel tiles — the same shape of
// trade the teacher codec makes when it resets its fixed predictor at every
// subframe boundary instead of across frames.
package predictor

import (
	"context"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/cuszgo/sz/szerr"
)

// Dims describes the shape of an input array. Unused trailing dimensions
// must be 1: a 1D array of length N is Dims{N, 1, 1}, a 2D array is
// Dims{Nx, Ny, 1}.
type Dims struct {
	X, Y, Z int
}

// N returns the total number of samples.
func (d Dims) N() int { return d.X * d.Y * d.Z }

// Rank returns 1, 2, or 3 depending on how many dimensions are non-trivial.
func (d Dims) Rank() int {
	switch {
	case d.Z > 1:
		return 3
	case d.Y > 1:
		return 2
	default:
		return 1
	}
}

func (d Dims) index(x, y, z int) int {
	return z*d.Y*d.X + y*d.X + x
}

// Config parameterizes a predict/reconstruct call.
type Config struct {
	Dims   Dims
	Eb     float64
	Radius int
}

func (c Config) validate() error {
	if c.Radius <= 0 {
		return szerr.Newf(szerr.ConfigInvalid, "radius must be > 0, got %d", c.Radius)
	}
	if c.Eb <= 0 {
		return szerr.Newf(szerr.ConfigInvalid, "error bound must be > 0, got %v", c.Eb)
	}
	if c.Dims.X <= 0 || c.Dims.Y <= 0 || c.Dims.Z <= 0 {
		return szerr.Newf(szerr.ConfigInvalid, "all dimensions must be > 0, got %+v", c.Dims)
	}
	return nil
}

// Tile sizes, fixed per rank, matching the reference GPU kernel's launch
// configuration: an independent unit of Lorenzo prediction.
const (
	tile1D  = 256
	tile2DX = 16
	tile2DY = 16
	tile3DX = 32
	tile3DY = 8
	tile3DZ = 8
)

// workerCount bounds the tile worker pool, mirroring a fixed number of
// concurrent kernel launches on the reference implementation's single
// device stream.
func workerCount() int {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		return 1
	}
	return n
}

// Predict runs the dual-output Lorenzo transform over input, returning a
// dense quant-code array Q and a dense outlier array O of the same length.
// Exactly one of Q[i], O[i] is non-zero for every i (spec invariant 2),
// except where the residual equals -radius exactly: that sample is an
// outlier whose carrier value delta+radius is zero, so both are zero, and
// Reconstruct still recovers it from Q[i] == 0 and O[i] == 0.
func Predict(ctx context.Context, cfg Config, input []float64) (q []int32, o []float64, err error) {
	if err := cfg.validate(); err != nil {
		return nil, nil, err
	}
	n := cfg.Dims.N()
	if len(input) != n {
		return nil, nil, szerr.Newf(szerr.ConfigInvalid, "input length %d does not match shape %+v (%d)", len(input), cfg.Dims, n)
	}

	sp := prequantize(input, cfg.Eb)
	q = make([]int32, n)
	o = make([]float64, n)

	tiles := tileOrigins(cfg.Dims)
	if err := runTiles(ctx, tiles, func(t tile) error {
		predictTile(cfg.Dims, sp, q, o, cfg.Radius, t)
		return nil
	}); err != nil {
		return nil, nil, szerr.Wrap(szerr.DeviceFailure, "predictor", err)
	}
	return q, o, nil
}

// Reconstruct inverts Predict: given Q and O it recovers the original
// samples (within the configured error bound) into out, which must already
// be sized to cfg.Dims.N().
func Reconstruct(ctx context.Context, cfg Config, q []int32, o []float64, out []float64) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	n := cfg.Dims.N()
	if len(q) != n || len(o) != n || len(out) != n {
		return szerr.Newf(szerr.ConfigInvalid, "q/o/out length mismatch against shape %+v (%d)", cfg.Dims, n)
	}

	sp := make([]float64, n)
	tiles := tileOrigins(cfg.Dims)
	if err := runTiles(ctx, tiles, func(t tile) error {
		reconstructTile(cfg.Dims, sp, q, o, cfg.Radius, t)
		return nil
	}); err != nil {
		return szerr.Wrap(szerr.DeviceFailure, "predictor", err)
	}
	for i, v := range sp {
		out[i] = v * (2 * cfg.Eb)
	}
	return nil
}

func prequantize(input []float64, eb float64) []float64 {
	sp := make([]float64, len(input))
	inv := 1 / (2 * eb)
	for i, s := range input {
		sp[i] = math.Round(s * inv)
	}
	return sp
}

// tile describes one independent prediction unit, in tile-local-origin
// coordinates plus an exclusive upper bound per axis (clamped at the array
// boundary, so the last tile along any axis may be smaller than the nominal
// tile size).
type tile struct {
	x0, y0, z0 int
	x1, y1, z1 int
}

func tileOrigins(d Dims) []tile {
	var tx, ty, tz int
	switch d.Rank() {
	case 1:
		tx, ty, tz = tile1D, d.Y, d.Z
	case 2:
		tx, ty, tz = tile2DX, tile2DY, d.Z
	default:
		tx, ty, tz = tile3DX, tile3DY, tile3DZ
	}

	var tiles []tile
	for z0 := 0; z0 < d.Z; z0 += tz {
		z1 := min(z0+tz, d.Z)
		for y0 := 0; y0 < d.Y; y0 += ty {
			y1 := min(y0+ty, d.Y)
			for x0 := 0; x0 < d.X; x0 += tx {
				x1 := min(x0+tx, d.X)
				tiles = append(tiles, tile{x0, y0, z0, x1, y1, z1})
			}
		}
	}
	return tiles
}

// runTiles fans tiles out across a worker pool using errgroup, the
// idiomatic stand-in for independent device kernel launches on a single
// stream: each worker claims a contiguous slice of the tile list so ordering
// within a worker stays cache-friendly, and errgroup.Wait is the single
// synchronization barrier at the end of the stage.
func runTiles(ctx context.Context, tiles []tile, fn func(tile) error) error {
	if len(tiles) == 0 {
		return nil
	}
	workers := workerCount()
	if workers > len(tiles) {
		workers = len(tiles)
	}
	chunk := (len(tiles) + workers - 1) / workers

	g, _ := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		lo := w * chunk
		if lo >= len(tiles) {
			break
		}
		hi := lo + chunk
		if hi > len(tiles) {
			hi = len(tiles)
		}
		sub := tiles[lo:hi]
		g.Go(func() error {
			for _, t := range sub {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := fn(t); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// predictTile runs the forward Lorenzo transform over one tile. Neighbors
// outside the tile (local coordinate < 0) contribute zero, as do neighbors
// outside the array, matching the reference predictor's boundary rule.
func predictTile(d Dims, sp []float64, q []int32, o []float64, radius int, t tile) {
	neighbor := func(x, y, z int) float64 {
		if x < t.x0 || y < t.y0 || z < t.z0 {
			return 0
		}
		return sp[d.index(x, y, z)]
	}

	for z := t.z0; z < t.z1; z++ {
		for y := t.y0; y < t.y1; y++ {
			for x := t.x0; x < t.x1; x++ {
				p := lorenzoPredict(d.Rank(), neighbor, x, y, z)
				i := d.index(x, y, z)
				delta := sp[i] - p
				classify(delta, radius, &q[i], &o[i])
			}
		}
	}
}

// reconstructTile inverts predictTile. Because the forward transform is
// causal within a tile (each sample's prediction depends only on
// lower-index neighbors already written), the inverse must process samples
// in the same order, recovering sp in place as it goes.
func reconstructTile(d Dims, sp []float64, q []int32, o []float64, radius int, t tile) {
	neighbor := func(x, y, z int) float64 {
		if x < t.x0 || y < t.y0 || z < t.z0 {
			return 0
		}
		return sp[d.index(x, y, z)]
	}

	for z := t.z0; z < t.z1; z++ {
		for y := t.y0; y < t.y1; y++ {
			for x := t.x0; x < t.x1; x++ {
				i := d.index(x, y, z)
				var delta float64
				if q[i] == 0 {
					delta = o[i] - float64(radius)
				} else {
					delta = float64(q[i]) - float64(radius)
				}
				p := lorenzoPredict(d.Rank(), neighbor, x, y, z)
				sp[i] = delta + p
			}
		}
	}
}

// lorenzoPredict evaluates the rank-appropriate inclusion-exclusion sum over
// lower-index neighbors at Chebyshev distance <= 1.
func lorenzoPredict(rank int, nb func(x, y, z int) float64, x, y, z int) float64 {
	switch rank {
	case 1:
		return nb(x-1, y, z)
	case 2:
		return nb(x-1, y, z) + nb(x, y-1, z) - nb(x-1, y-1, z)
	default:
		return nb(x-1, y, z) + nb(x, y-1, z) + nb(x, y, z-1) -
			nb(x-1, y-1, z) - nb(x-1, y, z-1) - nb(x, y-1, z-1) +
			nb(x-1, y-1, z-1)
	}
}

// classify implements the per-sample quantizable/outlier decision: delta in
// (-radius, radius) is quantizable and shifted into (0, 2*radius) (0 is
// reserved for "outlier"); otherwise it is carried verbatim, shifted by
// radius, in the outlier channel.
func classify(delta float64, radius int, qOut *int32, oOut *float64) {
	if delta > -float64(radius) && delta < float64(radius) {
		*qOut = int32(delta) + int32(radius)
		*oOut = 0
		return
	}
	*qOut = 0
	*oOut = delta + float64(radius)
}
