// szc compresses a raw little-endian float64 array into a .cusza archive.
//
// Usage:
//
//	szc -eb 1e-3 -x 512 -y 512 input.f64
//
// The core does no file I/O of its own (spec.md's Non-goals); szc is a
// thin external collaborator translating flags and files into a sz.Config
// and a sz.Compress call, the same division of labor as the teacher's
// cmd/wav2flac: flag parsing and file handling live in main, everything
// else lives in the library.
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"math"
	"os"

	"github.com/mewkiz/pkg/osutil"
	"github.com/pkg/errors"

	"github.com/cuszgo/sz"
	"github.com/cuszgo/sz/predictor"
)

func main() {
	var (
		eb      = flag.Float64("eb", 1e-3, "error bound")
		mode    = flag.String("mode", "abs", `error bound mode: "abs" or "r2r"`)
		radius  = flag.Int("radius", 512, "quantization radius")
		pardeg  = flag.Int("pardeg", 0, "Huffman chunk degree of parallelism (0: choose from input size)")
		density = flag.Int("density", 4, "expected outlier density factor")
		x       = flag.Int("x", 0, "fastest-varying dimension (required)")
		y       = flag.Int("y", 1, "second dimension")
		z       = flag.Int("z", 1, "third dimension")
		force   = flag.Bool("f", false, "force overwrite of an existing archive")
	)
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: szc [flags] input.f64")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	if err := compress(flag.Arg(0), *eb, *mode, *radius, *pardeg, *density, *x, *y, *z, *force); err != nil {
		log.Fatalf("!! %+v", err)
	}
}

func compress(inputPath string, eb float64, modeFlag string, radius, pardeg, density, x, y, z int, force bool) error {
	if x <= 0 {
		return errors.New("-x must be set to the input's element count along its fastest dimension")
	}
	var mode sz.Mode
	switch modeFlag {
	case "abs":
		mode = sz.Abs
	case "r2r":
		mode = sz.R2R
	default:
		return errors.Errorf(`invalid -mode %q, want "abs" or "r2r"`, modeFlag)
	}

	dims := predictor.Dims{X: x, Y: y, Z: z}
	raw, err := os.ReadFile(inputPath)
	if err != nil {
		return errors.WithStack(err)
	}
	input, err := decodeFloat64LE(raw)
	if err != nil {
		return errors.Wrapf(err, "%s", inputPath)
	}
	if len(input) != dims.N() {
		return errors.Errorf("%s: contains %d float64 values, want %d for shape %+v", inputPath, len(input), dims.N(), dims)
	}

	outPath := inputPath + ".cusza"
	if !force && osutil.Exists(outPath) {
		return errors.Errorf("%s already exists; pass -f to overwrite", outPath)
	}

	cfg := sz.Config{Mode: mode, Eb: eb, Radius: radius, Pardeg: pardeg, DensityFactor: density, Dims: dims}
	blob, err := sz.Compress(context.Background(), cfg, input)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, blob, 0o644); err != nil {
		return errors.WithStack(err)
	}
	log.Printf("wrote %s (%d bytes, %.2fx)", outPath, len(blob), float64(len(input)*8)/float64(len(blob)))
	return nil
}

func decodeFloat64LE(raw []byte) ([]float64, error) {
	if len(raw)%8 != 0 {
		return nil, errors.Errorf("file length %d is not a multiple of 8 bytes", len(raw))
	}
	out := make([]float64, len(raw)/8)
	for i := range out {
		bits := binary.LittleEndian.Uint64(raw[i*8 : i*8+8])
		out[i] = math.Float64frombits(bits)
	}
	return out, nil
}
