package sz

import (
	"context"

	"github.com/cuszgo/sz/archive"
	"github.com/cuszgo/sz/predictor"
	"github.com/cuszgo/sz/szerr"
)

// Mode selects how Eb is interpreted.
type Mode int

const (
	// Abs treats Eb as an absolute error bound.
	Abs Mode = iota
	// R2R treats Eb as a fraction of the input's value range; Compress
	// scales it by (max - min) before invoking the core, the data-range
	// analyzer spec.md calls out as an external collaborator.
	R2R
)

// Config is the façade's entry point, translating a user-facing mode and
// error bound into the core archive.Config.
type Config struct {
	Mode          Mode
	Eb            float64
	Radius        int
	Pardeg        int
	DensityFactor int
	Dims          predictor.Dims
}

// Compress compresses input under cfg, returning the archive blob.
func Compress(ctx context.Context, cfg Config, input []float64) ([]byte, error) {
	eb := cfg.Eb
	if cfg.Mode == R2R {
		lo, hi, err := dataRange(input)
		if err != nil {
			return nil, err
		}
		eb = cfg.Eb * (hi - lo)
	}
	return archive.Compress(ctx, archive.Config{
		Dims:          cfg.Dims,
		Eb:            eb,
		Radius:        cfg.Radius,
		Pardeg:        cfg.Pardeg,
		DensityFactor: cfg.DensityFactor,
	}, input)
}

// Decompress reconstructs the array stored in blob. The returned Config
// reports the absolute error bound the archive was actually built with,
// not the caller's original Mode/Eb (R2R's relative fraction is not
// recoverable from the archive alone).
func Decompress(ctx context.Context, blob []byte) (Config, []float64, error) {
	ac, out, err := archive.Decompress(ctx, blob)
	if err != nil {
		return Config{}, nil, err
	}
	return Config{
		Mode:          Abs,
		Eb:            ac.Eb,
		Radius:        ac.Radius,
		Pardeg:        ac.Pardeg,
		DensityFactor: ac.DensityFactor,
		Dims:          ac.Dims,
	}, out, nil
}

func dataRange(input []float64) (lo, hi float64, err error) {
	if len(input) == 0 {
		return 0, 0, szerr.New(szerr.ConfigInvalid, "cannot compute a data range over an empty array")
	}
	lo, hi = input[0], input[0]
	for _, v := range input[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi, nil
}
