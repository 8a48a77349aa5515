// Package outlier compacts the dense outlier plane produced by the
// predictor into a sparse CSR (compressed sparse row) triple, and expands it
// back. The dense plane is treated as an m x m matrix, m = ceil(sqrt(N)),
// regardless of the predictor's own 1D/2D/3D shape: CSR only cares about row
// boundaries, not the semantic meaning of a row.
package outlier

import (
	"math"

	"github.com/cuszgo/sz/szerr"
)

// DefaultDensityFactor is the default bound on outlier density: gather
// fails capacity if nnz exceeds N/DensityFactor.
const DefaultDensityFactor = 4

// CSR is a compressed-sparse-row triple over the m x m reshape of a dense
// outlier plane.
type CSR struct {
	M      int
	RowPtr []int32
	ColIdx []int32
	Values []float64
}

// Footprint returns the byte size of the triple's serialized form: a
// (nnz, m) pair followed by rowptr, colidx, and values, matching the layout
// archive.Compress writes into the SPFMT subfile.
func (c CSR) Footprint() int64 {
	nnz := len(c.Values)
	return int64(8 + 8 + 4*(c.M+1) + 4*nnz + 8*nnz)
}

// Gather compacts dense (length n) into a CSR triple. densityFactor <= 0
// selects DefaultDensityFactor. Gather fails with szerr.CapacityExceeded if
// the number of nonzero entries exceeds n/densityFactor.
func Gather(dense []float64, n int, densityFactor int) (CSR, error) {
	if densityFactor <= 0 {
		densityFactor = DefaultDensityFactor
	}
	if len(dense) != n {
		return CSR{}, szerr.Newf(szerr.ConfigInvalid, "dense length %d does not match n %d", len(dense), n)
	}
	m := int(math.Ceil(math.Sqrt(float64(n))))
	if m == 0 {
		m = 1
	}

	limit := n / densityFactor
	rowptr := make([]int32, m+1)
	var colidx []int32
	var values []float64

	nnz := 0
	for row := 0; row < m; row++ {
		rowStart := row * m
		for col := 0; col < m; col++ {
			idx := rowStart + col
			if idx >= n {
				break
			}
			v := dense[idx]
			if v == 0 {
				continue
			}
			nnz++
			if nnz > limit {
				return CSR{}, szerr.Newf(szerr.CapacityExceeded,
					"outlier count %d exceeds limit %d (n=%d, density_factor=%d)", nnz, limit, n, densityFactor)
			}
			colidx = append(colidx, int32(col))
			values = append(values, v)
		}
		rowptr[row+1] = int32(nnz)
	}

	return CSR{M: m, RowPtr: rowptr, ColIdx: colidx, Values: values}, nil
}

// Scatter is the exact inverse of Gather: it expands csr back into a dense
// plane of length n, which must already be zeroed (freshly allocated, or
// reset by the caller).
func Scatter(csr CSR, n int, dense []float64) error {
	if len(dense) != n {
		return szerr.Newf(szerr.ConfigInvalid, "dense length %d does not match n %d", len(dense), n)
	}
	if len(csr.RowPtr) != csr.M+1 {
		return szerr.Newf(szerr.HeaderInvalid, "rowptr length %d does not match m+1 (%d)", len(csr.RowPtr), csr.M+1)
	}
	for row := 0; row < csr.M; row++ {
		start, end := csr.RowPtr[row], csr.RowPtr[row+1]
		if start < 0 || end < start || int(end) > len(csr.ColIdx) {
			return szerr.Newf(szerr.HeaderInvalid, "row %d has malformed rowptr range [%d, %d)", row, start, end)
		}
		rowStart := row * csr.M
		for k := start; k < end; k++ {
			col := int(csr.ColIdx[k])
			idx := rowStart + col
			if idx < 0 || idx >= n {
				return szerr.Newf(szerr.HeaderInvalid, "row %d col %d maps outside dense range [0, %d)", row, col, n)
			}
			dense[idx] = csr.Values[k]
		}
	}
	return nil
}
