package agent

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// fourierBasis maps an observation to cos(pi * c . x) for every coefficient
// vector c with entries in [0, order] and at most maxNonZero non-zero
// entries. Observations are squashed into (0, 1) first.
type fourierBasis struct {
	coeffs *mat.Dense // features x observation length
	// alphaScale holds 1/||c|| per feature, 1 for the constant feature.
	alphaScale []float64
}

func newFourierBasis(obsLen, order, maxNonZero int) (*fourierBasis, error) {
	if obsLen <= 0 {
		return nil, fmt.Errorf("observation length must be positive, got %d", obsLen)
	}
	if order < 0 {
		return nil, fmt.Errorf("fourier order must not be negative, got %d", order)
	}
	if order > 0 && maxNonZero < 1 {
		return nil, fmt.Errorf("max non-zero fourier entries must be at least 1, got %d", maxNonZero)
	}
	maxNonZero = min(maxNonZero, obsLen)

	rows := [][]float64{make([]float64, obsLen)}
	if order > 0 {
		var build func(start, left int, c []float64)
		build = func(start, left int, c []float64) {
			if left == 0 {
				return
			}
			for i := start; i < obsLen; i++ {
				for v := 1; v <= order; v++ {
					c[i] = float64(v)
					rows = append(rows, append([]float64(nil), c...))
					build(i+1, left-1, c)
				}
				c[i] = 0
			}
		}
		build(0, maxNonZero, make([]float64, obsLen))
	}

	b := &fourierBasis{
		coeffs:     mat.NewDense(len(rows), obsLen, nil),
		alphaScale: make([]float64, len(rows)),
	}
	for i, r := range rows {
		b.coeffs.SetRow(i, r)
		if n := floats.Norm(r, 2); n > 0 {
			b.alphaScale[i] = 1 / n
		} else {
			b.alphaScale[i] = 1
		}
	}
	return b, nil
}

func (b *fourierBasis) Len() int { return len(b.alphaScale) }

func (b *fourierBasis) features(obs []float64) *mat.VecDense {
	x := mat.NewVecDense(len(obs), nil)
	for i, v := range obs {
		x.SetVec(i, squash(v))
	}
	phi := mat.NewVecDense(b.Len(), nil)
	phi.MulVec(b.coeffs, x)
	for i := 0; i < phi.Len(); i++ {
		phi.SetVec(i, math.Cos(math.Pi*phi.AtVec(i)))
	}
	return phi
}

// squash maps any real to (0, 1), monotonically, with squash(0) = 0.5.
func squash(v float64) float64 {
	return (v/(1+math.Abs(v)) + 1) / 2
}
