package strategy

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// gaussianProcess is a zero-mean GP with a unit-variance RBF kernel.
// Inputs live on the unit cube; targets are expected to be standardized.
type gaussianProcess struct {
	width float64 // RBF length scale
	noise float64 // diagonal jitter added before factorization

	x     [][]float64
	chol  mat.Cholesky
	alpha *mat.VecDense // K⁻¹y
}

func newGaussianProcess(width float64) *gaussianProcess {
	return &gaussianProcess{width: width, noise: 1e-6}
}

func (gp *gaussianProcess) kernel(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Exp(-sum / (2 * gp.width * gp.width))
}

// fit factorizes the kernel matrix of x, growing the jitter tenfold until the
// matrix is positive definite or the attempts run out.
func (gp *gaussianProcess) fit(x [][]float64, y []float64) error {
	n := len(x)
	if n == 0 || n != len(y) {
		return errors.New("gaussian process needs matching, non-empty inputs and targets")
	}
	jitter := gp.noise
	for attempt := 0; attempt < 6; attempt++ {
		k := mat.NewSymDense(n, nil)
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				v := gp.kernel(x[i], x[j])
				if i == j {
					v += jitter
				}
				k.SetSym(i, j, v)
			}
		}
		if !gp.chol.Factorize(k) {
			jitter *= 10
			continue
		}
		alpha := mat.NewVecDense(n, nil)
		if err := gp.chol.SolveVecTo(alpha, mat.NewVecDense(n, append([]float64(nil), y...))); err != nil && !isCondition(err) {
			return err
		}
		gp.x = x
		gp.alpha = alpha
		return nil
	}
	return errors.New("kernel matrix is not positive definite")
}

// predict returns the posterior mean and variance at x. Before any fit it
// returns the prior (0, 1).
func (gp *gaussianProcess) predict(x []float64) (mean, variance float64) {
	n := len(gp.x)
	if n == 0 {
		return 0, 1
	}
	k := mat.NewVecDense(n, nil)
	for i := range gp.x {
		k.SetVec(i, gp.kernel(x, gp.x[i]))
	}
	mean = mat.Dot(k, gp.alpha)

	v := mat.NewVecDense(n, nil)
	if err := gp.chol.SolveVecTo(v, k); err != nil && !isCondition(err) {
		return mean, 1
	}
	variance = 1 - mat.Dot(k, v)
	if variance < 1e-12 {
		variance = 1e-12
	}
	return mean, variance
}

// isCondition reports whether err only warns about ill-conditioning; the
// solution is still computed in that case.
func isCondition(err error) bool {
	var cond mat.Condition
	return errors.As(err, &cond)
}
