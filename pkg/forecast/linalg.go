package forecast

import (
	"errors"
	"math"
)

var errNotPositiveDefinite = errors.New("normal matrix is not positive definite")

// solveRidge solves (XᵀX + λI)β = Xᵀy. The intercept column (index 0) is
// not penalised.
func solveRidge(x [][]float64, y []float64, lambda float64) ([]float64, error) {
	p := len(x[0])
	a := make([][]float64, p)
	for i := range a {
		a[i] = make([]float64, p)
	}
	b := make([]float64, p)

	for r, row := range x {
		for i := 0; i < p; i++ {
			b[i] += row[i] * y[r]
			for j := 0; j <= i; j++ {
				a[i][j] += row[i] * row[j]
			}
		}
	}
	for i := 0; i < p; i++ {
		for j := 0; j < i; j++ {
			a[j][i] = a[i][j]
		}
		if i > 0 {
			a[i][i] += lambda
		}
	}

	return choleskySolve(a, b)
}

// choleskySolve solves Aβ = b for symmetric positive definite A.
func choleskySolve(a [][]float64, b []float64) ([]float64, error) {
	n := len(a)
	l := make([][]float64, n)
	for i := range l {
		l[i] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			sum := a[i][j]
			for k := 0; k < j; k++ {
				sum -= l[i][k] * l[j][k]
			}
			if i == j {
				if sum <= 0 || math.IsNaN(sum) {
					return nil, errNotPositiveDefinite
				}
				l[i][i] = math.Sqrt(sum)
			} else {
				l[i][j] = sum / l[j][j]
			}
		}
	}

	// L z = b
	z := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := b[i]
		for k := 0; k < i; k++ {
			sum -= l[i][k] * z[k]
		}
		z[i] = sum / l[i][i]
	}

	// Lᵀ β = z
	beta := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := z[i]
		for k := i + 1; k < n; k++ {
			sum -= l[k][i] * beta[k]
		}
		beta[i] = sum / l[i][i]
	}
	return beta, nil
}
