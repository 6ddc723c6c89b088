package hill

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// residualFunc writes model(x) - y for parameters p into dst
type residualFunc func(p []float64, dst []float64)

// SolverOptions are the stopping rules of the least-squares solver. The
// defaults follow MINPACK: a step ends the search once it improves the cost
// by less than FTol relative, moves the parameters by less than XTol
// relative, or the projected gradient falls below GTol. MaxEvaluations
// bounds residual evaluations; the finite-difference Jacobian is not
// counted against it.
type SolverOptions struct {
	FTol           float64
	XTol           float64
	GTol           float64
	MaxEvaluations int
}

// DefaultSolverOptions returns tolerances of 1e-8 and 100 evaluations per
// parameter
func DefaultSolverOptions(params int) SolverOptions {
	return SolverOptions{
		FTol:           1e-8,
		XTol:           1e-8,
		GTol:           1e-8,
		MaxEvaluations: 100 * params,
	}
}

// solution is the state the solver stopped in
type solution struct {
	Params      []float64
	Cost        float64
	Evaluations int
	Reason      string
}

var errMaxEvaluations = fmt.Errorf("maximum number of function evaluations exceeded")

// leastSquares minimises 0.5*||r(p)||^2 within [lower, upper] using
// Levenberg-Marquardt steps and a forward-difference Jacobian. Iterates stay
// strictly inside the box: a step that crosses a bound is reflected back
// off it.
func leastSquares(f residualFunc, m int, x0, lower, upper []float64, opt SolverOptions) (*solution, error) {
	n := len(x0)
	x := make([]float64, n)
	copy(x, x0)
	makeStrictlyFeasible(x, lower, upper)

	r := make([]float64, m)
	f(x, r)
	nfev := 1
	if !allFinite(r) {
		return nil, fmt.Errorf("residuals are not finite at the initial guess")
	}
	cost := 0.5 * floats.Dot(r, r)

	J := mat.NewDense(m, n, nil)
	scale := make([]float64, n)
	lambda := 1e-3
	nu := 2.0

	xNew := make([]float64, n)
	rNew := make([]float64, m)
	step := make([]float64, n)

	for {
		jacobian(f, x, r, lower, upper, J)
		if !allFinite(J.RawMatrix().Data) {
			return nil, fmt.Errorf("jacobian is not finite")
		}

		var A mat.SymDense
		A.SymOuterK(1, J.T())
		g := mat.NewVecDense(n, nil)
		g.MulVec(J.T(), mat.NewVecDense(m, r))

		if projectedGradientNorm(x, g.RawVector().Data, lower, upper) < opt.GTol {
			return &solution{Params: x, Cost: cost, Evaluations: nfev, Reason: "gradient below tolerance"}, nil
		}
		for i := 0; i < n; i++ {
			scale[i] = math.Max(scale[i], A.At(i, i))
			if scale[i] == 0 {
				scale[i] = 1
			}
		}

		for {
			if nfev >= opt.MaxEvaluations {
				return nil, errMaxEvaluations
			}
			if lambda > 1e300 {
				return nil, fmt.Errorf("damping diverged")
			}

			damped := mat.NewSymDense(n, nil)
			damped.CopySym(&A)
			for i := 0; i < n; i++ {
				damped.SetSym(i, i, A.At(i, i)+lambda*scale[i])
			}
			var chol mat.Cholesky
			if ok := chol.Factorize(damped); !ok {
				lambda *= nu
				nu *= 2
				continue
			}
			delta := mat.NewVecDense(n, nil)
			rhs := mat.NewVecDense(n, nil)
			rhs.ScaleVec(-1, g)
			if err := chol.SolveVecTo(delta, rhs); err != nil {
				lambda *= nu
				nu *= 2
				continue
			}

			for i := 0; i < n; i++ {
				xNew[i] = reflect(x[i], delta.AtVec(i), lower[i], upper[i])
			}
			floats.SubTo(step, xNew, x)

			f(xNew, rNew)
			nfev++
			costNew := math.Inf(1)
			if allFinite(rNew) {
				costNew = 0.5 * floats.Dot(rNew, rNew)
			}

			stepNorm := floats.Norm(step, 2)
			xNorm := floats.Norm(x, 2)

			if costNew < cost {
				predicted := predictedReduction(&A, g, step)
				rho := 1.0
				if predicted > 0 {
					rho = (cost - costNew) / predicted
				}
				lambda *= math.Max(1.0/3.0, 1-math.Pow(2*rho-1, 3))
				nu = 2

				improvement := cost - costNew
				copy(x, xNew)
				copy(r, rNew)
				prevCost := cost
				cost = costNew

				switch {
				case improvement <= opt.FTol*prevCost:
					return &solution{Params: x, Cost: cost, Evaluations: nfev, Reason: "cost change below tolerance"}, nil
				case stepNorm <= opt.XTol*(opt.XTol+xNorm):
					return &solution{Params: x, Cost: cost, Evaluations: nfev, Reason: "step below tolerance"}, nil
				}
				break
			}

			if stepNorm <= opt.XTol*(opt.XTol+xNorm) {
				return &solution{Params: x, Cost: cost, Evaluations: nfev, Reason: "step below tolerance"}, nil
			}
			lambda *= nu
			nu *= 2
		}
	}
}

// jacobian fills J with forward differences of f around x. A step that
// would leave the box is taken in the other direction.
func jacobian(f residualFunc, x, r0, lower, upper []float64, J *mat.Dense) {
	m, n := J.Dims()
	xh := make([]float64, n)
	rh := make([]float64, m)
	eps := math.Sqrt(2.220446049250313e-16)
	for j := 0; j < n; j++ {
		copy(xh, x)
		h := eps * math.Max(1, math.Abs(x[j]))
		if x[j] < 0 {
			h = -h
		}
		if x[j]+h > upper[j] || x[j]+h < lower[j] {
			h = -h
		}
		xh[j] = x[j] + h
		h = xh[j] - x[j]
		f(xh, rh)
		for i := 0; i < m; i++ {
			J.Set(i, j, (rh[i]-r0[i])/h)
		}
	}
}

// predictedReduction is the decrease of the quadratic model for step s:
// -(g.s + 0.5*s'As)
func predictedReduction(A *mat.SymDense, g *mat.VecDense, s []float64) float64 {
	sv := mat.NewVecDense(len(s), s)
	var As mat.VecDense
	As.MulVec(A, sv)
	return -(mat.Dot(g, sv) + 0.5*mat.Dot(sv, &As))
}

// projectedGradientNorm is the infinity norm of the gradient after dropping
// components that point out of the box at an active bound
func projectedGradientNorm(x, g, lower, upper []float64) float64 {
	norm := 0.0
	for i := range x {
		gi := g[i]
		if (x[i] <= lower[i] && gi > 0) || (x[i] >= upper[i] && gi < 0) {
			gi = 0
		}
		norm = math.Max(norm, math.Abs(gi))
	}
	return norm
}

// reflect moves xi by d and mirrors the result back across a bound it
// crossed. A point still outside, or landing exactly on a bound, is placed
// halfway between xi and the bound instead, so iterates never sit on a bound.
func reflect(xi, d, lo, hi float64) float64 {
	v := xi + d
	if v < lo {
		v = 2*lo - v
	}
	if v > hi {
		v = 2*hi - v
	}
	if v > lo && v < hi {
		return v
	}
	if d < 0 {
		return xi + 0.5*(lo-xi)
	}
	return xi + 0.5*(hi-xi)
}

// makeStrictlyFeasible clips x into the box and moves coordinates sitting on
// a bound a relative 1e-10 inside it
func makeStrictlyFeasible(x, lower, upper []float64) {
	const rstep = 1e-10
	for i := range x {
		switch {
		case x[i] <= lower[i]:
			x[i] = lower[i] + rstep*math.Max(1, math.Abs(lower[i]))
		case x[i] >= upper[i]:
			x[i] = upper[i] - rstep*math.Max(1, math.Abs(upper[i]))
		}
	}
}

func allFinite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
