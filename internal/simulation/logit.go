package simulation

import (
	"fmt"
	"math"

	"impactsim/domain/core"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	minWeight = 1e-10
	probEps   = 1e-15
)

// FitOptions controls the IRLS loop
type FitOptions struct {
	MaxIter   int
	Tolerance float64
}

// DefaultFitOptions mirrors the usual GLM defaults
func DefaultFitOptions() FitOptions {
	return FitOptions{MaxIter: 25, Tolerance: 1e-8}
}

// LogitFit is a fitted binomial GLM with logit link
type LogitFit struct {
	Coef       []float64
	StdErr     []float64
	Deviance   float64
	Iterations int
}

// Z returns the Wald statistic of coefficient j
func (f *LogitFit) Z(j int) float64 {
	return f.Coef[j] / f.StdErr[j]
}

// PValue returns the two-sided Wald p-value of coefficient j
func (f *LogitFit) PValue(j int) float64 {
	return 2 * distuv.UnitNormal.CDF(-math.Abs(f.Z(j)))
}

// Predict returns the fitted probability for covariate row x (intercept included)
func (f *LogitFit) Predict(x []float64) float64 {
	eta := 0.0
	for j, c := range f.Coef {
		eta += c * x[j]
	}
	return sigmoid(eta)
}

// FitLogit fits y ~ X by iteratively reweighted least squares. X must carry
// its own intercept column. Convergence uses the relative deviance change
// |dev - dev_old| / (|dev| + 0.1) < tolerance.
func FitLogit(x *mat.Dense, y []float64, opts FitOptions) (*LogitFit, error) {
	n, p := x.Dims()
	if len(y) != n {
		return nil, fmt.Errorf("logit: %d responses for %d rows", len(y), n)
	}
	if n <= p {
		return nil, fmt.Errorf("%w: %d observations for %d parameters", core.ErrNonConvergence, n, p)
	}
	if opts.MaxIter <= 0 {
		opts = DefaultFitOptions()
	}

	eta := mat.NewVecDense(n, nil)
	mu := make([]float64, n)
	for i, yi := range y {
		if yi != 0 && yi != 1 {
			return nil, fmt.Errorf("logit: response %d is %g, want 0 or 1", i, yi)
		}
		mu[i] = (yi + 0.5) / 2
		eta.SetVec(i, math.Log(mu[i]/(1-mu[i])))
	}

	beta := mat.NewVecDense(p, nil)
	devOld := math.Inf(1)
	for iter := 1; iter <= opts.MaxIter; iter++ {
		var chol mat.Cholesky
		if ok := chol.Factorize(information(x, mu)); !ok {
			return nil, fmt.Errorf("%w at iteration %d", core.ErrSingularMatrix, iter)
		}
		if err := chol.SolveVecTo(beta, workingRHS(x, y, eta, mu)); err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrSingularMatrix, err)
		}

		eta.MulVec(x, beta)
		for i := 0; i < n; i++ {
			mu[i] = sigmoid(eta.AtVec(i))
		}

		dev := deviance(y, mu)
		if math.IsNaN(dev) || math.IsInf(dev, 0) {
			return nil, fmt.Errorf("%w: deviance is %g at iteration %d", core.ErrNonConvergence, dev, iter)
		}
		if math.Abs(dev-devOld)/(math.Abs(dev)+0.1) < opts.Tolerance {
			return finishFit(x, mu, beta, dev, iter)
		}
		devOld = dev
	}

	return nil, fmt.Errorf("%w: no convergence after %d iterations", core.ErrNonConvergence, opts.MaxIter)
}

// finishFit computes standard errors from the inverse information at the solution
func finishFit(x *mat.Dense, mu []float64, beta *mat.VecDense, dev float64, iter int) (*LogitFit, error) {
	p := beta.Len()

	var chol mat.Cholesky
	if ok := chol.Factorize(information(x, mu)); !ok {
		return nil, fmt.Errorf("%w at solution", core.ErrSingularMatrix)
	}
	var cov mat.SymDense
	if err := chol.InverseTo(&cov); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSingularMatrix, err)
	}

	fit := &LogitFit{
		Coef:       make([]float64, p),
		StdErr:     make([]float64, p),
		Deviance:   dev,
		Iterations: iter,
	}
	for j := 0; j < p; j++ {
		v := cov.At(j, j)
		if !(v > 0) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: variance of coefficient %d is %g", core.ErrNonConvergence, j, v)
		}
		fit.Coef[j] = beta.AtVec(j)
		fit.StdErr[j] = math.Sqrt(v)
	}
	return fit, nil
}

// information returns X'WX with W = diag(mu(1-mu))
func information(x *mat.Dense, mu []float64) *mat.SymDense {
	n, p := x.Dims()
	data := make([]float64, p*p)
	for i := 0; i < n; i++ {
		w := weight(mu[i])
		row := x.RawRowView(i)
		for a := 0; a < p; a++ {
			wa := w * row[a]
			for b := a; b < p; b++ {
				data[a*p+b] += wa * row[b]
			}
		}
	}
	for a := 0; a < p; a++ {
		for b := 0; b < a; b++ {
			data[a*p+b] = data[b*p+a]
		}
	}
	return mat.NewSymDense(p, data)
}

// workingRHS returns X'Wz with working response z = eta + (y - mu)/w
func workingRHS(x *mat.Dense, y []float64, eta *mat.VecDense, mu []float64) *mat.VecDense {
	n, p := x.Dims()
	rhs := make([]float64, p)
	for i := 0; i < n; i++ {
		w := weight(mu[i])
		z := eta.AtVec(i) + (y[i]-mu[i])/w
		row := x.RawRowView(i)
		for j := 0; j < p; j++ {
			rhs[j] += row[j] * w * z
		}
	}
	return mat.NewVecDense(p, rhs)
}

func weight(m float64) float64 {
	w := m * (1 - m)
	if w < minWeight {
		return minWeight
	}
	return w
}

func deviance(y, mu []float64) float64 {
	dev := 0.0
	for i, yi := range y {
		m := math.Min(math.Max(mu[i], probEps), 1-probEps)
		if yi == 1 {
			dev -= 2 * math.Log(m)
		} else {
			dev -= 2 * math.Log(1-m)
		}
	}
	return dev
}

func sigmoid(eta float64) float64 {
	if eta >= 0 {
		return 1 / (1 + math.Exp(-eta))
	}
	e := math.Exp(eta)
	return e / (1 + e)
}
