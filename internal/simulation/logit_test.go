package simulation

import (
	"math"
	"math/rand/v2"
	"testing"

	"impactsim/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestFitLogit_RecoversCoefficients(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	truth := []float64{-0.5, 1.2, -0.8}
	n := 20000

	data := make([]float64, n*3)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x1 := float64(r.IntN(2))
		x2 := r.NormFloat64()
		data[i*3], data[i*3+1], data[i*3+2] = 1, x1, x2
		p := sigmoid(truth[0] + truth[1]*x1 + truth[2]*x2)
		if r.Float64() < p {
			y[i] = 1
		}
	}

	fit, err := FitLogit(mat.NewDense(n, 3, data), y, DefaultFitOptions())
	require.NoError(t, err)

	for j, want := range truth {
		assert.InDelta(t, want, fit.Coef[j], 0.1, "coefficient %d", j)
		assert.Greater(t, fit.StdErr[j], 0.0)
	}
	assert.Less(t, fit.PValue(1), 1e-6)
	assert.LessOrEqual(t, fit.Iterations, 10)
}

func TestFitLogit_NullEffectNotSignificant(t *testing.T) {
	r := rand.New(rand.NewPCG(5, 6))
	n := 5000
	data := make([]float64, n*2)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		data[i*2], data[i*2+1] = 1, float64(r.IntN(2))
		if r.Float64() < 0.4 {
			y[i] = 1
		}
	}

	fit, err := FitLogit(mat.NewDense(n, 2, data), y, DefaultFitOptions())
	require.NoError(t, err)
	assert.InDelta(t, math.Log(0.4/0.6), fit.Coef[0], 0.2)
	assert.InDelta(t, 0, fit.Coef[1], 0.2)
}

func TestFitLogit_SingularDesign(t *testing.T) {
	n := 50
	data := make([]float64, n*2)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		// Second column carries no information at all.
		data[i*2], data[i*2+1] = 1, 0
		y[i] = float64(i % 2)
	}

	_, err := FitLogit(mat.NewDense(n, 2, data), y, DefaultFitOptions())
	require.Error(t, err)
	assert.True(t, core.IsNonConvergenceError(err))
}

func TestFitLogit_IterationBudget(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 8))
	n := 500
	data := make([]float64, n*2)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x := r.NormFloat64()
		data[i*2], data[i*2+1] = 1, x
		if r.Float64() < sigmoid(2*x) {
			y[i] = 1
		}
	}

	_, err := FitLogit(mat.NewDense(n, 2, data), y, FitOptions{MaxIter: 1, Tolerance: 1e-12})
	require.Error(t, err)
	assert.True(t, core.IsNonConvergenceError(err))
}

func TestFitLogit_RejectsNonBinaryResponse(t *testing.T) {
	data := []float64{1, 0, 1, 1, 1, 0, 1, 1}
	_, err := FitLogit(mat.NewDense(4, 2, data), []float64{0, 1, 2, 0}, DefaultFitOptions())
	assert.Error(t, err)
}

func TestModelRatio(t *testing.T) {
	fit := &LogitFit{Coef: []float64{-1, -0.5, 0.3, -2}}
	want := sigmoid(-1.5) / sigmoid(-1)
	assert.InDelta(t, want, ModelRatio(fit), 1e-12)
	assert.Less(t, ModelRatio(fit), 1.0)
}

func TestSigmoid_Stable(t *testing.T) {
	assert.Equal(t, 0.5, sigmoid(0))
	assert.False(t, math.IsNaN(sigmoid(-1000)))
	assert.InDelta(t, 1, sigmoid(1000), 1e-12)
}
