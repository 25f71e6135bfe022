package lovegp

import (
	"math"
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// empiricalCov computes the sample covariance of draws stored one per
// column.
func empiricalCov(samples *mat.Dense) *mat.SymDense {
	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, samples.T(), nil)
	return &cov
}

func TestSampleEmpiricalCovariance(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping 20000-draw sampling test in short mode")
	}
	ts := syntheticSystem(t, 60, 1e-2, 8)
	// Irregular spacing keeps the query covariance generic.
	xq := mat.NewDense(4, 1, []float64{0.3, 0.9, 1.7, 2.6})
	const nSamples = 20000

	truth, err := ts.Covariance(nil, xq)
	if err != nil {
		t.Fatalf("exact covariance failed: %v", err)
	}

	c := NewFastPosteriorCache(ts, 40)
	cached, err := c.Sample(xq, nSamples, rand.NewSource(21))
	if err != nil {
		t.Fatalf("cached sampling failed: %v", err)
	}
	exact, err := ts.SampleExact(xq, nSamples, rand.NewSource(22))
	if err != nil {
		t.Fatalf("exact sampling failed: %v", err)
	}

	if mae := maeSym(empiricalCov(cached), truth); mae > 0.01 {
		t.Errorf("cached-path empirical covariance off: mae=%v", mae)
	}
	if mae := maeSym(empiricalCov(exact), truth); mae > 0.01 {
		t.Errorf("exact-path empirical covariance off: mae=%v", mae)
	}

	// Both paths must also agree on the mean.
	want, err := ts.Mean(nil, xq)
	if err != nil {
		t.Fatalf("mean failed: %v", err)
	}
	m, _ := xq.Dims()
	for i := 0; i < m; i++ {
		got := stat.Mean(mat.Row(nil, i, cached), nil)
		if math.Abs(got-want[i]) > 0.02 {
			t.Errorf("cached-path sample mean off at %d: got %v, want %v", i, got, want[i])
		}
	}
}

func TestSampleLowRankFinite(t *testing.T) {
	// At very small ranks the approximate covariance may be indefinite;
	// sampling must clip rather than produce NaNs.
	ts := syntheticSystem(t, 50, 1e-2, 10)
	xq := queryGrid(6)
	c := NewFastPosteriorCache(ts, 2)

	out, err := c.Sample(xq, 25, rand.NewSource(3))
	if err != nil {
		t.Fatalf("low-rank sampling failed: %v", err)
	}
	r, cc := out.Dims()
	if r != 6 || cc != 25 {
		t.Fatalf("wrong sample shape: %d x %d", r, cc)
	}
	for i := 0; i < r; i++ {
		for j := 0; j < cc; j++ {
			if v := out.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("non-finite sample at (%d,%d): %v", i, j, v)
			}
		}
	}
}

func TestSampleShapeAndDeterminism(t *testing.T) {
	ts := syntheticSystem(t, 40, 1e-2, 12)
	xq := queryGrid(5)
	c := NewFastPosteriorCache(ts, 20)

	a, err := c.Sample(xq, 8, rand.NewSource(42))
	if err != nil {
		t.Fatalf("sampling failed: %v", err)
	}
	b, err := c.Sample(xq, 8, rand.NewSource(42))
	if err != nil {
		t.Fatalf("sampling failed: %v", err)
	}
	if !mat.Equal(a, b) {
		t.Errorf("sampling not deterministic for a fixed source")
	}
}
