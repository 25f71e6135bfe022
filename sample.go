package lovegp

import (
	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"
)

// Sample draws numSamples approximate posterior samples at the query
// rows of x, one sample per column of the returned matrix. It consumes
// the same cached decomposition as Covariance: the approximate
// predictive covariance is assembled from the cached factor, a low-rank
// root of it is extracted with the same iteration used at setup
// (negative eigenvalues clipped), and samples are that root applied to
// standard-normal vectors plus the exact predictive mean. No dense
// factorization of the predictive covariance is performed.
//
// A cold cache builds lazily; an invalidated cache returns
// ErrStaleCache. If src is nil the global random source is used.
func (c *FastPosteriorCache) Sample(x mat.Matrix, numSamples int, src rand.Source) (*mat.Dense, error) {
	if numSamples <= 0 {
		panic("lovegp: non-positive sample count")
	}
	cov, err := c.Covariance(nil, x)
	if err != nil {
		return nil, err
	}
	yPred, err := c.ts.Mean(nil, x)
	if err != nil {
		return nil, err
	}
	m, _ := x.Dims()

	// Root of the m x m approximate covariance through its products.
	// The rank is capped by both the batch size and the cache rank; the
	// iteration truncates on its own when the covariance is effectively
	// lower rank than that.
	mul := func(dst, v *mat.VecDense) {
		dst.MulVec(cov, v)
	}
	start := mat.NewVecDense(m, nil)
	for i := 0; i < m; i++ {
		start.SetVec(i, 1)
	}
	k := c.rank
	if k > m {
		k = m
	}
	q, alpha, beta, err := lanczos(mul, m, k, start)
	if err != nil {
		return nil, err
	}
	root, err := rootFactor(q, alpha, beta, false, true)
	if err != nil {
		return nil, err
	}

	_, kr := root.Dims()
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	out := mat.NewDense(m, numSamples, nil)
	z := mat.NewVecDense(kr, nil)
	col := mat.NewVecDense(m, nil)
	for s := 0; s < numSamples; s++ {
		for i := 0; i < kr; i++ {
			z.SetVec(i, normal.Rand())
		}
		col.MulVec(root, z)
		for i := 0; i < m; i++ {
			out.Set(i, s, yPred[i]+col.AtVec(i))
		}
	}
	return out, nil
}

// SampleExact draws posterior samples through a dense factorization of
// the exact predictive covariance, one sample per column. This is the
// reference path the cached sampler is measured against; it pays the
// full solve and factorization on every call.
func (ts *TrainingSystem) SampleExact(x mat.Matrix, numSamples int, src rand.Source) (*mat.Dense, error) {
	if numSamples <= 0 {
		panic("lovegp: non-positive sample count")
	}
	cov, err := ts.Covariance(nil, x)
	if err != nil {
		return nil, err
	}
	yPred, err := ts.Mean(nil, x)
	if err != nil {
		return nil, err
	}
	normal, ok := distmv.NewNormal(yPred, cov, src)
	if !ok {
		return nil, ErrSingular
	}
	m, _ := x.Dims()
	out := mat.NewDense(m, numSamples, nil)
	buf := make([]float64, m)
	for s := 0; s < numSamples; s++ {
		normal.Rand(buf)
		out.SetCol(s, buf)
	}
	return out, nil
}
