// Package lovegp computes approximate Gaussian-process posterior
// covariances and samples in time independent of the number of repeated
// queries, by caching a low-rank root decomposition of the training
// matrix (the LOVE construction) and answering every subsequent query
// from the cached factor and the query's cross-covariance alone.
package lovegp

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

type cacheState int

const (
	// cacheCold: no decomposition yet; the first query pays the full
	// setup cost by building lazily.
	cacheCold cacheState = iota
	// cacheReady: decomposition built and valid.
	cacheReady
	// cacheStale: explicitly invalidated; queries fail until Build is
	// called again, so the re-setup cost stays explicit.
	cacheStale
)

// FastPosteriorCache answers repeated predictive-(co)variance and
// posterior-sampling queries against one TrainingSystem. After a
// one-time setup of O(n*k^2 + n^2*k) it serves each batch of m queries
// in O(n*m*k) instead of the O(n^2*m) exact solve, with accuracy
// monotone in the rank k.
//
// Covariance and Sample consume the same cached decomposition; there is
// no way for one to see a rebuilt factor while the other sees a stale
// one. The mean is never approximated.
//
// A cache is not safe for concurrent use. Callers must serialize
// Build/Invalidate against queries.
type FastPosteriorCache struct {
	ts   *TrainingSystem
	rank int

	state cacheState
	// root is the n x k' factor with root*root^T ~= (K + noise*I)^-1.
	// It is the query-independent state every fast answer is assembled
	// from; k' <= rank if the decomposition truncated early.
	root *mat.Dense

	matvecs int
}

// NewFastPosteriorCache returns a cold cache bound to ts with the given
// decomposition rank. The rank is the accuracy/speed dial: accuracy is
// monotone non-decreasing in it, setup and per-query cost grow with it.
func NewFastPosteriorCache(ts *TrainingSystem, rank int) *FastPosteriorCache {
	if rank <= 0 {
		panic(badRank)
	}
	return &FastPosteriorCache{ts: ts, rank: rank}
}

// Rank returns the configured decomposition rank.
func (c *FastPosteriorCache) Rank() int { return c.rank }

// MatVecCount reports how many products against the training matrix the
// cache has performed. Setup is the only consumer of such products, so
// the count stays flat across queries once the cache is built.
func (c *FastPosteriorCache) MatVecCount() int { return c.matvecs }

// Build computes the rank-k root decomposition of the regularized
// training matrix through matrix-vector products only, and stores it as
// the reusable cache state. It fails with ErrNumericalInstability if
// the iteration loses orthogonality or the tridiagonal factor is not
// positive definite; the caller may retry with a smaller rank or a
// larger noise term. On failure the cache is left unbuilt.
func (c *FastPosteriorCache) Build() error {
	n := c.ts.Len()
	start := mat.NewVecDense(n, nil)
	start.CopyVec(c.ts.sigInvY)
	if mat.Norm(start, 2) == 0 {
		// Degenerate residual; fall back to a constant start vector so
		// Build stays deterministic.
		for i := 0; i < n; i++ {
			start.SetVec(i, 1)
		}
	}
	mul := func(dst, v *mat.VecDense) {
		c.matvecs++
		c.ts.mulKVec(dst, v)
	}
	q, alpha, beta, err := lanczos(mul, n, c.rank, start)
	if err != nil {
		return err
	}
	root, err := rootFactor(q, alpha, beta, true, false)
	if err != nil {
		return err
	}
	c.root = root
	c.state = cacheReady
	return nil
}

// Invalidate discards the decomposition. Call it whenever the
// TrainingSystem it was built from is replaced (re-training). Until
// Build is called again every query fails with ErrStaleCache; there is
// no implicit rebuild after an invalidation, so the setup cost never
// hides inside a query.
func (c *FastPosteriorCache) Invalidate() {
	c.root = nil
	c.state = cacheStale
}

func (c *FastPosteriorCache) ensure() error {
	switch c.state {
	case cacheReady:
		return nil
	case cacheStale:
		return ErrStaleCache
	default:
		return c.Build()
	}
}

// Mean predicts the posterior mean at the query rows of x. It is always
// exact and does not touch the decomposition.
func (c *FastPosteriorCache) Mean(yPred []float64, x mat.Matrix) ([]float64, error) {
	return c.ts.Mean(yPred, x)
}

// Covariance computes the approximate posterior covariance between the
// query rows of x from the cached factor,
//
//	K(x_*, x_*) - (R^T k_*)^T (R^T k_*)
//
// touching the training set only through the query's cross-covariance.
// A cold cache builds lazily first; an invalidated cache returns
// ErrStaleCache. The result is symmetric but is not guaranteed positive
// semidefinite at small ranks; callers that need definiteness may clip
// small negative eigenvalues.
func (c *FastPosteriorCache) Covariance(dst *mat.SymDense, x mat.Matrix) (*mat.SymDense, error) {
	if err := c.ensure(); err != nil {
		return nil, err
	}
	kStar, err := c.ts.crossCov(x)
	if err != nil {
		return nil, err
	}
	m, _ := x.Dims()

	var w mat.Dense // k' x m
	w.Mul(c.root.T(), kStar)
	var wtw mat.Dense
	wtw.Mul(w.T(), &w)

	dst = c.ts.queryCov(dst, x)
	for i := 0; i < m; i++ {
		for j := i; j < m; j++ {
			dst.SetSym(i, j, dst.At(i, j)-wtw.At(i, j))
		}
	}
	_, stdY := c.ts.OutputScaling()
	dst.ScaleSym(stdY*stdY, dst)
	return dst, nil
}

// Variance computes only the approximate posterior variances at the
// query rows of x, storing them in-place into dst. If dst is nil new
// memory is allocated. Cheaper than Covariance when the off-diagonal
// terms are not needed. Variances may be slightly negative at small
// ranks; see Covariance.
func (c *FastPosteriorCache) Variance(dst []float64, x mat.Matrix) ([]float64, error) {
	if err := c.ensure(); err != nil {
		return nil, err
	}
	kStar, err := c.ts.crossCov(x)
	if err != nil {
		return nil, err
	}
	m, dim := x.Dims()
	if dst == nil {
		dst = make([]float64, m)
	}
	if len(dst) != m {
		panic(badStorageDim)
	}

	var w mat.Dense // k' x m
	w.Mul(c.root.T(), kStar)

	_, stdY := c.ts.OutputScaling()
	row := make([]float64, dim)
	for j := 0; j < m; j++ {
		mat.Row(row, j, x)
		v := c.ts.kernel.Kernel(row, row) + c.ts.noise
		col := w.ColView(j)
		v -= mat.Dot(col, col)
		dst[j] = v * stdY * stdY
	}
	return dst, nil
}

// StdDev computes approximate posterior standard deviations, clipping
// any small negative variances to zero before the square root.
func (c *FastPosteriorCache) StdDev(dst []float64, x mat.Matrix) ([]float64, error) {
	dst, err := c.Variance(dst, x)
	if err != nil {
		return nil, err
	}
	for i, v := range dst {
		dst[i] = math.Sqrt(math.Max(v, 0))
	}
	return dst, nil
}
