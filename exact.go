package lovegp

import (
	"gonum.org/v1/gonum/mat"
)

// Mean predicts the posterior mean at the query rows of x, storing the
// result in-place into yPred. If yPred is nil new memory is allocated.
// The mean is always computed at full exactness; the fast path never
// approximates it.
func (ts *TrainingSystem) Mean(yPred []float64, x mat.Matrix) ([]float64, error) {
	// y_mean = k_*^T K^-1 y
	// where k_* is the matrix of kernels between the queries and the
	// training points, and K^-1 y is stored.
	m, _ := x.Dims()
	if yPred == nil {
		yPred = make([]float64, m)
	}
	if len(yPred) != m {
		panic(badStorageDim)
	}
	kStar, err := ts.crossCov(x)
	if err != nil {
		return nil, err
	}
	yPredVec := mat.NewVecDense(m, yPred)
	yPredVec.MulVec(kStar.T(), ts.sigInvY)
	return unscaleY(yPred, yPred, ts.meanY, ts.stdY), nil
}

// Covariance computes the exact posterior covariance between the query
// rows of x,
//
//	K(x_*, x_*) - k(x_*, x) K(x,x)^-1 k(x, x_*)
//
// via a Cholesky solve against the full training matrix. This is the
// reference the cached path approximates, and the cost every call pays
// without a cache. If dst is nil a new matrix is allocated.
func (ts *TrainingSystem) Covariance(dst *mat.SymDense, x mat.Matrix) (*mat.SymDense, error) {
	m, _ := x.Dims()
	kStar, err := ts.crossCov(x)
	if err != nil {
		return nil, err
	}
	var tmp mat.Dense
	if err := ts.cholK.SolveTo(&tmp, kStar); err != nil {
		return nil, ErrSingular
	}
	var tmp2 mat.Dense
	tmp2.Mul(kStar.T(), &tmp)

	dst = ts.queryCov(dst, x)
	for i := 0; i < m; i++ {
		for j := i; j < m; j++ {
			dst.SetSym(i, j, dst.At(i, j)-tmp2.At(i, j))
		}
	}
	// Scale back to the units of y.
	dst.ScaleSym(ts.stdY*ts.stdY, dst)
	return dst, nil
}

// queryCov forms K(x_*, x_*) with noise on the diagonal, in scaled
// units.
func (ts *TrainingSystem) queryCov(dst *mat.SymDense, x mat.Matrix) *mat.SymDense {
	m, dim := x.Dims()
	if dst == nil {
		dst = mat.NewSymDense(m, nil)
	} else if r, _ := dst.Dims(); r != m {
		panic(badStorageDim)
	}
	rowi := make([]float64, dim)
	rowj := make([]float64, dim)
	for i := 0; i < m; i++ {
		mat.Row(rowi, i, x)
		for j := i; j < m; j++ {
			mat.Row(rowj, j, x)
			v := ts.kernel.Kernel(rowi, rowj)
			if i == j {
				v += ts.noise
			}
			dst.SetSym(i, j, v)
		}
	}
	return dst
}
