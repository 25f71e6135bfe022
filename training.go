package lovegp

import (
	"errors"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	badInputDim   = "lovegp: input dimension mismatch"
	badInOut      = "lovegp: inequal number of input and output samples"
	badStorageDim = "lovegp: bad storage dimension"
	badRank       = "lovegp: non-positive rank"
)

var (
	// ErrSingular is returned when the regularized kernel matrix is
	// singular or near singular.
	ErrSingular = errors.New("lovegp: kernel matrix singular or near singular")

	// ErrDimensionMismatch is returned when a query batch's feature
	// dimension does not match the training inputs.
	ErrDimensionMismatch = errors.New("lovegp: query dimension mismatch")

	// ErrStaleCache is returned when an inference call is made against a
	// cache that was invalidated and not rebuilt.
	ErrStaleCache = errors.New("lovegp: cache invalidated and not rebuilt")

	// ErrNumericalInstability is returned when the decomposition
	// iteration loses orthogonality, or the tridiagonal factor is not
	// positive where positivity is required. The caller may retry with a
	// smaller rank or more damping noise.
	ErrNumericalInstability = errors.New("lovegp: decomposition numerically unstable")
)

// TrainingSystem holds the fitted state of a Gaussian process that
// posterior queries are answered against: the noise-regularized kernel
// matrix between training inputs, its Cholesky factorization, and the
// solved residual vector. Immutable once constructed; re-training means
// constructing a new TrainingSystem and invalidating any caches built
// on the old one.
type TrainingSystem struct {
	kernel   Kerneler
	noise    float64
	inputDim int

	x *mat.Dense
	y []float64 // output data stored scaled

	meanY float64 // mean of the output data
	stdY  float64 // standard deviation of the output data

	k       *mat.SymDense // kernel matrix between inputs, noise on the diagonal
	cholK   *mat.Cholesky
	sigInvY *mat.VecDense
}

// NewTrainingSystem constructs the training-side state for the given
// kernel, input matrix (one row per sample), targets and noise. The
// targets are stored scaled to have a mean of zero and a variance of 1.
func NewTrainingSystem(kernel Kerneler, x mat.Matrix, y []float64, noise float64) (*TrainingSystem, error) {
	if kernel == nil {
		panic("lovegp: nil kernel")
	}
	if !(noise >= 0) {
		panic("lovegp: negative noise") // also handles NaN.
	}
	n, dim := x.Dims()
	if n != len(y) {
		panic(badInOut)
	}
	if n == 0 {
		panic("lovegp: no training samples")
	}

	ts := &TrainingSystem{
		kernel:   kernel,
		noise:    noise,
		inputDim: dim,
		x:        mat.DenseCopyOf(x),
	}

	ts.meanY, ts.stdY = stat.MeanStdDev(y, nil)
	if !(ts.stdY > 0) {
		ts.stdY = 1
	}
	ts.y = scaleY(nil, y, ts.meanY, ts.stdY)

	ts.k = mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := kernel.Kernel(ts.x.RawRowView(i), ts.x.RawRowView(j))
			if i == j {
				v += noise
			}
			ts.k.SetSym(i, j, v)
		}
	}

	ts.cholK = &mat.Cholesky{}
	if ok := ts.cholK.Factorize(ts.k); !ok {
		return nil, ErrSingular
	}
	ts.sigInvY = mat.NewVecDense(n, nil)
	if err := ts.cholK.SolveVecTo(ts.sigInvY, mat.NewVecDense(n, ts.y)); err != nil {
		return nil, ErrSingular
	}
	return ts, nil
}

// Len returns the number of training samples.
func (ts *TrainingSystem) Len() int { return len(ts.y) }

// Dim returns the feature dimension of the training inputs.
func (ts *TrainingSystem) Dim() int { return ts.inputDim }

// Noise returns the diagonal regularization term.
func (ts *TrainingSystem) Noise() float64 { return ts.noise }

// OutputScaling returns the mean and standard deviation the targets
// were scaled by.
func (ts *TrainingSystem) OutputScaling() (mean, std float64) {
	return ts.meanY, ts.stdY
}

// mulKVec computes dst = (K + noise*I) * v. All access to the training
// matrix from the decomposition goes through this product.
func (ts *TrainingSystem) mulKVec(dst, v *mat.VecDense) {
	dst.MulVec(ts.k, v)
}

// crossCov forms the covariance matrix between the training inputs and
// the query rows of x, one query per column.
func (ts *TrainingSystem) crossCov(x mat.Matrix) (*mat.Dense, error) {
	m, dim := x.Dims()
	if dim != ts.inputDim {
		return nil, ErrDimensionMismatch
	}
	n := len(ts.y)
	kStar := mat.NewDense(n, m, nil)
	row := make([]float64, dim)
	for j := 0; j < m; j++ {
		mat.Row(row, j, x)
		for i := 0; i < n; i++ {
			kStar.Set(i, j, ts.kernel.Kernel(ts.x.RawRowView(i), row))
		}
	}
	return kStar, nil
}

func scaleY(dst, y []float64, mean, std float64) []float64 {
	if dst == nil {
		dst = make([]float64, len(y))
	}
	if len(dst) != len(y) {
		panic(badStorageDim)
	}
	for i, v := range y {
		dst[i] = (v - mean) / std
	}
	return dst
}

func unscaleY(dst, y []float64, mean, std float64) []float64 {
	if dst == nil {
		dst = make([]float64, len(y))
	}
	if len(dst) != len(y) {
		panic(badStorageDim)
	}
	for i, v := range y {
		dst[i] = v*std + mean
	}
	return dst
}
