package lovegp

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	// Maximum permitted inner product between the new basis vector and
	// any prior one, after reorthogonalization, relative to its norm.
	orthoTol = 1e-8

	// Residual norms below breakTol relative to the tridiagonal scale
	// stop the iteration: the Krylov subspace is (numerically) invariant
	// and further vectors carry no information.
	breakTol = 1e-12
)

// lanczos tridiagonalizes the symmetric n x n operator reached through
// mulVec, running at most k steps from the given start vector. The
// operator is never materialized; mulVec must compute dst = A*v.
//
// Returns the orthonormal basis Q (n x k') and the diagonal and
// off-diagonal of the tridiagonal T = Q^T A Q. k' may be smaller than k
// if the iteration finds an invariant subspace early; that truncation is
// exact, not an accuracy loss. Each new vector is reorthogonalized
// against the full basis twice; if orthogonality is still lost beyond
// tolerance the iteration fails with ErrNumericalInstability.
func lanczos(mulVec func(dst, v *mat.VecDense), n, k int, start *mat.VecDense) (q *mat.Dense, alpha, beta []float64, err error) {
	if k <= 0 {
		panic(badRank)
	}
	if k > n {
		k = n
	}
	if start.Len() != n {
		panic(badStorageDim)
	}

	q = mat.NewDense(n, k, nil)
	alpha = make([]float64, 0, k)
	beta = make([]float64, 0, k-1)

	v := mat.NewVecDense(n, nil)
	v.CopyVec(start)
	nrm := mat.Norm(v, 2)
	if nrm == 0 {
		panic("lovegp: zero start vector")
	}
	v.ScaleVec(1/nrm, v)

	w := mat.NewVecDense(n, nil)
	var scale float64 // magnitude of the tridiagonal entries seen so far
	for j := 0; j < k; j++ {
		q.SetCol(j, v.RawVector().Data)

		mulVec(w, v)
		a := mat.Dot(w, v)
		if math.IsNaN(a) || math.IsInf(a, 0) {
			return nil, nil, nil, ErrNumericalInstability
		}
		alpha = append(alpha, a)
		if s := math.Abs(a); s > scale {
			scale = s
		}

		w.AddScaledVec(w, -a, v)
		if j > 0 {
			w.AddScaledVec(w, -beta[j-1], q.ColView(j-1))
		}
		// Reorthogonalize against the whole basis, twice.
		for pass := 0; pass < 2; pass++ {
			for i := 0; i <= j; i++ {
				qi := q.ColView(i)
				w.AddScaledVec(w, -mat.Dot(w, qi), qi)
			}
		}

		b := mat.Norm(w, 2)
		if b <= breakTol*math.Max(scale, 1) {
			// Invariant subspace reached.
			q = q.Slice(0, n, 0, j+1).(*mat.Dense)
			return q, alpha, beta, nil
		}
		if j == k-1 {
			break
		}
		for i := 0; i <= j; i++ {
			if math.Abs(mat.Dot(w, q.ColView(i))) > orthoTol*b {
				return nil, nil, nil, ErrNumericalInstability
			}
		}
		beta = append(beta, b)
		if b > scale {
			scale = b
		}
		v.ScaleVec(1/b, w)
	}
	return q, alpha, beta, nil
}

// rootFactor turns a Lanczos tridiagonalization into a dense root
// factor R = Q V L, where T = V diag(l) V^T is the eigendecomposition
// of the tridiagonal and L is diag(l)^(1/2) or diag(l)^(-1/2) depending
// on inverse. R R^T then approximates A (inverse false) or A^-1
// (inverse true) on the Krylov subspace.
//
// A non-positive eigenvalue fails with ErrNumericalInstability when the
// inverse root is requested. For the forward root, clip zeroes negative
// eigenvalues instead of failing; the low-rank predictive covariance is
// not guaranteed sign-definite at small ranks, and clipping is the
// documented remedy when drawing samples from it.
func rootFactor(q *mat.Dense, alpha, beta []float64, inverse, clip bool) (*mat.Dense, error) {
	k := len(alpha)
	t := mat.NewSymDense(k, nil)
	for i, a := range alpha {
		t.SetSym(i, i, a)
		if i < len(beta) {
			t.SetSym(i, i+1, beta[i])
		}
	}

	var eig mat.EigenSym
	if !eig.Factorize(t, true) {
		return nil, ErrNumericalInstability
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	for i, v := range vals {
		switch {
		case v > 0:
			if inverse {
				vals[i] = 1 / math.Sqrt(v)
			} else {
				vals[i] = math.Sqrt(v)
			}
		case clip && !inverse:
			vals[i] = 0
		default:
			return nil, ErrNumericalInstability
		}
	}

	// Scale the eigenvector columns, then lift back to R^n.
	var scaled mat.Dense
	scaled.Apply(func(_, j int, v float64) float64 { return v * vals[j] }, &vecs)
	n, _ := q.Dims()
	r := mat.NewDense(n, k, nil)
	r.Mul(q, &scaled)
	return r, nil
}
