package lovegp

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Kerneler computes the covariance between two input locations. The
// hyperparameters are considered fixed; a TrainingSystem built from a
// Kerneler must be discarded if the hyperparameters change.
type Kerneler interface {
	Kernel(x, y []float64) float64
}

var _ Kerneler = SqExpIso{}

// SqExpIso is an isotropic squared exponential kernel,
//
//	k(x,y) = variance * exp(-||x-y||^2 / (2*l^2))
//
// Logs are used for improved numerical conditioning.
type SqExpIso struct {
	LogVariance float64 // Log of the variance of the kernel
	LogLength   float64 // Log of the length scale of the kernel
}

func (k SqExpIso) Kernel(x, y []float64) float64 {
	if len(x) != len(y) {
		panic(badInputDim)
	}
	norm := floats.Distance(x, y, 2)
	logNorm := math.Log(norm)
	logExp := -math.Exp(2*logNorm - 2*k.LogLength - math.Ln2)
	return math.Exp(2*k.LogVariance + logExp)
}

var _ Kerneler = Matern52{}

// Matern52 is an isotropic Matern 5/2 kernel,
//
//	k(x,y) = variance * (1 + a + a^2/3) * exp(-a),  a = sqrt(5)*||x-y||/l
type Matern52 struct {
	LogVariance float64 // Log of the variance of the kernel
	LogLength   float64 // Log of the length scale of the kernel
}

func (k Matern52) Kernel(x, y []float64) float64 {
	if len(x) != len(y) {
		panic(badInputDim)
	}
	a := math.Sqrt(5) * floats.Distance(x, y, 2) / math.Exp(k.LogLength)
	return math.Exp(2*k.LogVariance-a) * (1 + a + a*a/3)
}
