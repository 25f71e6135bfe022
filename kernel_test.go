package lovegp

import (
	"math"
	"testing"
)

func TestSqExpIso(t *testing.T) {
	ker := SqExpIso{LogVariance: 0, LogLength: 0}
	x := []float64{1, -1}

	if v := ker.Kernel(x, x); math.Abs(v-1) > 1e-15 {
		t.Errorf("self kernel not equal to variance: got %v", v)
	}
	near := ker.Kernel(x, []float64{1.1, -1})
	far := ker.Kernel(x, []float64{3, -1})
	if !(near > far) {
		t.Errorf("kernel does not decay with distance: near %v, far %v", near, far)
	}
	y := []float64{0.3, 0.7}
	if ker.Kernel(x, y) != ker.Kernel(y, x) {
		t.Errorf("kernel not symmetric")
	}
}

func TestMatern52(t *testing.T) {
	ker := Matern52{LogVariance: 0.5, LogLength: 0}
	x := []float64{0.2}

	want := math.Exp(2 * 0.5)
	if v := ker.Kernel(x, x); math.Abs(v-want) > 1e-15 {
		t.Errorf("self kernel not equal to variance: got %v, want %v", v, want)
	}
	near := ker.Kernel(x, []float64{0.4})
	far := ker.Kernel(x, []float64{2})
	if !(near > far) {
		t.Errorf("kernel does not decay with distance: near %v, far %v", near, far)
	}
	y := []float64{-1.4}
	if ker.Kernel(x, y) != ker.Kernel(y, x) {
		t.Errorf("kernel not symmetric")
	}
}
