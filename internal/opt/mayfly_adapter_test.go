package opt

import (
	"math"
	"testing"
)

// Shifted sphere with its minimum at (1, 2, 3).
func shiftedSphere(x []float64) float64 {
	var sum float64
	for i, v := range x {
		d := v - float64(i+1)
		sum += d * d
	}
	return sum
}

func TestMayflyAdapterOnShiftedSphere(t *testing.T) {
	minimizer := NewMayfly(100, 20, 42)

	lower := []float64{-10, 0, 2}
	upper := []float64{10, 5, 4}

	best, cost := minimizer.Run(shiftedSphere, lower, upper, 3)

	if len(best) != 3 {
		t.Fatalf("Expected %d parameters, got %d", 3, len(best))
	}
	if cost > 0.1 {
		t.Errorf("Expected cost near 0, got %f", cost)
	}
	for i, v := range best {
		if v < lower[i] || v > upper[i] {
			t.Errorf("Parameter %d = %f outside [%f, %f]", i, v, lower[i], upper[i])
		}
		if math.Abs(v-float64(i+1)) > 1.0 {
			t.Errorf("Parameter %d = %f, expected near %d", i, v, i+1)
		}
	}
}

func TestMayflyAdapterDeterministic(t *testing.T) {
	lower := []float64{-5, -5}
	upper := []float64{5, 5}

	_, cost1 := NewMayfly(50, 20, 123).Run(shiftedSphere, lower, upper, 2)
	_, cost2 := NewMayfly(50, 20, 123).Run(shiftedSphere, lower, upper, 2)

	if cost1 != cost2 {
		t.Errorf("Non-deterministic: cost1=%f, cost2=%f", cost1, cost2)
	}
}
