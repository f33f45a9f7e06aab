package opt

// Minimizer searches a bounded continuous space for the lowest cost.
type Minimizer interface {
	// Run minimizes eval over the box [lower, upper] of dimension dim and
	// returns the best parameters and their cost.
	Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64)
}
