package vector

import "fmt"

// SquaredL2 returns the squared Euclidean distance between a and b.
func SquaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

func checkDims(vectors [][]float32, dims int) error {
	for i, v := range vectors {
		if len(v) != dims {
			return fmt.Errorf("vector %d dimension mismatch: got %d, expected %d", i, len(v), dims)
		}
	}
	return nil
}
