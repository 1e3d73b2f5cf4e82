package evaluate

import "math"

// Confusion holds the binary confusion counts of one label.
type Confusion struct {
	TP, FP, FN, TN int
}

// MCC returns the Matthews correlation coefficient, or 0 when it is undefined.
func (c Confusion) MCC() float64 {
	tp, fp, fn, tn := float64(c.TP), float64(c.FP), float64(c.FN), float64(c.TN)
	den := (tp + fp) * (tp + fn) * (tn + fp) * (tn + fn)
	if den == 0 {
		return 0
	}
	return (tp*tn - fp*fn) / math.Sqrt(den)
}

// Precision returns TP/(TP+FP), or 0 when nothing was predicted.
func (c Confusion) Precision() float64 {
	if c.TP+c.FP == 0 {
		return 0
	}
	return float64(c.TP) / float64(c.TP+c.FP)
}

// Recall returns TP/(TP+FN), or 0 when the label never occurs.
func (c Confusion) Recall() float64 {
	if c.TP+c.FN == 0 {
		return 0
	}
	return float64(c.TP) / float64(c.TP+c.FN)
}

// Support is the number of rows whose truth carries the label.
func (c Confusion) Support() int {
	return c.TP + c.FN
}

// weightedAverage returns sum(v*w)/sum(w), or NaN when the weights sum to 0.
func weightedAverage(values []float64, weights []int) float64 {
	var num, den float64
	for i, v := range values {
		num += v * float64(weights[i])
		den += float64(weights[i])
	}
	if den == 0 {
		return math.NaN()
	}
	return num / den
}
