package synthesis

import "math"

// adam is the canvas optimizer: Adam with bias-corrected first and second
// moment estimates, applied element-wise to the canvas pixels.
//
//	m_t = beta1*m_{t-1} + (1-beta1)*g
//	v_t = beta2*v_{t-1} + (1-beta2)*g²
//	x  -= lr * (m_t/(1-beta1^t)) / (sqrt(v_t/(1-beta2^t)) + eps)
//
// One instance belongs to exactly one synthesis run; the moment slices are
// part of the per-request state and never shared.
type adam struct {
	lr    float32
	beta1 float32
	beta2 float32
	eps   float32
	t     int
	m     []float32
	v     []float32
}

func newAdam(numElements int, lr float64) *adam {
	return &adam{
		lr:    float32(lr),
		beta1: 0.9,
		beta2: 0.999,
		eps:   1e-8,
		m:     make([]float32, numElements),
		v:     make([]float32, numElements),
	}
}

// step applies one update to param in place. grad must be finite; the
// engine checks that before calling.
func (a *adam) step(param, grad []float32) {
	a.t++
	bc1 := float32(1 - math.Pow(float64(a.beta1), float64(a.t)))
	bc2 := float32(1 - math.Pow(float64(a.beta2), float64(a.t)))

	for i := range param {
		g := grad[i]
		a.m[i] = a.beta1*a.m[i] + (1-a.beta1)*g
		a.v[i] = a.beta2*a.v[i] + (1-a.beta2)*g*g

		mHat := a.m[i] / bc1
		vHat := a.v[i] / bc2
		param[i] -= a.lr * mHat / (float32(math.Sqrt(float64(vHat))) + a.eps)
	}
}
