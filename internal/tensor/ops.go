package tensor

import "math"

// Clamp limits every element to [lo, hi] in place.
func (t *Tensor) Clamp(lo, hi float32) {
	for i, v := range t.data {
		if v < lo {
			t.data[i] = lo
		} else if v > hi {
			t.data[i] = hi
		}
	}
}

// HasNonFinite reports whether any element is NaN or infinite.
func (t *Tensor) HasNonFinite() bool {
	for _, v := range t.data {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return true
		}
	}
	return false
}

// MaxAbs returns the largest absolute element value.
func (t *Tensor) MaxAbs() float32 {
	var m float32
	for _, v := range t.data {
		if v < 0 {
			v = -v
		}
		if v > m {
			m = v
		}
	}
	return m
}

// AddScaled performs t += scale * other element-wise. Shapes must match.
func (t *Tensor) AddScaled(other *Tensor, scale float32) {
	if !t.shape.Equal(other.shape) {
		panic("tensor: addScaled shape mismatch " + t.shape.String() + " != " + other.shape.String())
	}
	for i, v := range other.data {
		t.data[i] += scale * v
	}
}
