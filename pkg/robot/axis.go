package robot

// AxisRange is the raw sample range reported by an analog stick axis.
type AxisRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// DefaultAxisRange matches a signed 16-bit evdev axis.
var DefaultAxisRange = AxisRange{Min: -32768, Max: 32767}

// Normalize converts a raw axis sample to a value in the range [-1, 1].
func (r AxisRange) Normalize(raw int) float64 {
	return Normalize(raw, r.Min, r.Max)
}

// Normalize maps raw linearly from [min, max] to [-1, 1] and clamps the
// result. max must be greater than min.
func Normalize(raw, min, max int) float64 {
	n := float64(raw-min)/float64(max-min)*2 - 1
	return Clamp(n, -1, 1)
}

// Clamp truncates value to [lo, hi].
func Clamp(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

// ClampUnit truncates value to [0, 1], the range a single track accepts.
func ClampUnit(value float64) float64 {
	return Clamp(value, 0, 1)
}
