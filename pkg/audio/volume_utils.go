package audio

import "math"

// volumeToPower maps a linear 0..1 volume to the base-2 exponent used by
// effects.Volume. Unity gain is 0.
func volumeToPower(vol float64) float64 {
	if vol <= 0.01 {
		return -10
	}
	return math.Log2(vol)
}

func clampVolume(vol float64) float64 {
	switch {
	case vol < 0:
		return 0
	case vol > 1:
		return 1
	}
	return vol
}
