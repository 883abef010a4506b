package utils

import "golang.org/x/exp/constraints"

// Min returns the smaller value between two numbers.
func Min[T constraints.Ordered](x, y T) T {
	if x < y {
		return x
	}
	return y
}

// Max returns the bigger value between two numbers.
func Max[T constraints.Ordered](x, y T) T {
	if x > y {
		return x
	}
	return y
}

// Abs returns the absolute value of x.
func Abs[T constraints.Signed | constraints.Float](x T) T {
	if x < 0 {
		return -x
	}
	return x
}

// Clamp restricts x to the [lo, hi] interval.
func Clamp[T constraints.Ordered](x, lo, hi T) T {
	return Max(lo, Min(x, hi))
}

// Remap maps a value from the [lo1, hi1] range into the [lo2, hi2] range.
func Remap(x, lo1, hi1, lo2, hi2 float64) float64 {
	if hi1 == lo1 {
		return lo2
	}
	return lo2 + (x-lo1)*(hi2-lo2)/(hi1-lo1)
}
