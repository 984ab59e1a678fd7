package util

import "golang.org/x/exp/constraints"

// Clamp limits v to the closed interval [lo, hi].
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	return min(max(v, lo), hi)
}

// InRange reports whether lo <= v <= hi.
func InRange[T constraints.Ordered](v, lo, hi T) bool {
	return v >= lo && v <= hi
}
