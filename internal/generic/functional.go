package generic

// Filter returns a new slice holding the elements of s for which f returns true.
// The input slice is not modified.
func Filter[T any](s []T, f func(T) bool) []T {
	res := make([]T, 0, len(s))

	for _, v := range s {
		if f(v) {
			res = append(res, v)
		}
	}

	return res
}

// Unique returns the elements of s without duplicates and empty values, keeping
// the order of the first occurrence.
func Unique[T comparable](s []T) []T {
	var zero T

	seen := make(map[T]struct{}, len(s))
	res := make([]T, 0, len(s))

	for _, v := range s {
		if v == zero {
			continue
		}

		if _, ok := seen[v]; ok {
			continue
		}

		seen[v] = struct{}{}
		res = append(res, v)
	}

	return res
}
