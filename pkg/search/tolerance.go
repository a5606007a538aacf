package search

import "sort"

// Less orders a before b when a is below b by more than tol. Tolerance
// fuzzes the left side only; it is not a symmetric window.
func Less(a, b, tol float64) bool { return a < b-tol }

// FindFirst returns the first position p with masses[p] >= m-tol, or
// len(masses) when there is none. masses must be sorted ascending.
func FindFirst(masses []float64, m, tol float64) int {
	return sort.Search(len(masses), func(p int) bool {
		return !Less(masses[p], m, tol)
	})
}

// Window returns the half-open range [first, last) of masses within tol of m.
// The range is found by FindFirst and then walked forward while
// masses[p] <= m+tol.
func Window(masses []float64, m, tol float64) (first, last int) {
	first = FindFirst(masses, m, tol)
	last = first
	for last < len(masses) && masses[last] <= m+tol {
		last++
	}
	return first, last
}
