package collection

import (
	"strconv"
	"strings"

	"github.com/atinyakov/MedKeeper/internal/models"
)

// Predicate reports whether item matches query. query is already trimmed
// and lowercased and is never empty.
type Predicate[T any] func(item T, query string) bool

// View is the visible slice of an authoritative collection.
type View[T any] struct {
	Items      []T
	Query      string
	Page       int
	PageSize   int
	TotalPages int
	// Filtered counts items matching Query before paging.
	Filtered int
	// Total counts the authoritative collection.
	Total int
}

// TotalPages returns max(1, ceil(n/size)). A non-positive size means a
// single page.
func TotalPages(n, size int) int {
	if size <= 0 || n <= 0 {
		return 1
	}
	return (n + size - 1) / size
}

// Derive filters all by query, clamps page into range and returns the
// visible slice. It has no side effects; all is never modified.
func Derive[T any](all []T, query string, page, size int, match Predicate[T]) View[T] {
	q := strings.ToLower(strings.TrimSpace(query))
	filtered := all
	if q != "" && match != nil {
		filtered = make([]T, 0, len(all))
		for _, it := range all {
			if match(it, q) {
				filtered = append(filtered, it)
			}
		}
	}

	pages := TotalPages(len(filtered), size)
	page = clamp(page, 1, pages)
	lo, hi := 0, len(filtered)
	if size > 0 {
		lo = (page - 1) * size
		hi = min(lo+size, len(filtered))
	}
	items := make([]T, hi-lo)
	copy(items, filtered[lo:hi])

	return View[T]{
		Items:      items,
		Query:      query,
		Page:       page,
		PageSize:   size,
		TotalPages: pages,
		Filtered:   len(filtered),
		Total:      len(all),
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// PatientMatch matches the name or the phone number.
func PatientMatch(p models.Patient, q string) bool {
	return strings.Contains(strings.ToLower(p.Name), q) ||
		strings.Contains(strings.ToLower(p.Phone), q)
}

// TestMatch matches the result label or the test id.
func TestMatch(t models.TestResult, q string) bool {
	return strings.Contains(strings.ToLower(t.Result), q) ||
		strings.Contains(strconv.FormatInt(t.ID, 10), q)
}
