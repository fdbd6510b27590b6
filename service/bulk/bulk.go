// service/bulk/bulk.go
package bulk

// ItemError records one failed item. ID is nil when the item had no
// identifier yet (create payloads).
type ItemError struct {
	ID      *int64 `json:"id"`
	Message string `json:"message"`
}

// Result partitions a batch outcome. Both slices may be empty but are never
// nil, and len(Succeeded)+len(Errors) always equals the input length.
type Result[R any] struct {
	Succeeded []R         `json:"succeeded"`
	Errors    []ItemError `json:"errors"`
}

// Run applies op to every item sequentially. A failed item is downgraded to
// an ItemError and never aborts the remaining items; duplicate items are
// each processed independently, the later one seeing the state the earlier
// one left behind.
func Run[T, R any](items []T, id func(T) *int64, op func(T) (R, error)) Result[R] {
	res := Result[R]{
		Succeeded: make([]R, 0, len(items)),
		Errors:    []ItemError{},
	}
	for _, item := range items {
		out, err := op(item)
		if err != nil {
			res.Errors = append(res.Errors, ItemError{ID: id(item), Message: err.Error()})
			continue
		}
		res.Succeeded = append(res.Succeeded, out)
	}
	return res
}

// Ref adapts a plain id for an ItemError pointer.
func Ref(id int64) *int64 { return &id }
