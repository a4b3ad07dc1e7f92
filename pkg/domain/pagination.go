package domain

// PaginatedResult is a limit/offset page of items with the total match count.
type PaginatedResult[T any] struct {
	Items  []T   `json:"items"`
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

// NewPaginatedResult builds a PaginatedResult, never returning a nil item slice.
func NewPaginatedResult[T any](items []T, total int64, limit, offset int) PaginatedResult[T] {
	if items == nil {
		items = []T{}
	}
	return PaginatedResult[T]{
		Items:  items,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}
}
