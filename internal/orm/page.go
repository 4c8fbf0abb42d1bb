package orm

// DefaultPageSize is used when a non-positive page size is requested
const DefaultPageSize = 50

// Page is one slice of a paginated result
type Page[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

func newPage[T any](items []T, page, size int, total int64) Page[T] {
	pages := int(total) / size
	if int(total)%size != 0 {
		pages++
	}
	return Page[T]{Items: items, Page: page, PageSize: size, Total: total, TotalPages: pages}
}

// HasNext reports whether another page follows this one
func (p Page[T]) HasNext() bool {
	return p.Page < p.TotalPages
}
