package domain

// Page is one server page of saved records. A Page is treated as an
// immutable value: flows replace it whole on every fetch.
type Page struct {
	Items  []SavedRecord
	Number int
	Size   int
	Total  int
}

// EmptyPage is the state shown before any fetch and after a failed one.
func EmptyPage(size int) Page {
	return Page{Number: 1, Size: size}
}

// TotalPages is ceil(Total / Size).
func (p Page) TotalPages() int {
	return TotalPages(p.Total, p.Size)
}

// HasPrev reports whether a previous page exists.
func (p Page) HasPrev() bool {
	return p.Number > 1
}

// HasNext reports whether a following page exists.
func (p Page) HasNext() bool {
	return p.Number < p.TotalPages()
}

// TotalPages returns ceil(count / size), or 0 when size is not positive.
func TotalPages(count, size int) int {
	if size <= 0 || count <= 0 {
		return 0
	}
	return (count + size - 1) / size
}
