package resultview

import (
	"fmt"
	"slices"

	"workbench/internal/domain"
)

// Direction is a sort direction.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// DefaultPageSize is the page size of a new View.
const DefaultPageSize = 50

// PageSizes are the page sizes a View accepts.
var PageSizes = []int{25, 50, 100}

// View is a sorted, paginated window over one query result. The result itself is
// never modified; sorting permutes an index slice.
//
// A View is not safe for concurrent use.
type View struct {
	result   *domain.QueryResult
	order    []int
	sortKey  string
	sortDir  Direction
	page     int
	pageSize int
}

// New creates a View over result in its original row order. A nil result gives
// an empty view.
func New(result *domain.QueryResult) *View {
	if result == nil {
		result = &domain.QueryResult{Columns: []string{}, Rows: []domain.Row{}}
	}
	v := &View{result: result, page: 1, pageSize: DefaultPageSize}
	v.resetOrder()
	return v
}

func (v *View) resetOrder() {
	v.order = make([]int, len(v.result.Rows))
	for i := range v.order {
		v.order[i] = i
	}
}

// Result returns the underlying result.
func (v *View) Result() *domain.QueryResult { return v.result }

// Columns returns the declared column order.
func (v *View) Columns() []string { return v.result.Columns }

// Len returns the number of rows.
func (v *View) Len() int { return len(v.order) }

// SortState returns the current sort key and direction. The key is empty while
// the view is in original order.
func (v *View) SortState() (string, Direction) { return v.sortKey, v.sortDir }

// Sort orders rows by key. The sort is stable and always starts from the original
// row order, so repeating the same sort changes nothing. Ascending puts nil first
// and descending puts it last; see domain.CompareValues for the value ordering.
func (v *View) Sort(key string, dir Direction) error {
	if !slices.Contains(v.result.Columns, key) {
		return domain.NewValidationError("sort", fmt.Sprintf("unknown column %q", key))
	}
	if dir != Ascending && dir != Descending {
		return domain.NewValidationError("dir", fmt.Sprintf("unsupported sort direction %q", dir))
	}

	v.resetOrder()
	rows := v.result.Rows
	slices.SortStableFunc(v.order, func(a, b int) int {
		c := domain.CompareValues(rows[a][key], rows[b][key])
		if dir == Descending {
			return -c
		}
		return c
	})
	v.sortKey, v.sortDir = key, dir
	return nil
}

// Toggle sorts by key, flipping the direction when key is already the sort key
// and ascending otherwise.
func (v *View) Toggle(key string) error {
	dir := Ascending
	if v.sortKey == key && v.sortDir == Ascending {
		dir = Descending
	}
	return v.Sort(key, dir)
}

// Rows returns every row in the current order.
func (v *View) Rows() []domain.Row {
	out := make([]domain.Row, len(v.order))
	for i, idx := range v.order {
		out[i] = v.result.Rows[idx]
	}
	return out
}

// Paginate returns rows [(pageIndex-1)*pageSize, pageIndex*pageSize) of the current
// order. Pages are 1-based; a page past the end is empty.
func (v *View) Paginate(pageIndex, pageSize int) []domain.Row {
	if pageIndex < 1 || pageSize < 1 {
		return []domain.Row{}
	}
	start := (pageIndex - 1) * pageSize
	if start >= len(v.order) {
		return []domain.Row{}
	}
	end := min(start+pageSize, len(v.order))
	out := make([]domain.Row, 0, end-start)
	for _, idx := range v.order[start:end] {
		out = append(out, v.result.Rows[idx])
	}
	return out
}

// Page returns page pageIndex at the current page size.
func (v *View) Page(pageIndex int) []domain.Row {
	return v.Paginate(pageIndex, v.pageSize)
}

// Current returns the current page.
func (v *View) Current() []domain.Row {
	return v.Page(v.page)
}

// CurrentPage returns the current 1-based page index.
func (v *View) CurrentPage() int { return v.page }

// SetPage moves to pageIndex. Pages past the end are allowed and render empty.
func (v *View) SetPage(pageIndex int) error {
	if pageIndex < 1 {
		return domain.NewValidationError("page", "page must be 1 or greater")
	}
	v.page = pageIndex
	return nil
}

// PageSize returns the current page size.
func (v *View) PageSize() int { return v.pageSize }

// SetPageSize changes the page size and returns to page 1.
func (v *View) SetPageSize(n int) error {
	if !slices.Contains(PageSizes, n) {
		return domain.NewValidationError("pageSize", fmt.Sprintf("page size must be one of %v", PageSizes))
	}
	v.pageSize = n
	v.page = 1
	return nil
}

// TotalPages returns the number of pages at the current page size.
func (v *View) TotalPages() int {
	return (len(v.order) + v.pageSize - 1) / v.pageSize
}
