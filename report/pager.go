package report

// DefaultPageSize is the number of rows shown per page when none is given.
const DefaultPageSize = 5

// Command is a pagination action.
type Command int

const (
	// Previous moves one page back; a no-op on the first page.
	Previous Command = iota + 1
	// Next moves one page forward; a no-op on the last page.
	Next
)

// ParseCommand maps "prev"/"previous" and "next" to commands.
func ParseCommand(s string) (Command, bool) {
	switch s {
	case "prev", "previous":
		return Previous, true
	case "next":
		return Next, true
	}
	return 0, false
}

func (c Command) String() string {
	switch c {
	case Previous:
		return "previous"
	case Next:
		return "next"
	}
	return "unknown"
}

// PageState is the pagination state of one table.
// Current is zero-based and always within [0, Count-1].
type PageState struct {
	Current int
	Size    int
	Count   int
	Rows    int
}

// NewPageState returns the state on the first page for rowCount rows.
func NewPageState(rowCount, pageSize int) PageState {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if rowCount < 0 {
		rowCount = 0
	}
	count := (rowCount + pageSize - 1) / pageSize
	if count < 1 {
		count = 1
	}
	return PageState{Size: pageSize, Count: count, Rows: rowCount}
}

// Restore rebuilds a state positioned on page, clamped into range.
func Restore(rowCount, pageSize, page int) PageState {
	p := NewPageState(rowCount, pageSize)
	p.Current = p.clamp(page)
	return p
}

func (p PageState) clamp(page int) int {
	if page < 0 {
		return 0
	}
	if page > p.Count-1 {
		return p.Count - 1
	}
	return page
}

// Update applies cmd and returns the new state.
func Update(p PageState, cmd Command) PageState {
	switch cmd {
	case Previous:
		p.Current = p.clamp(p.Current - 1)
	case Next:
		p.Current = p.clamp(p.Current + 1)
	}
	return p
}

// Bounds returns the half-open index range of the visible rows.
func (p PageState) Bounds() (start, end int) {
	start = p.Current * p.Size
	end = start + p.Size
	if end > p.Rows {
		end = p.Rows
	}
	if start > end {
		start = end
	}
	return start, end
}

// Visible reports whether row i is on the current page.
func (p PageState) Visible(i int) bool {
	start, end := p.Bounds()
	return i >= start && i < end
}

// HasPrevious reports whether the previous control is enabled.
func (p PageState) HasPrevious() bool { return p.Current > 0 }

// HasNext reports whether the next control is enabled.
func (p PageState) HasNext() bool { return p.Current < p.Count-1 }

// Number is the 1-based page number shown to people.
func (p PageState) Number() int { return p.Current + 1 }

// PagedTable is a table with page-at-a-time visibility.
type PagedTable struct {
	Table *Table
	State PageState
}

// Paginate attaches pagination to t, starting on the first page.
func Paginate(t *Table, pageSize int) *PagedTable {
	return &PagedTable{Table: t, State: NewPageState(t.Len(), pageSize)}
}

// Apply runs cmd against the table's state.
func (pt *PagedTable) Apply(cmd Command) {
	pt.State = Update(pt.State, cmd)
}

// Goto moves to page, clamped.
func (pt *PagedTable) Goto(page int) {
	pt.State.Current = pt.State.clamp(page)
}

// VisibleRows returns the rows of the current page. The returned rows keep
// their source Index.
func (pt *PagedTable) VisibleRows() []Row {
	start, end := pt.State.Bounds()
	return pt.Table.Rows[start:end]
}
