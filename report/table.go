package report

// Table is a header row plus body rows in input order. Row i always holds
// the i-th input row; pagination only changes which rows are visible.
type Table struct {
	Headers []string
	Rows    []Row
}

// Row is a body row and its position in the source data.
type Row struct {
	Index int
	Cells []string
}

// NewTable builds a table from headers and display rows. Cells are opaque:
// they are neither validated nor escaped here.
func NewTable(headers []string, rows [][]string) *Table {
	t := &Table{
		Headers: append([]string(nil), headers...),
		Rows:    make([]Row, len(rows)),
	}
	for i, cells := range rows {
		t.Rows[i] = Row{Index: i, Cells: append([]string(nil), cells...)}
	}
	return t
}

// Len returns the number of body rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}
