package views

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/a-h/templ"

	"github.com/eringen/pubdash/report"
)

// Loading is the indicator a region shows while its query is in flight.
func Loading() templ.Component {
	return component(func(_ context.Context, buf *bytes.Buffer) error {
		buf.WriteString(`<div class="loading" role="status"><span class="spinner"></span> Loading…</div>`)
		return nil
	})
}

// Table renders every row of pt, hiding the rows outside the current page,
// followed by the pagination controls.
func Table(region string, pt *report.PagedTable, links PageLinks) templ.Component {
	return component(func(_ context.Context, buf *bytes.Buffer) error {
		buf.WriteString(`<table class="listing" data-region="` + esc(region) + `"><thead><tr>`)
		for _, h := range pt.Table.Headers {
			buf.WriteString(`<th>` + esc(h) + `</th>`)
		}
		buf.WriteString(`</tr></thead><tbody>`)
		if pt.Table.Len() == 0 {
			buf.WriteString(`<tr class="empty"><td colspan="` + strconv.Itoa(len(pt.Table.Headers)) + `">No data for this period.</td></tr>`)
		}
		for _, row := range pt.Table.Rows {
			buf.WriteString(`<tr data-index="` + strconv.Itoa(row.Index) + `"`)
			if !pt.State.Visible(row.Index) {
				buf.WriteString(` hidden`)
			}
			buf.WriteString(`>`)
			for _, cell := range row.Cells {
				buf.WriteString(`<td>` + esc(cell) + `</td>`)
			}
			buf.WriteString(`</tr>`)
		}
		buf.WriteString(`</tbody></table>`)
		writePager(buf, links)
		return nil
	})
}

func writePager(buf *bytes.Buffer, l PageLinks) {
	buf.WriteString(`<nav class="pagination">`)
	pageLink(buf, "prev", "Previous", l.PrevURL)
	buf.WriteString(fmt.Sprintf(`<span class="page">Page %d of %d</span>`, l.Number, l.Count))
	pageLink(buf, "next", "Next", l.NextURL)
	buf.WriteString(`</nav>`)
}

func pageLink(buf *bytes.Buffer, class, label, href string) {
	if href == "" {
		buf.WriteString(`<span class="` + class + ` disabled" aria-disabled="true">` + label + `</span>`)
		return
	}
	buf.WriteString(`<a class="` + class + `" href="` + esc(href) + `" data-fragment>` + label + `</a>`)
}

// Chart renders a canvas carrying its complete chart configuration.
func Chart(region string, config any) templ.Component {
	return component(func(_ context.Context, buf *bytes.Buffer) error {
		b, err := json.Marshal(config)
		if err != nil {
			return fmt.Errorf("encode chart config: %w", err)
		}
		buf.WriteString(`<div class="chart-container"><canvas data-region="` + esc(region) + `" data-chart="` + esc(string(b)) + `"></canvas></div>`)
		return nil
	})
}

// Failed replaces a region whose query was rejected.
func Failed(text string) templ.Component {
	return component(func(_ context.Context, buf *bytes.Buffer) error {
		buf.WriteString(`<p class="help-block help-critical" role="alert">` + esc(text) + `</p>`)
		return nil
	})
}

// PageLinksFor builds the pagination controls for st. base is the
// fragment URL the links page through.
func PageLinksFor(base string, st report.PageState) PageLinks {
	l := PageLinks{Number: st.Number(), Count: st.Count}
	link := func(cmd report.Command) string {
		return buildURL(base, url.Values{
			"cmd":  {cmd.String()},
			"page": {strconv.Itoa(st.Current)},
		})
	}
	if st.HasPrevious() {
		l.PrevURL = link(report.Previous)
	}
	if st.HasNext() {
		l.NextURL = link(report.Next)
	}
	return l
}
