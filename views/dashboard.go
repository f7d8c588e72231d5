package views

import (
	"bytes"
	"context"

	"github.com/a-h/templ"
)

// Dashboard renders the page shell. Each region starts with a loading
// indicator and is filled in by its fragment.
func Dashboard(p DashboardPage) templ.Component {
	body := component(func(ctx context.Context, buf *bytes.Buffer) error {
		buf.WriteString(`<main class="dashboard"><header class="dashboard-header">`)
		buf.WriteString(`<h1>Analytics <span class="site">` + esc(p.SiteName) + `</span></h1>`)
		if p.Switcher != nil {
			writeSwitcher(buf, p.Switcher, p.CSRFToken)
		}
		buf.WriteString(`<form method="post" action="/admin/logout/" class="logout">`)
		csrfField(buf, p.CSRFToken)
		buf.WriteString(`<button type="submit">Sign out</button></form></header>`)

		for _, msg := range p.Problems {
			buf.WriteString(`<p class="help-block help-warning">` + esc(msg) + `</p>`)
		}
		if len(p.Problems) > 0 {
			buf.WriteString(`</main>`)
			return nil
		}

		buf.WriteString(`<form method="get" class="date-range">`)
		buf.WriteString(`<label>From <input type="text" name="start" value="` + esc(p.Start) + `"></label>`)
		buf.WriteString(`<label>To <input type="text" name="end" value="` + esc(p.End) + `"></label>`)
		buf.WriteString(`<button type="submit">Apply</button>`)
		if p.RangeError != "" {
			buf.WriteString(`<p class="error" role="alert">` + esc(p.RangeError) + `</p>`)
		}
		buf.WriteString(`</form>`)

		for _, r := range p.Regions {
			buf.WriteString(`<section class="region" id="region-` + esc(r.ID) + `" data-src="` + esc(r.URL) + `">`)
			buf.WriteString(`<h2>` + esc(r.Title) + `</h2><div class="region-body">`)
			if err := Loading().Render(ctx, buf); err != nil {
				return err
			}
			buf.WriteString(`</div></section>`)
		}

		buf.WriteString(`<form method="post" action="` + esc(p.ExportURL) + `" class="export" data-export>`)
		csrfField(buf, p.CSRFToken)
		buf.WriteString(`<select name="format"><option value="json">JSON</option><option value="csv">CSV</option></select>`)
		buf.WriteString(`<button type="submit"`)
		if !p.ExportReady {
			buf.WriteString(` disabled`)
		}
		buf.WriteString(`>Export</button></form></main>`)
		return nil
	})
	return Layout(p.Admin, "Analytics", body)
}

func writeSwitcher(buf *bytes.Buffer, sw *Switcher, csrf string) {
	buf.WriteString(`<form method="post" action="` + esc(sw.Action) + `" class="site-switcher" data-switcher>`)
	csrfField(buf, csrf)
	buf.WriteString(`<input type="hidden" name="initial" value="` + esc(sw.Initial) + `">`)
	buf.WriteString(`<select name="site" aria-label="Site">`)
	for _, o := range sw.Options {
		buf.WriteString(`<option value="` + esc(o.URL) + `"`)
		if o.Selected {
			buf.WriteString(` selected`)
		}
		buf.WriteString(`>` + esc(o.Label) + `</option>`)
	}
	buf.WriteString(`</select><noscript><button type="submit">Go</button></noscript></form>`)
}
