package views

import (
	"bytes"
	"context"

	"github.com/a-h/templ"
)

// Layout wraps body in the admin page chrome.
func Layout(a Admin, title string, body templ.Component) templ.Component {
	return component(func(ctx context.Context, buf *bytes.Buffer) error {
		buf.WriteString(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		buf.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		buf.WriteString(`<title>` + esc(title) + ` | ` + esc(a.Name) + `</title>`)
		if a.CSRFToken != "" {
			buf.WriteString(`<meta name="csrf-token" content="` + esc(a.CSRFToken) + `">`)
		}
		if a.ChartScript != "" {
			buf.WriteString(`<script src="` + esc(a.ChartScript) + `" defer></script>`)
		}
		buf.WriteString(`<script src="/public/dashboard.js" defer></script>`)
		buf.WriteString(`</head><body class="admin">`)
		if err := body.Render(ctx, buf); err != nil {
			return err
		}
		buf.WriteString(`</body></html>`)
		return nil
	})
}

// Login is the admin sign-in form.
func Login(a Admin, showError bool) templ.Component {
	body := component(func(_ context.Context, buf *bytes.Buffer) error {
		buf.WriteString(`<main class="login"><h1>` + esc(a.Name) + `</h1>`)
		if showError {
			buf.WriteString(`<p class="error" role="alert">Wrong password.</p>`)
		}
		buf.WriteString(`<form method="post" action="/admin/login/">`)
		csrfField(buf, a.CSRFToken)
		buf.WriteString(`<label for="password">Password</label>`)
		buf.WriteString(`<input id="password" type="password" name="password" autocomplete="current-password" required>`)
		buf.WriteString(`<button type="submit">Sign in</button></form></main>`)
		return nil
	})
	return Layout(a, "Sign in", body)
}

func message(title, text string) templ.Component {
	body := component(func(_ context.Context, buf *bytes.Buffer) error {
		buf.WriteString(`<main class="message"><h1>` + esc(title) + `</h1><p>` + esc(text) + `</p>`)
		buf.WriteString(`<p><a href="/admin/">Back to the dashboard</a></p></main>`)
		return nil
	})
	return Layout(Admin{Name: "pubdash"}, title, body)
}

func NotFound() templ.Component {
	return message("Not found", "There is nothing at this address.")
}

func ServerError() templ.Component {
	return message("Something went wrong", "The server could not complete the request.")
}
