package views

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/a-h/templ"
)

// buildURL appends query parameters to a path.
func buildURL(path string, params url.Values) string {
	if len(params) == 0 {
		return path
	}
	if strings.Contains(path, "?") {
		return path + "&" + params.Encode()
	}
	return path + "?" + params.Encode()
}

// esc escapes text and attribute values.
func esc(s string) string {
	return templ.EscapeString(s)
}

// component renders through a buffer so a failed child never leaves half a
// page on the wire.
func component(fn func(ctx context.Context, buf *bytes.Buffer) error) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		if err := fn(ctx, &buf); err != nil {
			return err
		}
		_, err := w.Write(buf.Bytes())
		return err
	})
}

func csrfField(buf *bytes.Buffer, token string) {
	buf.WriteString(`<input type="hidden" name="_csrf" value="` + esc(token) + `">`)
}
