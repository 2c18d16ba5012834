package mail

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// layout wraps a sanitized body fragment in the email shell.
func layout(title, body, site string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!DOCTYPE html><html><head><meta charset="utf-8"><title>`+
			templ.EscapeString(title)+`</title></head>`+
			`<body style="font-family:sans-serif;line-height:1.6;color:#222;max-width:640px;margin:0 auto;padding:24px">`); err != nil {
			return err
		}
		if err := templ.Raw(body).Render(ctx, w); err != nil {
			return err
		}
		return footer(site).Render(ctx, w)
	})
}

func footer(site string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<hr style="border:none;border-top:1px solid #ddd;margin-top:32px">`+
			`<p style="font-size:12px;color:#888">`+templ.EscapeString(site)+`</p></body></html>`)
		return err
	})
}
