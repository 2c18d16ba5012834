// Package mail renders notification templates into sanitized HTML email and
// hands them to the external email-sending function.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
)

// Template is a notification template with Markdown body and plain subject.
type Template struct {
	Key         string `json:"key" yaml:"key"`
	Description string `json:"description" yaml:"description"`
	Subject     string `json:"subject" yaml:"subject"`
	Body        string `json:"body" yaml:"body"`
}

// Vars are the substitution values for one recipient.
type Vars map[string]string

// Rendered is a template ready to send.
type Rendered struct {
	Subject string
	HTML    string
}

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// Renderer turns templates into HTML.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
	site   string
}

// NewRenderer creates a renderer whose layout footer names site.
// Raw HTML in template bodies is omitted by goldmark (WithUnsafe is not set)
// and the result is passed through the bluemonday UGC policy.
func NewRenderer(site string) *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.Linkify, extension.Strikethrough, extension.Table),
			goldmark.WithRendererOptions(goldmarkHTML.WithHardWraps()),
		),
		policy: bluemonday.UGCPolicy(),
		site:   site,
	}
}

// Render substitutes vars into t and produces the final email.
func (r *Renderer) Render(ctx context.Context, t Template, vars Vars) (Rendered, error) {
	subject := Substitute(t.Subject, vars, false)
	subject = strings.Join(strings.Fields(subject), " ")

	var body bytes.Buffer
	if err := r.md.Convert([]byte(Substitute(t.Body, vars, true)), &body); err != nil {
		return Rendered{}, fmt.Errorf("render markdown %s: %w", t.Key, err)
	}
	safe := r.policy.Sanitize(body.String())

	var out bytes.Buffer
	if err := layout(subject, safe, r.site).Render(ctx, &out); err != nil {
		return Rendered{}, fmt.Errorf("render layout %s: %w", t.Key, err)
	}

	return Rendered{Subject: subject, HTML: out.String()}, nil
}

// Substitute replaces {{name}} placeholders. Unknown names become empty.
// When escape is set the values are HTML-escaped.
func Substitute(text string, vars Vars, escape bool) string {
	return placeholder.ReplaceAllStringFunc(text, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		v := vars[name]
		if escape {
			return html.EscapeString(v)
		}
		return v
	})
}

// Placeholders lists the distinct variable names used in text, in order of appearance.
func Placeholders(text string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range placeholder.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}
