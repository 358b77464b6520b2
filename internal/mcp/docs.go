// ABOUTME: Human-readable tool catalog served at GET /
// ABOUTME: Built as Markdown from the tool definitions and rendered with goldmark

package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/2389/books-mcp/internal/auth"
)

var docsPage = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>books-mcp</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 52rem; margin: 2rem auto; padding: 0 1rem; line-height: 1.5; }
pre { background: #f4f4f4; padding: 0.75rem; overflow-x: auto; }
code { font-size: 0.9em; }
table { border-collapse: collapse; }
td, th { border: 1px solid #ddd; padding: 0.25rem 0.5rem; }
</style>
</head>
<body>
{{.}}
</body>
</html>
`))

// DocsHandler serves the tool catalog. The page is rendered on first use.
func (s *Server) DocsHandler() http.Handler {
	var (
		once sync.Once
		page []byte
	)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}

		once.Do(func() { page = s.renderDocs() })
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(page)
	})
}

func (s *Server) renderDocs() []byte {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))

	var htmlBuf bytes.Buffer
	if err := md.Convert(s.catalogMarkdown(), &htmlBuf); err != nil {
		s.logger.Error("failed to convert markdown", "error", err)
		htmlBuf.Reset()
		htmlBuf.WriteString("<p>Failed to render the tool catalog.</p>")
	}

	var out bytes.Buffer
	if err := docsPage.Execute(&out, template.HTML(htmlBuf.String())); err != nil {
		s.logger.Error("failed to render docs page", "error", err)
	}
	return out.Bytes()
}

// catalogMarkdown describes every tool with its access class and schema.
func (s *Server) catalogMarkdown() []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "# books-mcp %s\n\n", s.version)
	b.WriteString("MCP endpoint: `POST /mcp` (Streamable HTTP). Local clients can run `books-mcp stdio`.\n\n")
	b.WriteString(serverInstructions + "\n\n")

	defs := s.dispatcher.Tools()
	b.WriteString("| tool | access |\n|---|---|\n")
	for _, def := range defs {
		fmt.Fprintf(&b, "| `%s` | %s |\n", def.Name, def.Access)
	}
	b.WriteString("\n")

	for _, def := range defs {
		fmt.Fprintf(&b, "## %s\n\n", def.Name)
		if def.Access == auth.AccessProtected {
			b.WriteString("**Requires an active session.**\n\n")
		}
		b.WriteString(def.Description + "\n\n")

		var schema bytes.Buffer
		if err := json.Indent(&schema, def.InputSchema(), "", "  "); err != nil {
			schema.Reset()
			schema.Write(def.InputSchema())
		}
		fmt.Fprintf(&b, "```json\n%s\n```\n\n", schema.String())
	}
	return []byte(b.String())
}
