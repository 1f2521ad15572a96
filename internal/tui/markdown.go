package tui

import (
	"regexp"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// markdownIndicators are patterns that suggest content contains markdown
var markdownIndicators = regexp.MustCompile("(?m)(^```|^#{1,6}\\s|^[*-]\\s|\\*\\*|__|`[^`]+`|^>\\s|^\\d+\\.\\s)")

func containsMarkdown(text string) bool {
	return markdownIndicators.MatchString(text)
}

// Agent replies are re-rendered on every viewport refresh; keep one renderer per width
var (
	renderers   = make(map[int]*glamour.TermRenderer)
	renderersMu sync.Mutex
)

func rendererFor(width int) (*glamour.TermRenderer, error) {
	renderersMu.Lock()
	defer renderersMu.Unlock()

	if r, ok := renderers[width]; ok {
		return r, nil
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	renderers[width] = r
	return r, nil
}

// renderMarkdown renders content with glamour, falling back to the raw text
func renderMarkdown(content string, width int) string {
	if width < 40 {
		width = 80
	}

	r, err := rendererFor(width)
	if err != nil {
		return content
	}
	out, err := r.Render(content)
	if err != nil {
		return content
	}
	return strings.Trim(out, "\n")
}

// renderIfMarkdown renders through glamour only when content looks like
// markdown; plain replies are word-wrapped instead
func renderIfMarkdown(content string, width int) string {
	if containsMarkdown(content) {
		return renderMarkdown(content, width)
	}
	return wrapText(content, width)
}
