package retrieval

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SnippetRenderer reads source files and renders numbered snippets around
// an entity's line range. Render never fails: unreadable files degrade to
// a comment so one bad path cannot sink a whole result set.
type SnippetRenderer struct {
	root         string
	contextLines int
}

// NewSnippetRenderer creates a renderer rooted at the repository path.
func NewSnippetRenderer(root string, contextLines int) *SnippetRenderer {
	if contextLines < 0 {
		contextLines = 0
	}
	return &SnippetRenderer{root: root, contextLines: contextLines}
}

// Render returns the snippet for [lineStart, lineEnd] with surrounding
// context. Lines inside the entity range are marked with ">>> ".
func (s *SnippetRenderer) Render(filePath string, lineStart, lineEnd int) string {
	snippet, err := s.render(filePath, lineStart, lineEnd)
	if err != nil {
		return fmt.Sprintf("# Could not fetch: %v", err)
	}
	return snippet
}

func (s *SnippetRenderer) render(filePath string, lineStart, lineEnd int) (string, error) {
	path := filePath
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.root, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	lines := strings.Split(string(data), "\n")

	if lineStart < 1 {
		lineStart = 1
	}
	if lineEnd < lineStart {
		lineEnd = lineStart
	}

	from := lineStart - s.contextLines
	if from < 1 {
		from = 1
	}
	to := lineEnd + s.contextLines
	if to > len(lines) {
		to = len(lines)
	}
	if from > len(lines) {
		return "", fmt.Errorf("line %d beyond end of %s (%d lines)", lineStart, filePath, len(lines))
	}

	var b strings.Builder
	for n := from; n <= to; n++ {
		marker := "    "
		if n >= lineStart && n <= lineEnd {
			marker = ">>> "
		}
		b.WriteString(fmt.Sprintf("%4d", n))
		b.WriteString(marker)
		b.WriteString(lines[n-1])
		if n < to {
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}
