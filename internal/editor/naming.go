package editor

import "strings"

// Content kinds for external edits.
const (
	KindMarkdown = "markdown"
	KindText     = "text"
)

// ScratchFileName maps a content kind and session id to the file name backing
// one external edit. Markdown keeps a .md extension so editors highlight it;
// everything else is plain .txt.
func ScratchFileName(kind, sessionID string) string {
	ext := ".txt"
	if kind == KindMarkdown {
		ext = ".md"
	}
	return sanitize(sessionID) + ext
}

// sanitize keeps session ids filesystem-safe without losing uniqueness for
// the id alphabets callers actually use.
func sanitize(id string) string {
	var b strings.Builder
	b.Grow(len(id))
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	if b.Len() == 0 {
		return "edit"
	}
	return b.String()
}
