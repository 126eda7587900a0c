package textdiff

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Stats counts the line-level change between two texts.
type Stats struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
}

// Compare runs a line-mode diff of before and after.
func Compare(before, after string) Stats {
	dmp := diffmatchpatch.New()
	beforeChars, afterChars, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(beforeChars, afterChars, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var s Stats
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			s.Added += countLines(d.Text)
		case diffmatchpatch.DiffDelete:
			s.Removed += countLines(d.Text)
		}
	}
	return s
}

// Summary renders a short human-readable change note, e.g. "+4 -1 lines".
// Unchanged inputs read as "no changes".
func Summary(before, after string) string {
	s := Compare(before, after)
	if s.Added == 0 && s.Removed == 0 {
		return "no changes"
	}
	return fmt.Sprintf("+%d -%d lines", s.Added, s.Removed)
}

func countLines(chunk string) int {
	if chunk == "" {
		return 0
	}
	n := strings.Count(chunk, "\n")
	if !strings.HasSuffix(chunk, "\n") {
		n++
	}
	return n
}
