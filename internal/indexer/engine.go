package indexer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"
)

// Index states, mirrored verbatim by the UI.
const (
	StatusNotBuilt = "not_built"
	StatusBuilding = "building"
	StatusReady    = "ready"
	StatusError    = "error"
)

// ErrNotReady is returned by Search before a successful Build.
var ErrNotReady = errors.New("knowledge index is not built")

// Status describes the index to observers.
type Status struct {
	State      string    `json:"state"`
	FilesTotal int       `json:"filesTotal"`
	FilesDone  int       `json:"filesDone"`
	Commit     string    `json:"commit,omitempty"`
	Error      string    `json:"error,omitempty"`
	BuiltAt    time.Time `json:"builtAt,omitempty"`
}

// Result is one search hit.
type Result struct {
	Path    string  `json:"path"`
	Title   string  `json:"title"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

type document struct {
	path   string
	title  string
	text   string
	terms  map[string]int
	length int
}

// Engine is a BM25 index over the markdown files of one knowledge directory.
// Build and Search may be called from different goroutines.
type Engine struct {
	mu       sync.RWMutex
	root     string
	docs     []document
	df       map[string]int
	avgLen   float64
	status   Status
	onStatus func(Status)
}

// New creates an engine for root. onStatus, when non-nil, observes every
// status change; it is called without the engine lock held.
func New(root string, onStatus func(Status)) *Engine {
	return &Engine{
		root:     root,
		status:   Status{State: StatusNotBuilt},
		onStatus: onStatus,
	}
}

func (e *Engine) Root() string {
	return e.root
}

func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status
}

// Build scans the knowledge directory and (re)builds the index. The previous
// index stays queryable until the replacement is complete.
func (e *Engine) Build(ctx context.Context) error {
	e.setStatus(Status{State: StatusBuilding})

	files, commit, err := scan(e.root)
	if err != nil {
		e.setStatus(Status{State: StatusError, Error: err.Error()})
		return fmt.Errorf("scan %s: %w", e.root, err)
	}

	docs := make([]document, 0, len(files))
	df := make(map[string]int)
	totalLen := 0
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			e.setStatus(Status{State: StatusError, Error: err.Error()})
			return err
		}
		doc := analyze(f)
		docs = append(docs, doc)
		totalLen += doc.length
		for term := range doc.terms {
			df[term]++
		}
		e.setStatus(Status{State: StatusBuilding, FilesTotal: len(files), FilesDone: i + 1, Commit: commit})
	}

	avg := 0.0
	if len(docs) > 0 {
		avg = float64(totalLen) / float64(len(docs))
	}

	e.mu.Lock()
	e.docs = docs
	e.df = df
	e.avgLen = avg
	e.mu.Unlock()

	e.setStatus(Status{
		State:      StatusReady,
		FilesTotal: len(files),
		FilesDone:  len(files),
		Commit:     commit,
		BuiltAt:    time.Now(),
	})
	return nil
}

// BM25 parameters, the usual defaults.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// Search ranks indexed files against query and returns up to limit results.
func (e *Engine) Search(query string, limit int) ([]Result, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.status.State != StatusReady {
		return nil, ErrNotReady
	}
	terms := tokenize(query)
	if len(terms) == 0 {
		return []Result{}, nil
	}
	if limit <= 0 {
		limit = 8
	}

	n := float64(len(e.docs))
	type scored struct {
		idx   int
		score float64
	}
	var hits []scored
	for i := range e.docs {
		doc := &e.docs[i]
		score := 0.0
		for _, term := range terms {
			tf := float64(doc.terms[term])
			if tf == 0 {
				continue
			}
			df := float64(e.df[term])
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))
			norm := tf * (bm25K1 + 1) / (tf + bm25K1*(1-bm25B+bm25B*float64(doc.length)/e.avgLen))
			score += idf * norm
		}
		if score > 0 {
			hits = append(hits, scored{idx: i, score: score})
		}
	}

	sort.Slice(hits, func(a, b int) bool {
		if hits[a].score != hits[b].score {
			return hits[a].score > hits[b].score
		}
		return e.docs[hits[a].idx].path < e.docs[hits[b].idx].path
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		doc := &e.docs[h.idx]
		results = append(results, Result{
			Path:    doc.path,
			Title:   doc.title,
			Snippet: snippet(doc.text, terms),
			Score:   h.score,
		})
	}
	return results, nil
}

func (e *Engine) setStatus(s Status) {
	e.mu.Lock()
	e.status = s
	cb := e.onStatus
	e.mu.Unlock()
	if cb != nil {
		cb(s)
	}
}

func analyze(f sourceFile) document {
	terms := map[string]int{}
	length := 0
	for _, t := range tokenize(f.text) {
		terms[t]++
		length++
	}
	return document{
		path:   f.path,
		title:  titleOf(f),
		text:   f.text,
		terms:  terms,
		length: length,
	}
}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"of": true, "to": true, "in": true, "is": true, "it": true,
	"for": true, "on": true, "with": true, "as": true, "at": true,
	"by": true, "be": true, "this": true, "that": true, "are": true,
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) < 2 || stopwords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}

// titleOf prefers the first markdown heading, falling back to the file stem.
func titleOf(f sourceFile) string {
	for _, line := range strings.Split(f.text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "# "))
		}
	}
	base := filepath.Base(f.path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// snippet returns a short window around the first term occurrence.
func snippet(text string, terms []string) string {
	lower := strings.ToLower(text)
	pos := -1
	for _, t := range terms {
		if i := strings.Index(lower, t); i >= 0 && (pos < 0 || i < pos) {
			pos = i
		}
	}
	if pos < 0 {
		pos = 0
	}
	start := pos - 80
	if start < 0 {
		start = 0
	}
	end := pos + 120
	if end > len(text) {
		end = len(text)
	}
	s := strings.TrimSpace(strings.ReplaceAll(text[start:end], "\n", " "))
	if start > 0 {
		s = "…" + s
	}
	if end < len(text) {
		s += "…"
	}
	return s
}
