package indexer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/yargevad/filepathx"

	"stepweave/internal/utils"
)

// maxFileBytes guards the index against huge generated files.
const maxFileBytes = 512 * 1024

type sourceFile struct {
	path string // slash-separated, relative to the knowledge root
	text string
}

// scan enumerates the markdown sources under root. Inside a git repository
// only files committed at HEAD are indexed and the HEAD hash is returned;
// plain directories are walked recursively instead.
func scan(root string) ([]sourceFile, string, error) {
	ignore := loadIgnoreRules(root)

	if utils.HasGitRepo(root) {
		return scanRepo(root, ignore)
	}
	files, err := scanDir(root, ignore)
	return files, "", err
}

func scanRepo(root string, ignore []string) ([]sourceFile, string, error) {
	repo, err := git.PlainOpen(root)
	if err != nil {
		return nil, "", fmt.Errorf("open repository: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		return nil, "", fmt.Errorf("resolve HEAD: %w", err)
	}
	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return nil, "", fmt.Errorf("load HEAD commit: %w", err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, "", fmt.Errorf("load HEAD tree: %w", err)
	}

	var files []sourceFile
	err = tree.Files().ForEach(func(f *object.File) error {
		if !isMarkdown(f.Name) || ignored(f.Name, ignore) {
			return nil
		}
		if f.Size > maxFileBytes {
			return nil
		}
		content, err := f.Contents()
		if err != nil {
			return nil // unreadable blob, skip
		}
		files = append(files, sourceFile{path: f.Name, text: content})
		return nil
	})
	if err != nil {
		return nil, "", fmt.Errorf("walk HEAD tree: %w", err)
	}
	return files, head.Hash().String(), nil
}

func scanDir(root string, ignore []string) ([]sourceFile, error) {
	var matches []string
	for _, pattern := range []string{"**/*.md", "**/*.mdx"} {
		m, err := filepathx.Glob(filepath.Join(root, pattern))
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", pattern, err)
		}
		matches = append(matches, m...)
	}

	var files []sourceFile
	for _, abs := range matches {
		rel, err := filepath.Rel(root, abs)
		if err != nil {
			continue
		}
		rel = filepath.ToSlash(rel)
		if ignored(rel, ignore) {
			continue
		}
		info, err := os.Stat(abs)
		if err != nil || info.IsDir() || info.Size() > maxFileBytes {
			continue
		}
		b, err := os.ReadFile(abs)
		if err != nil {
			continue
		}
		files = append(files, sourceFile{path: rel, text: string(b)})
	}
	return files, nil
}

// loadIgnoreRules reads .indexignore if present: one path prefix per line,
// # comments allowed.
func loadIgnoreRules(root string) []string {
	rules, err := utils.ReadNonEmptyLines(filepath.Join(root, ".indexignore"))
	if err != nil {
		return nil
	}
	for i, r := range rules {
		rules[i] = strings.TrimPrefix(filepath.ToSlash(r), "./")
	}
	return rules
}

func ignored(rel string, rules []string) bool {
	for _, r := range rules {
		if r == "" {
			continue
		}
		if rel == r || strings.HasPrefix(rel, strings.TrimSuffix(r, "/")+"/") {
			return true
		}
	}
	return false
}

func isMarkdown(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".mdx":
		return true
	}
	return false
}
