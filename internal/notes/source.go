// Package notes enumerates and reads the Markdown documents of a vault.
//
// A document's identity is its vault-relative path. Reading a document
// extracts YAML front matter, plain-text body, tags, and a title; the
// file's mtime is captured at read time and drives change detection
// downstream.
package notes

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rhagen/vaultsearch-mcp/pkg/types"
)

// Source enumerates and reads vault documents.
type Source struct {
	root    string
	include []string
	exclude []string
}

// NewSource creates a document source rooted at root. Include holds glob
// patterns matched against vault-relative paths (empty means every .md
// file); exclude holds prefixes or glob patterns removed from the corpus.
func NewSource(root string, include, exclude []string) *Source {
	return &Source{root: root, include: include, exclude: exclude}
}

// Root returns the vault root directory.
func (s *Source) Root() string {
	return s.root
}

// List walks the vault and returns metadata for every matching document,
// sorted by path for deterministic batch ordering.
func (s *Source) List() ([]types.DocumentMeta, error) {
	if _, err := os.Stat(s.root); err != nil {
		return nil, fmt.Errorf("vault root not accessible: %w", err)
	}

	var metas []types.DocumentMeta
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && p != s.root {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(s.root, p)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if !s.Matches(rel) {
			return nil
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}
		metas = append(metas, types.DocumentMeta{
			Path:    rel,
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(metas, func(i, j int) bool { return metas[i].Path < metas[j].Path })
	return metas, nil
}

// Read loads and parses one document by vault-relative path.
func (s *Source) Read(rel string) (*types.Document, error) {
	abs := filepath.Join(s.root, filepath.FromSlash(rel))

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", rel, err)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rel, err)
	}

	res := parseMarkdown(data)
	title := res.Title
	if title == "" {
		title = strings.TrimSuffix(path.Base(rel), ".md")
	}

	return &types.Document{
		Path:    rel,
		Body:    res.Body,
		Title:   title,
		Tags:    res.Tags,
		Fields:  res.Frontmatter,
		ModTime: info.ModTime(),
	}, nil
}

// Matches reports whether a vault-relative path belongs to the corpus:
// it must end in .md, must not fall under an exclude pattern, and must
// match an include pattern when any are configured.
func (s *Source) Matches(rel string) bool {
	rel = filepath.ToSlash(rel)
	if !strings.HasSuffix(rel, ".md") {
		return false
	}

	for _, ex := range s.exclude {
		if ex == "" {
			continue
		}
		if strings.HasPrefix(rel, strings.TrimSuffix(ex, "/")+"/") || rel == ex {
			return false
		}
		if ok, _ := path.Match(ex, rel); ok {
			return false
		}
	}

	if len(s.include) == 0 {
		return true
	}
	for _, in := range s.include {
		if ok, _ := path.Match(in, rel); ok {
			return true
		}
		// Allow directory-prefix includes like "areas/work".
		if strings.HasPrefix(rel, strings.TrimSuffix(in, "/")+"/") {
			return true
		}
	}
	return false
}
