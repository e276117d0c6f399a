package types

import "time"

// DocumentMeta identifies a document discovered during corpus enumeration.
type DocumentMeta struct {
	// Path is the vault-relative path and the stable document identifier.
	Path    string
	Title   string
	ModTime time.Time
}

// Document is a fully read vault document ready for indexing.
type Document struct {
	// Path is the vault-relative path and the stable document identifier.
	Path string

	// Body is the extracted plain-text content (front matter stripped).
	Body string

	// Title comes from front matter, the first H1 heading, or the
	// filename, in that order.
	Title string

	// Tags collects front-matter tags and inline #tags.
	Tags []string

	// Fields holds the remaining front-matter key/value pairs. The shape
	// is open: only Title and Tags have dedicated handling, everything
	// else rides along untyped.
	Fields map[string]any

	// ModTime is the last-modified timestamp of the backing file at the
	// moment it was read.
	ModTime time.Time
}

// Excerpt returns the leading portion of the document body, capped at n
// runes, for use as search-result preview metadata.
func (d *Document) Excerpt(n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(d.Body)
	if len(runes) <= n {
		return d.Body
	}
	return string(runes[:n])
}
