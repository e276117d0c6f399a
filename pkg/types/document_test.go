package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocument_Excerpt(t *testing.T) {
	doc := &Document{Body: "hello world"}

	assert.Equal(t, "hello world", doc.Excerpt(100))
	assert.Equal(t, "hello", doc.Excerpt(5))
	assert.Equal(t, "", doc.Excerpt(0))
	assert.Equal(t, "", doc.Excerpt(-1))
}

func TestDocument_ExcerptMultibyte(t *testing.T) {
	doc := &Document{Body: "héllo wörld"}

	// Truncation counts runes, never splitting a multibyte character.
	assert.Equal(t, "héllo", doc.Excerpt(5))
}
