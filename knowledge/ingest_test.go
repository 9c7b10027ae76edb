package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocumentTitleFromFilename(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"meeting-notes.txt", "meeting notes"},
		{"docs/paris_guide.md", "paris guide"},
		{"C:\\uploads\\summary.markdown", "summary"},
		{"weird..md", "weird."},
		{".md", "Untitled document"},
		{"", "Untitled document"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, documentTitleFromFilename(tt.filename), "filename %q", tt.filename)
	}
}

func TestSanitizeArchiveEntry(t *testing.T) {
	assert.Equal(t, "notes/paris.txt", sanitizeArchiveEntry("./notes/paris.txt"))
	assert.Equal(t, "notes/paris.txt", sanitizeArchiveEntry("notes\\paris.txt"))
	assert.Equal(t, "", sanitizeArchiveEntry("../escape.txt"))
	assert.Equal(t, "", sanitizeArchiveEntry("__MACOSX/resource"))
	assert.Equal(t, "", sanitizeArchiveEntry("   "))
}

func TestIsTextEntry(t *testing.T) {
	assert.True(t, isTextEntry("notes.txt"))
	assert.True(t, isTextEntry("guide.MD"))
	assert.True(t, isTextEntry("深度/说明.markdown"))
	assert.False(t, isTextEntry("photo.png"))
	assert.False(t, isTextEntry("binary"))
}
