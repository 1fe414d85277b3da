package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"document-ingest/internal/models"
)

// touch creates the files under root and returns root.
func touch(t *testing.T, root string, names ...string) string {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("content of "+name), 0o600))
	}
	return root
}

func rel(t *testing.T, root string, paths []string) []string {
	t.Helper()
	out := make([]string, len(paths))
	for i, p := range paths {
		r, err := filepath.Rel(root, p)
		require.NoError(t, err)
		out[i] = filepath.ToSlash(r)
	}
	return out
}

func TestCollectFiles_supportedExtensions(t *testing.T) {
	root := touch(t, t.TempDir(),
		"b.txt", "a/notes.MD", "a/deep/scan.JPEG", "report.pdf", "letter.docx",
		"photo.png", "photo.jpg", "fax.tiff", "music.mp3", "sheet.xlsx", "noext",
	)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "folder.txt"), 0o755))

	files, err := CollectFiles(root, models.SupportedExtensions, nil, true)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"a/deep/scan.JPEG", "a/notes.MD", "b.txt", "fax.tiff", "letter.docx",
		"photo.jpg", "photo.png", "report.pdf",
	}, rel(t, root, files))
}

func TestCollectFiles_customExtensions(t *testing.T) {
	root := touch(t, t.TempDir(), "a.txt", "b.xlsx", "c.pptx")

	files, err := CollectFiles(root, []string{"XLSX", ".pptx"}, nil, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.xlsx", "c.pptx"}, rel(t, root, files))
}

func TestCollectFiles_ignorePatterns(t *testing.T) {
	root := touch(t, t.TempDir(), "keep.txt", "drafts/skip.txt", "notes/readme.md", "notes/keep.pdf")

	files, err := CollectFiles(root, models.SupportedExtensions, []string{"drafts/", "*.md"}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep.txt", "notes/keep.pdf"}, rel(t, root, files))
}

func TestCollectFiles_empty(t *testing.T) {
	root := touch(t, t.TempDir(), "song.mp3")
	files, err := CollectFiles(root, models.SupportedExtensions, nil, true)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestCollectFiles_directoryNotFound(t *testing.T) {
	root := t.TempDir()
	_, err := CollectFiles(filepath.Join(root, "missing"), models.SupportedExtensions, nil, true)
	assert.True(t, errors.Is(err, ErrDirectoryNotFound))

	file := filepath.Join(touch(t, root, "a.txt"), "a.txt")
	_, err = CollectFiles(file, models.SupportedExtensions, nil, true)
	assert.True(t, errors.Is(err, ErrDirectoryNotFound))
}
