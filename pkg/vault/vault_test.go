package vault

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEncodeRoundTrip(t *testing.T) {
	text := "---\ncompleted: true\narchived: false\ndue: 2024-03-01\nrecurrence: daily\ntags:\n  - home\n---\n# Water plants\n- [x] sub-item\n"

	note, err := Decode(text)
	require.NoError(t, err)
	fm := note.Frontmatter
	assert.Equal(t, true, fm["completed"])
	assert.Equal(t, false, fm["archived"])
	assert.Equal(t, "2024-03-01", fm["due"])
	assert.Equal(t, "daily", fm["recurrence"])
	assert.Equal(t, "# Water plants\n- [x] sub-item\n", note.Body)

	fm["archived"] = true
	fm["due"] = "2024-03-02"
	out, err := Encode(note)
	require.NoError(t, err)
	assert.Equal(t, "---\ncompleted: true\narchived: true\ndue: 2024-03-02\nrecurrence: daily\ntags:\n  - home\n---\n# Water plants\n- [x] sub-item\n", out)

	again, err := Decode(out)
	require.NoError(t, err)
	assert.Equal(t, note.Body, again.Body)
	assert.Equal(t, true, again.Frontmatter["archived"])
	assert.Equal(t, "2024-03-02", again.Frontmatter["due"], "date strings stay strings")
	assert.Equal(t, []interface{}{"home"}, again.Frontmatter["tags"])
}

func TestEncodeUnchangedNoteIsIdentical(t *testing.T) {
	text := "---\ntitle: \"Pay rent\"\nstart: 2024-02-01\ndue: 2024-03-01\nreviewed: 2024-02-15T10:30:00Z\nestimate: 1.5\nalias: 'rent'\ncompleted: true\n---\nbody\n"

	note, err := Decode(text)
	require.NoError(t, err)
	assert.Equal(t, "2024-02-01", note.Frontmatter["start"])
	assert.Equal(t, "2024-02-15T10:30:00Z", note.Frontmatter["reviewed"])

	out, err := Encode(note)
	require.NoError(t, err)
	assert.Equal(t, text, out)
}

func TestEncodeKeepsKeyOrder(t *testing.T) {
	note, err := Decode("---\ntitle: Rent\nzeta: 1\nalpha: 2\n---\n")
	require.NoError(t, err)

	note.Frontmatter["alpha"] = 3
	note.Frontmatter["created"] = "2024-03-10"
	note.Frontmatter["archived"] = true
	delete(note.Frontmatter, "zeta")

	out, err := Encode(note)
	require.NoError(t, err)
	assert.Equal(t, "---\ntitle: Rent\nalpha: 3\narchived: true\ncreated: 2024-03-10\n---\n", out)
}

func TestDeriveSharesLayout(t *testing.T) {
	note, err := Decode("---\ntitle: Rent\ndue: 2024-03-01\ncompleted: true\n---\n- [x] a\n")
	require.NoError(t, err)

	fm := note.Frontmatter.Clone()
	fm["due"] = "2024-04-01"
	fm["completed"] = false
	next := note.Derive("Tasks/next.md", fm, "- [ ] a\n")
	assert.Equal(t, "Tasks/next.md", next.Path)

	out, err := Encode(next)
	require.NoError(t, err)
	assert.Equal(t, "---\ntitle: Rent\ndue: 2024-04-01\ncompleted: false\n---\n- [ ] a\n", out)
}

func TestEncodeNewNoteQuotesOnlyWhatNeedsIt(t *testing.T) {
	out, err := Encode(&Note{Frontmatter: Frontmatter{"due": "2024-03-01", "count": "12", "title": "Rent"}})
	require.NoError(t, err)
	assert.Equal(t, "---\ncount: \"12\"\ndue: 2024-03-01\ntitle: Rent\n---\n", out)

	note, err := Decode(out)
	require.NoError(t, err)
	assert.Equal(t, "12", note.Frontmatter["count"])
	assert.Equal(t, "2024-03-01", note.Frontmatter["due"])
}

func TestDecodeWithoutFrontmatter(t *testing.T) {
	note, err := Decode("just text\n---\nmore")
	require.NoError(t, err)
	assert.Empty(t, note.Frontmatter)
	assert.Equal(t, "just text\n---\nmore", note.Body)
}

func TestDecodeEmptyFrontmatter(t *testing.T) {
	out, err := Encode(&Note{Frontmatter: Frontmatter{}, Body: "body"})
	require.NoError(t, err)

	note, err := Decode(out)
	require.NoError(t, err)
	assert.Empty(t, note.Frontmatter)
	assert.Equal(t, "body", note.Body)
}

func TestDecodeMalformedYAML(t *testing.T) {
	_, err := Decode("---\nkey: [unclosed\n---\nbody")
	assert.Error(t, err)

	_, err = Decode("---\n- just\n- a list\n---\nbody")
	assert.Error(t, err, "frontmatter must be a mapping")
}

func TestFrontmatterAccessors(t *testing.T) {
	fm := Frontmatter{
		"yes":     true,
		"no":      false,
		"strTrue": "true",
		"zero":    0,
		"one":     1,
		"empty":   "",
		"list":    []interface{}{},
	}

	assert.True(t, fm.Bool("yes"))
	assert.False(t, fm.Bool("strTrue"))
	assert.False(t, fm.Bool("one"))
	assert.False(t, fm.Bool("missing"))

	assert.True(t, fm.Truthy("strTrue"))
	assert.True(t, fm.Truthy("one"))
	assert.True(t, fm.Truthy("list"))
	assert.False(t, fm.Truthy("zero"))
	assert.False(t, fm.Truthy("empty"))
	assert.False(t, fm.Truthy("no"))
	assert.False(t, fm.Truthy("missing"))
}

func TestCloneIsDeep(t *testing.T) {
	orig := Frontmatter{
		"tags":   []interface{}{"a", "b"},
		"nested": map[string]interface{}{"k": []interface{}{1}},
		"done":   true,
	}

	c := orig.Clone()
	c["done"] = false
	c["tags"].([]interface{})[0] = "changed"
	c["nested"].(map[string]interface{})["k"].([]interface{})[0] = 2

	assert.Equal(t, true, orig["done"])
	assert.Equal(t, "a", orig["tags"].([]interface{})[0])
	assert.Equal(t, 1, orig["nested"].(map[string]interface{})["k"].([]interface{})[0])
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "Pay rent 2024-03-01", SanitizeFilename("Pay rent 2024/03/01"))
	assert.Equal(t, "a-b-c", SanitizeFilename("a:b?c"))
	assert.Equal(t, "spaced out", SanitizeFilename("  spaced   out "))
	assert.Equal(t, "tab - out", SanitizeFilename("tab \t out"), "control characters become hyphens")
}

func TestFSStorage(t *testing.T) {
	store := NewFS(afero.NewMemMapFs())

	require.NoError(t, store.EnsureFolder("Tasks"))
	require.NoError(t, store.EnsureFolder("Tasks"), "existing folder is fine")
	require.NoError(t, store.Create("Tasks/a.md", "one"))

	err := store.Create("Tasks/a.md", "two")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExists), "got %v", err)

	text, err := store.Read("Tasks/a.md")
	require.NoError(t, err)
	assert.Equal(t, "one", text)

	require.NoError(t, store.Write("Tasks/a.md", "three"))
	require.NoError(t, store.EnsureFolder("Archive/2024/03"))
	require.NoError(t, store.Move("Tasks/a.md", "Archive/2024/03/a.md"))

	ok, err := store.Exists("Tasks/a.md")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = store.Exists("Archive/2024/03/a.md")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Error(t, store.EnsureFolder("Archive/2024/03/a.md"), "a file is not a folder")
}

func TestOSStorageReadWriteNote(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Tasks"), 0755))
	store := NewOSStorage(dir)

	note := &Note{
		Path:        "Tasks/test_note.md",
		Frontmatter: Frontmatter{"title": "Test Note", "completed": false},
		Body:        "\n# Hello World\nThis is a test.",
	}
	require.NoError(t, WriteNote(store, note))

	raw, err := os.ReadFile(filepath.Join(dir, "Tasks", "test_note.md"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "title: Test Note")

	read, err := ReadNote(store, "Tasks/test_note.md")
	require.NoError(t, err)
	assert.Equal(t, "Test Note", read.Frontmatter["title"])
	assert.Equal(t, note.Body, read.Body)

	err = store.Create("Tasks/test_note.md", "x")
	assert.True(t, errors.Is(err, ErrExists), fmt.Sprint(err))
}
