package journal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournal(t *testing.T) {
	j, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, j.Record("a.pdf", StageFallback, "2 pages untranslated", []int{2, 5}))

	rec, ok := j.Get("a.pdf")
	require.True(t, ok)
	assert.Equal(t, StageFallback, rec.Stage)
	assert.Equal(t, []int{2, 5}, rec.Pages)
	assert.Zero(t, rec.RetryCount)
	assert.True(t, filepath.IsAbs(rec.Source))

	require.NoError(t, j.Record("a.pdf", StageTranslation, "1 paragraph failed", nil))
	rec, _ = j.Get("a.pdf")
	assert.Equal(t, 1, rec.RetryCount)
	assert.Equal(t, StageTranslation, rec.Stage)
	assert.False(t, rec.LastRetry.IsZero())

	rec.Message = "mutated"
	again, _ := j.Get("a.pdf")
	assert.Equal(t, "1 paragraph failed", again.Message, "Get returns a copy")

	require.NoError(t, j.Remove("a.pdf"))
	_, ok = j.Get("a.pdf")
	assert.False(t, ok)
	assert.NoError(t, j.Remove("never-recorded.pdf"))
}

func TestJournalPersistence(t *testing.T) {
	dir := t.TempDir()

	j, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, j.Record("one.pdf", StageRead, "broken xref", nil))
	require.NoError(t, j.Record("two.pdf", StageWrite, "disk full", nil))

	reopened, err := Open(dir)
	require.NoError(t, err)
	records := reopened.List()
	require.Len(t, records, 2)
	assert.Equal(t, StageRead, records[0].Stage)
	assert.Equal(t, StageWrite, records[1].Stage)

	require.NoError(t, reopened.Clear())
	assert.Empty(t, reopened.List())
}

func TestJournalCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("{not json"), 0644))
	_, err := Open(dir)
	assert.Error(t, err)
}

func TestExportSources(t *testing.T) {
	j, err := Open(t.TempDir())
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "retry.txt")
	require.NoError(t, j.ExportSources(out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Empty(t, data)

	require.NoError(t, j.Record("x.pdf", StageAborted, "cancelled", nil))
	require.NoError(t, j.ExportSources(out))
	data, err = os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)
	assert.Equal(t, Key("x.pdf"), lines[0])
}
