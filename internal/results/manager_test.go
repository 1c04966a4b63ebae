package results

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewResultManager(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "results")
	m, err := NewResultManager(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, m.GetBaseDir())
	assert.DirExists(t, dir)

	_, err = NewResultManager("")
	assert.Error(t, err)
}

func TestCalculateFileMD5(t *testing.T) {
	path := writeFile(t, t.TempDir(), "a.pdf", "hello")
	sum, err := CalculateFileMD5(path)
	require.NoError(t, err)
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", sum)

	_, err = CalculateFileMD5(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestSaveLoadList(t *testing.T) {
	m, err := NewResultManager(t.TempDir())
	require.NoError(t, err)

	missing, err := m.Load("0123456789abcdef0123")
	require.NoError(t, err)
	assert.Nil(t, missing)

	now := time.Now()
	older := &Entry{SourceMD5: "aaaaaaaaaaaaaaaaaaaa", SourceFileName: "old.pdf", TranslatedAt: now.Add(-time.Hour)}
	newer := &Entry{SourceMD5: "bbbbbbbbbbbbbbbbbbbb", SourceFileName: "new.pdf", TranslatedAt: now, FallbackPages: []int{3}}
	require.NoError(t, m.Save(older))
	require.NoError(t, m.Save(newer))
	assert.ErrorIs(t, m.Save(&Entry{}), os.ErrInvalid)

	got, err := m.Load(newer.SourceMD5)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "new.pdf", got.SourceFileName)
	assert.False(t, got.Complete())

	list, err := m.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new.pdf", list[0].SourceFileName)
	assert.Equal(t, "old.pdf", list[1].SourceFileName)

	require.NoError(t, m.Delete(older.SourceMD5))
	list, err = m.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestFindExisting(t *testing.T) {
	m, err := NewResultManager(t.TempDir())
	require.NoError(t, err)

	dir := t.TempDir()
	src := writeFile(t, dir, "paper.pdf", "%PDF-1.7 source")
	out := writeFile(t, dir, "translated_paper.pdf", "%PDF-1.7 output")
	sum, err := CalculateFileMD5(src)
	require.NoError(t, err)

	found, err := m.FindExisting(src, "zh", false)
	require.NoError(t, err)
	assert.Nil(t, found, "nothing recorded yet")

	require.NoError(t, m.Save(&Entry{SourceMD5: sum, Source: src, Output: out, TargetLanguage: "zh"}))

	tests := []struct {
		name   string
		target string
		spread bool
		want   bool
	}{
		{"same settings", "zh", false, true},
		{"other language", "ja", false, false},
		{"spread differs", "zh", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found, err := m.FindExisting(src, tt.target, tt.spread)
			require.NoError(t, err)
			assert.Equal(t, tt.want, found != nil)
		})
	}

	require.NoError(t, os.Remove(out))
	found, err = m.FindExisting(src, "zh", false)
	require.NoError(t, err)
	assert.Nil(t, found, "output removed since")
}
