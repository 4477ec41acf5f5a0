package gdx

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("gdx"), 0o644))
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBuildManifest(t *testing.T) {
	t.Run("range_upper_bound", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, dir, "FP_20140101.gdx", "FP_20140215.gdx", "other.txt")

		got, err := BuildManifest(dir, DateRange{Start: day(2014, 1, 1), End: day(2014, 1, 31)}, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, []string{"FP_20140101"}, got)
	})

	t.Run("range_lower_bound", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, dir, "FP_20131231.gdx", "FP_20140101.gdx")

		got, err := BuildManifest(dir, DateRange{Start: day(2014, 1, 1), End: day(2014, 12, 31)}, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, []string{"FP_20140101"}, got)
	})

	t.Run("malformed_names_dropped", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, dir, "garbage.gdx", "FP_2014XX01.gdx", "FP_20141301.gdx", "FP_20140310.gdx", "FP_20140102.gdx")

		got, err := BuildManifest(dir, DateRange{Start: day(2014, 1, 1), End: day(2014, 12, 31)}, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, []string{"FP_20140102", "FP_20140310"}, got)
	})

	t.Run("no_dated_files", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, dir, "readme.txt", "2014_vSPD_GDX_Files.zip")

		got, err := BuildManifest(dir, DateRange{Start: day(2014, 1, 1), End: day(2014, 12, 31)}, zap.NewNop())
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("inverted_range_is_empty", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, dir, "FP_20140101.gdx")

		got, err := BuildManifest(dir, DateRange{Start: day(2014, 12, 31), End: day(2014, 1, 1)}, zap.NewNop())
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("bounds_inclusive", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, dir, "FP_20140101.gdx", "FP_20140131.gdx", "FP_20140201.gdx")

		got, err := BuildManifest(dir, DateRange{Start: day(2014, 1, 1), End: day(2014, 1, 31)}, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, []string{"FP_20140101", "FP_20140131"}, got)
	})

	t.Run("subdirectories_ignored", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(dir, "FP_20140105"), 0o755))
		touch(t, dir, "FP_20140106.gdx")

		got, err := BuildManifest(dir, DateRange{Start: day(2014, 1, 1), End: day(2014, 1, 31)}, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, []string{"FP_20140106"}, got)
	})

	t.Run("unfinished_downloads_ignored", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, dir, "FP_20140301_F.gdx", "FP_20140302_F.gdx.part", ".gdxgrab-81723.part")

		got, err := BuildManifest(dir, DateRange{Start: day(2014, 1, 1), End: day(2014, 12, 31)}, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, []string{"FP_20140301_F"}, got)
	})

	t.Run("missing_dir", func(t *testing.T) {
		_, err := BuildManifest(filepath.Join(t.TempDir(), "nope"), DateRange{}, zap.NewNop())
		require.ErrorIs(t, err, ErrFilesystem)
	})
}

func TestManifestEntries_SortedWithTieBreak(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir,
		"FP_20140305.gdx", "FP_20140101_F.gdx", "FP_20140101.gdx",
		"FP_20121120.gdx", "FP_20140305_F.gdx", "FP_20130704.gdx",
	)

	entries, err := NewManifestBuilder(dir, zap.NewNop()).Entries()
	require.NoError(t, err)
	require.Len(t, entries, 6)

	assert.True(t, sort.SliceIsSorted(entries, func(i, j int) bool {
		return entries[i].Date.Before(entries[j].Date)
	}))

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Filename
	}
	assert.Equal(t, []string{
		"FP_20121120", "FP_20130704",
		"FP_20140101", "FP_20140101_F",
		"FP_20140305", "FP_20140305_F",
	}, names)
}

func TestWriteManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ManifestFileName)
	require.NoError(t, os.WriteFile(path, []byte("stale\nlines\nhere\n"), 0o644))

	require.NoError(t, WriteManifest(path, []string{"FP_20140101", "FP_20140102"}))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "FP_20140101\nFP_20140102\n", string(b))

	require.NoError(t, WriteManifest(path, nil))
	b, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, b)

	leftovers, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}
