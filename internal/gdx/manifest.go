package gdx

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// ManifestBuilder scans the extraction directory for dated files.
type ManifestBuilder struct {
	dir    string
	logger *zap.Logger
}

func NewManifestBuilder(dir string, logger *zap.Logger) *ManifestBuilder {
	return &ManifestBuilder{dir: dir, logger: logger}
}

// Entries returns every dated file in the directory, sorted by date and then
// by name. Unfinished downloads are ignored. Files that fail to parse are
// logged and left out.
func (b *ManifestBuilder) Entries() ([]ManifestEntry, error) {
	dirEntries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFilesystem, err)
	}

	var entries []ManifestEntry
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || !IsDated(name) || strings.HasSuffix(name, PartialSuffix) {
			continue
		}
		stem := Stem(name)
		d, err := ParseDate(stem)
		if err != nil {
			b.logger.Warn("Skipping undated file", zap.String("file", name), zap.Error(err))
			continue
		}
		entries = append(entries, ManifestEntry{Date: d, Filename: stem})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date) {
			return entries[i].Date.Before(entries[j].Date)
		}
		return entries[i].Filename < entries[j].Filename
	})
	return entries, nil
}

// Build returns the names of dated files within r, in date order.
func (b *ManifestBuilder) Build(r DateRange) ([]string, error) {
	entries, err := b.Entries()
	if err != nil {
		return nil, err
	}

	names := []string{}
	for _, e := range entries {
		if r.Contains(e.Date) {
			names = append(names, e.Filename)
		}
	}
	return names, nil
}

// BuildManifest is a convenience wrapper around ManifestBuilder.Build.
func BuildManifest(dir string, r DateRange, logger *zap.Logger) ([]string, error) {
	return NewManifestBuilder(dir, logger).Build(r)
}

// WriteManifest writes one name per line to path, replacing any existing file.
func WriteManifest(path string, names []string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFilesystem, err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	for _, n := range names {
		if _, err := w.WriteString(n + "\n"); err != nil {
			tmp.Close()
			return fmt.Errorf("%w: %v", ErrFilesystem, err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", ErrFilesystem, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrFilesystem, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrFilesystem, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: %v", ErrFilesystem, err)
	}
	return nil
}
