package gdx

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"
)

// extractZip writes every file entry of zipPath into dir, overwriting existing
// files. Entries are flattened to their base name. It returns the names written.
func (g *Grabber) extractZip(zipPath, dir string) ([]string, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrArchiveRead, zipPath, err)
	}
	defer zr.Close()

	var written []string
	for _, entry := range zr.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		name := path.Base(filepath.ToSlash(entry.Name))
		if name == "." || name == "/" || name == ".." {
			g.logger.Warn("Skipping zip entry without a file name", zap.String("entry", entry.Name))
			continue
		}

		dest := filepath.Join(dir, name)
		g.logger.Info("Extract to", zap.String("file", dest))
		if err := writeEntry(entry, dest); err != nil {
			return written, err
		}
		g.metrics.RecordFileWritten("archive")
		written = append(written, name)
	}
	return written, nil
}

func writeEntry(entry *zip.File, dest string) error {
	rc, err := entry.Open()
	if err != nil {
		return fmt.Errorf("%w: entry %s: %v", ErrArchiveRead, entry.Name, err)
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFilesystem, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		// zip checksum and decompression failures surface from the reader side
		return fmt.Errorf("%w: entry %s: %v", ErrArchiveRead, entry.Name, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrFilesystem, err)
	}
	return nil
}
