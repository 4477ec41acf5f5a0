package gdx

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/data-power-io/gdxgrab/internal/logging"
	"github.com/data-power-io/gdxgrab/internal/metrics"
)

// Source fetches listing pages and files from the archive host.
type Source interface {
	Get(ctx context.Context, url string) ([]byte, error)
	Download(ctx context.Context, url, dest string) (int64, error)
}

// Uploader mirrors a local file to secondary storage.
type Uploader interface {
	Upload(ctx context.Context, localPath, key string) error
}

// Config drives a download run.
type Config struct {
	Host      string
	GDXPath   string
	StartYear int
	Archive   bool
	Override  bool
}

// Grabber downloads yearly bundles and current-month files and unpacks them
// into the extraction directory.
//
// Archive mode walks StartYear..current year, reusing a local bundle unless
// Override is set, extracts each bundle, then runs the current-month pass.
// Daily mode runs the current-month pass only.
type Grabber struct {
	cfg      Config
	resolver *Resolver
	source   Source
	mirror   Uploader
	now      func() time.Time
	metrics  *metrics.RunMetrics
	logger   *zap.Logger
}

// Option customises a Grabber.
type Option func(*Grabber)

// WithClock overrides the clock used to find the current year.
func WithClock(now func() time.Time) Option {
	return func(g *Grabber) { g.now = now }
}

// WithMirror uploads every downloaded yearly bundle through u.
func WithMirror(u Uploader) Option {
	return func(g *Grabber) { g.mirror = u }
}

func NewGrabber(cfg Config, source Source, m *metrics.RunMetrics, logger *zap.Logger, opts ...Option) (*Grabber, error) {
	if cfg.GDXPath == "" {
		return nil, fmt.Errorf("%w: gdx path is required", ErrConfiguration)
	}
	resolver, err := NewResolver(cfg.Host, logger)
	if err != nil {
		return nil, err
	}

	g := &Grabber{
		cfg:      cfg,
		resolver: resolver,
		source:   source,
		now:      time.Now,
		metrics:  m,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// ExtractDir is where data files are written.
func (g *Grabber) ExtractDir() string {
	return filepath.Join(g.cfg.GDXPath, ExtractDirName)
}

// Target returns the yearly bundle identity for year.
func (g *Grabber) Target(year int) YearArchiveTarget {
	name := BundleName(year)
	return YearArchiveTarget{
		Year:         year,
		ZipName:      name,
		LocalZipPath: filepath.Join(g.cfg.GDXPath, name),
	}
}

// EnsureOutputDir creates the extraction directory if it is missing. Parents
// are not created.
func (g *Grabber) EnsureOutputDir() error {
	dir := g.ExtractDir()
	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("%w: %s exists and is not a directory", ErrFilesystem, dir)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", ErrFilesystem, err)
	}

	logging.LogStep(g.logger, "mkdir", "Create extraction directory", zap.String("dir", dir))
	if err := os.Mkdir(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrFilesystem, err)
	}
	return nil
}

// Run executes archive or daily mode. Failed years and files are collected in
// the report and the returned error; the remaining units still run.
func (g *Grabber) Run(ctx context.Context) (*Report, error) {
	report := &Report{}
	if err := g.EnsureOutputDir(); err != nil {
		report.Err = err
		return report, err
	}

	if g.cfg.Archive {
		logging.LogStep(g.logger, "archive", "Archival mode - download zip files then current month files",
			zap.Int("start_year", g.cfg.StartYear),
			zap.Bool("override", g.cfg.Override))
		g.runArchive(ctx, report)
	} else {
		logging.LogStep(g.logger, "daily", "Daily download mode - download current GDX files")
	}
	g.runCurrentMonth(ctx, report)

	return report, report.Err
}

func (g *Grabber) runArchive(ctx context.Context, report *Report) {
	current := g.now().Year()
	for year := g.cfg.StartYear; year <= current; year++ {
		if err := ctx.Err(); err != nil {
			report.Err = multierr.Append(report.Err, err)
			return
		}
		logging.LogStep(logging.WithField(g.logger, "year", year), "year", "Grab and extract gdx files")
		if err := g.archiveYear(ctx, year, report); err != nil {
			g.fail(report, strconv.Itoa(year), err, zap.Int("year", year))
		}
	}
}

func (g *Grabber) archiveYear(ctx context.Context, year int, report *Report) error {
	target := g.Target(year)

	if !g.cfg.Override && fileExists(target.LocalZipPath) {
		g.logger.Info("Using existing archive zipfile", zap.String("file", target.LocalZipPath))
		g.metrics.RecordArchiveSkipped()
		report.Skipped = append(report.Skipped, target.ZipName)
		return g.extract(target, report)
	}

	g.logger.Info("Downloading GDX archive", zap.Int("year", year))
	candidates, err := g.listing(ctx, ModeArchive)
	if err != nil {
		return err
	}

	found := false
	for _, c := range candidates {
		if !MatchesYear(c.Name, year) {
			continue
		}
		found = true

		g.logger.Info("Downloading archive zipfile",
			zap.String("name", c.Name),
			zap.String("file", target.LocalZipPath))
		if _, err := g.source.Download(ctx, c.URL, target.LocalZipPath); err != nil {
			return err
		}
		g.metrics.RecordFileWritten("bundle")
		report.Downloaded = append(report.Downloaded, target.ZipName)

		if err := g.upload(ctx, target.LocalZipPath, "archives/"+target.ZipName); err != nil {
			return err
		}
		if err := g.extract(target, report); err != nil {
			return err
		}
	}
	if !found {
		return networkf("no archive listed for %d", year)
	}
	return nil
}

func (g *Grabber) extract(target YearArchiveTarget, report *Report) error {
	names, err := g.extractZip(target.LocalZipPath, g.ExtractDir())
	report.Extracted = append(report.Extracted, names...)
	return err
}

// runCurrentMonth refreshes the individually published files of the trailing
// month. Only final-pricing files are kept and they always overwrite.
func (g *Grabber) runCurrentMonth(ctx context.Context, report *Report) {
	logging.LogStep(g.logger, "current", "Updating final price GDX files over last month")
	candidates, err := g.listing(ctx, ModeCurrent)
	if err != nil {
		g.fail(report, "current listing", err)
		return
	}

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			report.Err = multierr.Append(report.Err, err)
			return
		}
		if !IsFinal(c.Name) {
			g.logger.Debug("Skipping interim file", zap.String("name", c.Name))
			continue
		}

		dest := filepath.Join(g.ExtractDir(), c.Name)
		g.logger.Info("Saving to", zap.String("file", dest))
		if _, err := g.source.Download(ctx, c.URL, dest); err != nil {
			g.fail(report, c.Name, err, zap.String("file", c.Name))
			continue
		}
		g.metrics.RecordFileWritten("current")
		report.Downloaded = append(report.Downloaded, c.Name)
	}
}

func (g *Grabber) listing(ctx context.Context, mode Mode) ([]Candidate, error) {
	url := g.resolver.ListingURL(mode)
	g.logger.Debug("Fetching listing", zap.String("url", url))
	page, err := g.source.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	return g.resolver.Candidates(bytes.NewReader(page), mode)
}

func (g *Grabber) upload(ctx context.Context, path, key string) error {
	if g.mirror == nil {
		return nil
	}
	g.logger.Info("Mirroring", zap.String("file", path), zap.String("key", key))
	return g.mirror.Upload(ctx, path, key)
}

func (g *Grabber) fail(report *Report, unit string, err error, fields ...zap.Field) {
	uerr := unitErr(unit, err)
	g.metrics.RecordError(kindLabel(err))
	g.logger.Error("Unit of work failed", append(fields, zap.Error(err))...)
	report.Err = multierr.Append(report.Err, uerr)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
