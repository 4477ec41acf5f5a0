package gdx

import (
	"strconv"
	"time"
)

const (
	// DefaultHost is the Electricity Authority EMI site.
	DefaultHost = "http://www.emi.ea.govt.nz"

	archiveListingPath = "/Datasets/Wholesale/Final_pricing/Archives/GDX"
	currentListingPath = "/Datasets/Wholesale/Final_pricing/GDX"

	archiveMarker = "GDX_Files.zip"
	currentMarker = ".gdx"

	bundleSuffix = "_vSPD_GDX_Files.zip"

	// ExtractDirName is the flat directory under the GDX path that receives data files.
	ExtractDirName = "extracted"

	// PartialSuffix marks a download still in progress. Such files are never data files.
	PartialSuffix  = ".part"
	partialPattern = ".gdxgrab-*" + PartialSuffix

	// ManifestFileName is the vSPD include file written by filelist mode.
	ManifestFileName = "FileNameList.inc"
)

// Mode selects which listing page a resolver reads.
type Mode string

const (
	ModeArchive Mode = "archive"
	ModeCurrent Mode = "current"
)

// marker returns the substring an href must contain to be a candidate in this mode.
func (m Mode) marker() string {
	if m == ModeArchive {
		return archiveMarker
	}
	return currentMarker
}

// Candidate is one downloadable file discovered on a listing page.
type Candidate struct {
	Name string
	URL  string
}

// YearArchiveTarget identifies the yearly bundle for one year.
type YearArchiveTarget struct {
	Year         int
	ZipName      string
	LocalZipPath string
}

// DateRange is an inclusive [Start, End] range of calendar dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether d falls within the range, comparing calendar dates only.
func (r DateRange) Contains(d time.Time) bool {
	day := truncateDay(d)
	return !day.Before(truncateDay(r.Start)) && !day.After(truncateDay(r.End))
}

// ManifestEntry is a dated file found in the extraction directory.
type ManifestEntry struct {
	Date     time.Time
	Filename string // extension stripped
}

// Report summarises one download run.
type Report struct {
	Downloaded []string
	Extracted  []string
	Skipped    []string
	Err        error
}

// BundleName returns the published zip name for a year, e.g. 2014_vSPD_GDX_Files.zip.
func BundleName(year int) string {
	return strconv.Itoa(year) + bundleSuffix
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
