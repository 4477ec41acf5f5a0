package gdx

import (
	"fmt"
	"io"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// Resolver turns listing pages on one host into download candidates.
type Resolver struct {
	host   *url.URL
	logger *zap.Logger
}

func NewResolver(host string, logger *zap.Logger) (*Resolver, error) {
	u, err := url.Parse(strings.TrimRight(host, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid host %q: %v", ErrConfiguration, host, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: host %q must be an http(s) URL", ErrConfiguration, host)
	}
	return &Resolver{host: u, logger: logger}, nil
}

// BuildListingURL returns the directory-listing page for mode under host.
func BuildListingURL(host string, mode Mode) string {
	host = strings.TrimRight(host, "/")
	if mode == ModeArchive {
		return host + archiveListingPath
	}
	return host + currentListingPath
}

func (r *Resolver) ListingURL(mode Mode) string {
	return BuildListingURL(r.host.String(), mode)
}

// Candidates extracts every href containing the mode's marker, in page order.
// Duplicate hrefs are kept. Hrefs without a usable file name are logged and skipped.
func (r *Resolver) Candidates(page io.Reader, mode Mode) ([]Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(page)
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing: %w", err)
	}

	marker := mode.marker()
	var candidates []Candidate
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if !strings.Contains(href, marker) {
			return
		}
		c, err := r.candidate(href)
		if err != nil {
			r.logger.Warn("Skipping listing entry", zap.String("href", href), zap.Error(err))
			return
		}
		candidates = append(candidates, c)
	})

	r.logger.Debug("Resolved candidates",
		zap.String("mode", string(mode)),
		zap.Int("candidates", len(candidates)))
	return candidates, nil
}

// candidate names an href by its last path segment and resolves it against the host.
func (r *Resolver) candidate(href string) (Candidate, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return Candidate{}, err
	}
	if ref.Path == "" || strings.HasSuffix(ref.Path, "/") {
		return Candidate{}, fmt.Errorf("no file name in %q", href)
	}
	name := path.Base(ref.Path)
	if name == "." || name == "/" {
		return Candidate{}, fmt.Errorf("no file name in %q", href)
	}
	return Candidate{
		Name: name,
		URL:  r.host.ResolveReference(ref).String(),
	}, nil
}

// IsFinal reports whether a current-month file name is final pricing: the third
// '_'-delimited field starts with 'F' (interim files use 'I').
func IsFinal(name string) bool {
	parts := strings.Split(name, "_")
	return len(parts) > 2 && strings.HasPrefix(parts[2], "F")
}

// MatchesYear reports whether an archive name starts with the four-character year.
func MatchesYear(name string, year int) bool {
	return len(name) >= 4 && name[:4] == strconv.Itoa(year)
}
