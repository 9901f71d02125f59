package extract

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Snapshot is the immutable capture of one fetched page: a queryable DOM tree
// plus the raw markup it was parsed from. It is owned by the caller for the
// duration of a single extraction pass.
type Snapshot struct {
	URL  string
	HTML string
	Doc  *goquery.Document
}

// NewSnapshot parses raw markup into a snapshot for the given page URL.
func NewSnapshot(pageURL, html string) (*Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	return &Snapshot{
		URL:  pageURL,
		HTML: html,
		Doc:  doc,
	}, nil
}

// Origin returns the scheme://host prefix of the page URL, used to absolutize
// root-relative image paths found in inline data.
func (s *Snapshot) Origin() string {
	u, err := url.Parse(s.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
