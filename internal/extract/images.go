package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	// minImageDim disqualifies declared thumbnails and tracking pixels.
	// Undeclared dimensions do not disqualify; most gallery images carry none.
	minImageDim = 50

	// selectorTarget is how many images the selector groups try for before
	// stopping; supplementTarget triggers the broad attribute scan when the
	// earlier strategies came up short.
	selectorTarget   = 3
	supplementTarget = 2
)

var imageSelectorGroups = []string{
	".detail-gallery img", ".tab-trigger img",
	"[class*=gallery] img", "[class*=image] img",
	`img[src*=".jpg"], img[src*=".png"]`,
	`img:not([width="1"]):not([height="1"])`,
}

var lazyImageAttrs = []string{"src", "data-src", "data-lazy-src", "data-original"}

var inlineImagePatterns = []*regexp.Regexp{
	regexp.MustCompile(`"imageUrl"\s*:\s*"(https?:[^"]+)"`),
	regexp.MustCompile(`"imageUrl"\s*:\s*"(//[^"]+)"`),
	regexp.MustCompile(`"imageUrl"\s*:\s*"(/[^"]+)"`),
	regexp.MustCompile(`"image"\s*:\s*"(https?:[^"]+)"`),
	regexp.MustCompile(`"image"\s*:\s*"(//[^"]+)"`),
	regexp.MustCompile(`"image"\s*:\s*"(/[^"]+)"`),
}

var imageExtHint = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|webp|gif)`)

// ExtractImages collects candidate image URLs from selector groups, inline
// JSON patterns, and finally a broad attribute sweep. Candidates are kept in
// discovery order and deduplicated by exact string; canonicalization and
// content-level dedup happen downstream.
func (e *Extractor) ExtractImages(snap *Snapshot) []string {
	var images []string
	seen := make(map[string]bool)

	add := func(src string) {
		if src == "" || seen[src] {
			return
		}
		seen[src] = true
		images = append(images, src)
	}

	for _, group := range imageSelectorGroups {
		snap.Doc.Find(group).Each(func(_ int, s *goquery.Selection) {
			if src, ok := candidateFromElement(s); ok {
				add(src)
			}
		})
		if len(images) >= selectorTarget {
			break
		}
	}

	if len(images) == 0 {
		origin := snap.Origin()
		for _, pattern := range inlineImagePatterns {
			for _, m := range pattern.FindAllStringSubmatch(snap.HTML, -1) {
				add(absolutize(m[1], origin))
			}
		}
		if len(images) > 0 {
			e.logger.Debug("images recovered from inline data", "url", snap.URL, "count", len(images))
		}
	}

	if len(images) < supplementTarget {
		snap.Doc.Find("[src], [data-src], [data-lazy-src], [data-original]").Each(func(_ int, s *goquery.Selection) {
			for _, attr := range lazyImageAttrs {
				src, ok := s.Attr(attr)
				if !ok || !imageExtHint.MatchString(src) {
					continue
				}
				if strings.HasPrefix(src, "http") || strings.HasPrefix(src, "//") {
					add(absolutize(src, ""))
				}
				break
			}
		})
	}

	return images
}

// candidateFromElement picks the first usable URL-bearing attribute off an
// image element, honoring declared dimensions when present.
func candidateFromElement(s *goquery.Selection) (string, bool) {
	for _, attr := range lazyImageAttrs {
		src, ok := s.Attr(attr)
		if !ok || src == "" {
			continue
		}
		if !strings.HasPrefix(src, "http") && !strings.HasPrefix(src, "//") {
			continue
		}
		if tooSmall(s) {
			return "", false
		}
		return absolutize(src, ""), true
	}
	return "", false
}

// tooSmall reports whether the element declares dimensions under the minimum.
// Elements without parseable dimensions pass.
func tooSmall(s *goquery.Selection) bool {
	w, wok := s.Attr("width")
	h, hok := s.Attr("height")
	if !wok || !hok {
		return false
	}
	width, werr := strconv.Atoi(strings.TrimSpace(w))
	height, herr := strconv.Atoi(strings.TrimSpace(h))
	if werr != nil || herr != nil {
		return false
	}
	return width < minImageDim || height < minImageDim
}

// absolutize fixes protocol-relative and root-relative URLs. Root-relative
// paths need the page origin; without one they are returned as-is and will be
// rejected by normalization.
func absolutize(src, origin string) string {
	switch {
	case strings.HasPrefix(src, "//"):
		return "https:" + src
	case strings.HasPrefix(src, "/") && origin != "":
		return origin + src
	default:
		return src
	}
}
