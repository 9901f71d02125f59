package imageurl

import (
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"
)

var (
	ErrEmpty      = errors.New("empty image url")
	ErrLowQuality = errors.New("low quality image variant")
	ErrNoScheme   = errors.New("image url has no http scheme")
	ErrNotImage   = errors.New("url does not end in an image extension")
)

// imageExtensions are the only accepted terminal extensions. Marketplace CDNs
// encode size and quality in the path rather than the query string, so
// extension-based acceptance after suffix stripping is the only way to recover
// the full-size asset without fetching it.
var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".gif"}

// jsonURLKeys are field names image URLs hide under when a candidate arrives
// as a serialized JSON object instead of a plain string.
var jsonURLKeys = []string{"url", "image", "imageUrl", "imageURL", "imgUrl", "img", "fullPathImageURI"}

var (
	sizeTokenRe     = regexp.MustCompile(`_(\d{2,4})[xX](\d{2,4})`)
	lowQualityRe    = regexp.MustCompile(`(?i)q(3[0-9]|4[0-9]|5[0-9]|60)(?:[^0-9]|$)`)
	httpURLRe       = regexp.MustCompile(`https?://[^\s"'\\}\],]+`)
	sizeSuffixRe    = regexp.MustCompile(`(?i)[_-]\d{2,4}x\d{2,4}(\.(?:jpg|jpeg|png|webp|gif))$`)
	qualitySuffixRe = regexp.MustCompile(`(?i)[_-]?q(?:[3-9]0|[3-9]5)(\.(?:jpg|jpeg|png|webp|gif))$`)
)

// Normalize cleans a raw candidate image URL into its canonical full-size form,
// or rejects it. The steps build on each other, so their order matters: quality
// markers are judged on the raw string, JSON unwrapping happens before query
// stripping, and suffix stripping assumes the query is already gone.
func Normalize(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrEmpty
	}

	// Downscaled previews are rejected outright rather than upgraded; guessing
	// the full-size path from a thumbnail token is not reliable across CDNs.
	if isLowQuality(s) {
		return "", ErrLowQuality
	}

	if strings.HasPrefix(s, `{"`) && strings.Contains(s, "http") {
		s = unwrapJSON(s)
	}

	if i := strings.IndexByte(s, '?'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimPrefix(s, "ImageURI:")
	s = strings.TrimRight(s, ",/")

	if strings.HasPrefix(s, "//") {
		s = "https:" + s
	}
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return "", ErrNoScheme
	}

	s = stripSuffixes(s)

	// A query can reappear when the candidate was JSON-wrapped; keep the
	// pre-query portion only when it already names an image.
	if i := strings.IndexByte(s, '?'); i >= 0 && hasImageExtension(s[:i]) {
		s = s[:i]
	}

	if !hasImageExtension(s) {
		return "", ErrNotImage
	}
	return s, nil
}

// isLowQuality reports whether the raw string carries a thumbnail-size token
// (square variants between 50x50 and 600x600) or a q30..q60 quality marker.
func isLowQuality(s string) bool {
	for _, m := range sizeTokenRe.FindAllStringSubmatch(s, -1) {
		w, _ := strconv.Atoi(m[1])
		h, _ := strconv.Atoi(m[2])
		if w >= 50 && w <= 600 && h >= 50 && h <= 600 {
			return true
		}
	}
	return lowQualityRe.MatchString(s)
}

// unwrapJSON pulls the URL out of a serialized JSON object candidate. On parse
// failure it falls back to the first http(s) substring, and if neither works
// the input is returned unchanged so later steps reject it normally.
func unwrapJSON(s string) string {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err == nil {
		for _, key := range jsonURLKeys {
			if v, ok := obj[key].(string); ok && v != "" {
				return v
			}
		}
	}
	if m := httpURLRe.FindString(s); m != "" {
		return m
	}
	return s
}

// stripSuffixes removes size (_WxH) and quality (Q30..Q95) tokens directly
// preceding the extension, repeating until stable since CDNs stack them.
func stripSuffixes(s string) string {
	for {
		next := qualitySuffixRe.ReplaceAllString(s, "$1")
		next = sizeSuffixRe.ReplaceAllString(next, "$1")
		if next == s {
			return s
		}
		s = next
	}
}

func hasImageExtension(s string) bool {
	lower := strings.ToLower(s)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
