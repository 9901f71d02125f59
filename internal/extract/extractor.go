package extract

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/importlab/marketplace-scraper/internal/models"
)

// DefaultText is the terminal fallback for scalar text fields whose whole
// cascade came up empty.
const DefaultText = "N/A"

const (
	minNameLen        = 4
	minDescriptionLen = 16
	minParagraphLen   = 31
)

// Field is a scalar extraction result tagged with the strategy that produced
// it. The tag is diagnostics only; nothing downstream branches on it.
type Field struct {
	Value    string
	Strategy string
}

var nameSelectors = []string{
	"h1.d-title", ".title-text", "h1.title",
	".offer-title", "h1", ".product-title",
	"[class*=title]",
}

var priceSelectors = []string{
	".price", ".price-text", ".price-value",
	".price-now", "[class*=price]", "[id*=price]",
}

var descriptionSelectors = []string{
	".description", ".detail-content", ".product-description",
	"#description", "#detail", "#product-info",
	"[class*=description]", "[class*=detail-content]",
}

var variationSelectors = []string{
	".sku-property", ".sku-item", ".sku-select",
	".product-sku", ".sku-list", ".sku-property-item",
}

var shippingSelectors = map[string][]string{
	"shipping_fee":    {".shipping-fee", ".logistics-fee", ".delivery-fee"},
	"shipping_time":   {".shipping-time", ".delivery-time", ".logistics-time"},
	"shipping_method": {".shipping-method", ".delivery-method", ".logistics-method"},
}

var sellerSelectors = map[string][]string{
	"name":          {".seller-name", ".shop-name", ".store-name"},
	"rating":        {".seller-rating", ".shop-rating", ".store-rating"},
	"location":      {".seller-location", ".shop-location", ".store-location"},
	"response_rate": {".response-rate", ".reply-rate"},
	"response_time": {".response-time", ".reply-time"},
}

// Extractor runs the per-field strategy cascades over a page snapshot. It
// never fails outward: a strategy that yields nothing just hands over to the
// next one, and an exhausted cascade yields the field's defined default.
type Extractor struct {
	logger *slog.Logger

	numberRe     *regexp.Regexp
	titleRegexes []*regexp.Regexp
	priceRegexes []*regexp.Regexp
	descRegexes  []*regexp.Regexp
}

// NewExtractor creates an extractor with its markup-fallback patterns compiled.
func NewExtractor(logger *slog.Logger) *Extractor {
	return &Extractor{
		logger:   logger.With("component", "extractor"),
		numberRe: regexp.MustCompile(`[\d,.]+`),
		titleRegexes: []*regexp.Regexp{
			regexp.MustCompile(`<title>(.*?)[<\-]`),
			regexp.MustCompile(`"title"\s*:\s*"(.*?)"`),
			regexp.MustCompile(`"subject"\s*:\s*"(.*?)"`),
			regexp.MustCompile(`"productName"\s*:\s*"(.*?)"`),
		},
		priceRegexes: []*regexp.Regexp{
			regexp.MustCompile(`"price"\s*:\s*"?([\d.]+)"?`),
			regexp.MustCompile(`"priceText"\s*:\s*"?([\d.]+)"?`),
			regexp.MustCompile(`"current[Pp]rice"\s*:\s*"?([\d.]+)"?`),
			regexp.MustCompile(`"retailPrice"\s*:\s*"?([\d.]+)"?`),
		},
		descRegexes: []*regexp.Regexp{
			regexp.MustCompile(`"description"\s*:\s*"(.*?)"`),
			regexp.MustCompile(`"productDescription"\s*:\s*"(.*?)"`),
			regexp.MustCompile(`<meta\s+name="description"\s+content="([^"]+)"`),
		},
	}
}

// Extract runs every field cascade over the snapshot and returns the raw
// (untranslated) field set.
func (e *Extractor) Extract(snap *Snapshot) *models.ExtractedFields {
	name := e.ExtractName(snap)
	price := e.ExtractPrice(snap)
	desc := e.ExtractDescription(snap)

	e.logger.Debug("scalar fields extracted",
		"url", snap.URL,
		"nameStrategy", name.Strategy,
		"priceStrategy", price.Strategy,
		"descriptionStrategy", desc.Strategy,
	)

	return &models.ExtractedFields{
		Name:        name.Value,
		Price:       price.Value,
		Description: desc.Value,
		Images:      e.ExtractImages(snap),
		Variations:  e.ExtractVariations(snap),
		Shipping:    e.ExtractShipping(snap),
		Seller:      e.ExtractSeller(snap),
	}
}

// ExtractName resolves the product name: specific selectors, then the page
// title, then meta tags, then inline JSON, then raw-markup regexes.
func (e *Extractor) ExtractName(snap *Snapshot) Field {
	for _, selector := range nameSelectors {
		var found string
		snap.Doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := strings.TrimSpace(s.Text())
			if utf8.RuneCountInString(text) >= minNameLen {
				found = text
				return false
			}
			return true
		})
		if found != "" {
			return Field{Value: found, Strategy: "selector"}
		}
	}

	if title := strings.TrimSpace(snap.Doc.Find("title").First().Text()); utf8.RuneCountInString(title) >= minNameLen {
		// Marketplace titles append the site name after a dash.
		if i := strings.Index(title, "-"); i > 0 {
			title = strings.TrimSpace(title[:i])
		}
		if utf8.RuneCountInString(title) >= minNameLen {
			return Field{Value: title, Strategy: "page_title"}
		}
	}

	var metaName string
	snap.Doc.Find(`meta[property="og:title"], meta[name="title"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if content, ok := s.Attr("content"); ok && utf8.RuneCountInString(content) >= minNameLen {
			metaName = content
			return false
		}
		return true
	})
	if metaName != "" {
		return Field{Value: metaName, Strategy: "meta"}
	}

	if data := embeddedJSON(snap.HTML); data != nil {
		if v, ok := jsonString(data, "subject", "title", "productName", "name", "offerTitle"); ok {
			return Field{Value: v, Strategy: "inline_json"}
		}
	}

	for _, re := range e.titleRegexes {
		if m := re.FindStringSubmatch(snap.HTML); m != nil {
			if v := strings.TrimSpace(m[1]); utf8.RuneCountInString(v) >= minNameLen {
				return Field{Value: v, Strategy: "regex"}
			}
		}
	}

	return Field{Value: DefaultText, Strategy: "default"}
}

// ExtractPrice resolves a best-effort price string. The value is whatever
// numeric-looking token the page exposes; it is not guaranteed parseable.
func (e *Extractor) ExtractPrice(snap *Snapshot) Field {
	for _, selector := range priceSelectors {
		var found string
		snap.Doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := strings.TrimSpace(s.Text())
			if text == "" {
				return true
			}
			if m := e.numberRe.FindString(text); m != "" {
				found = m
				return false
			}
			return true
		})
		if found != "" {
			return Field{Value: found, Strategy: "selector"}
		}
	}

	if data := embeddedJSON(snap.HTML); data != nil {
		if v, ok := jsonString(data, "price", "priceDisplay", "offerPrice", "retailPrice"); ok {
			return Field{Value: v, Strategy: "inline_json"}
		}
	}

	for _, re := range e.priceRegexes {
		if m := re.FindStringSubmatch(snap.HTML); m != nil {
			return Field{Value: m[1], Strategy: "regex"}
		}
	}

	return Field{Value: DefaultText, Strategy: "default"}
}

// ExtractDescription resolves the long description. The generic paragraph
// fallback demands more text than the targeted strategies so that stray
// boilerplate lines don't masquerade as a description.
func (e *Extractor) ExtractDescription(snap *Snapshot) Field {
	for _, selector := range descriptionSelectors {
		var found string
		snap.Doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := strings.TrimSpace(s.Text())
			if utf8.RuneCountInString(text) >= minDescriptionLen {
				found = text
				return false
			}
			return true
		})
		if found != "" {
			return Field{Value: found, Strategy: "selector"}
		}
	}

	var metaDesc string
	snap.Doc.Find(`meta[name="description"], meta[property="og:description"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if content, ok := s.Attr("content"); ok && utf8.RuneCountInString(content) >= minDescriptionLen {
			metaDesc = content
			return false
		}
		return true
	})
	if metaDesc != "" {
		return Field{Value: metaDesc, Strategy: "meta"}
	}

	if data := embeddedJSON(snap.HTML); data != nil {
		if v, ok := jsonString(data, "description", "productDescription", "detail", "details"); ok && utf8.RuneCountInString(v) >= minDescriptionLen {
			return Field{Value: v, Strategy: "inline_json"}
		}
	}

	var paragraph string
	snap.Doc.Find("p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if utf8.RuneCountInString(text) >= minParagraphLen {
			paragraph = text
			return false
		}
		return true
	})
	if paragraph != "" {
		return Field{Value: paragraph, Strategy: "paragraph"}
	}

	for _, re := range e.descRegexes {
		if m := re.FindStringSubmatch(snap.HTML); m != nil {
			if v := m[1]; utf8.RuneCountInString(v) >= minDescriptionLen {
				return Field{Value: v, Strategy: "regex"}
			}
		}
	}

	return Field{Value: DefaultText, Strategy: "default"}
}

// ExtractVariations collects SKU properties (size, color, ...) as a mapping of
// property name to value.
func (e *Extractor) ExtractVariations(snap *Snapshot) map[string]string {
	variations := make(map[string]string)

	for _, selector := range variationSelectors {
		snap.Doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			name, ok := s.Attr("title")
			if !ok || name == "" {
				name = strings.TrimSpace(s.Text())
			}
			if name == "" {
				return
			}
			value, ok := s.Attr("data-value")
			if !ok || value == "" {
				value, _ = s.Attr("value")
			}
			if value != "" {
				variations[name] = value
			}
		})
	}

	if len(variations) == 0 {
		if data := embeddedJSON(snap.HTML); data != nil {
			if m := jsonMapping(data, "skuProps", "skuList", "variations", "properties"); m != nil {
				return m
			}
		}
	}

	return variations
}

// ExtractShipping collects shipping fee/time/method details.
func (e *Extractor) ExtractShipping(snap *Snapshot) map[string]string {
	info := e.extractLabelled(snap, shippingSelectors)

	if len(info) == 0 {
		if data := embeddedJSON(snap.HTML); data != nil {
			if m := jsonMapping(data, "shipping", "logistics", "delivery"); m != nil {
				return m
			}
		}
	}

	return info
}

// ExtractSeller collects seller/shop metadata.
func (e *Extractor) ExtractSeller(snap *Snapshot) map[string]string {
	info := e.extractLabelled(snap, sellerSelectors)

	if len(info) == 0 {
		if data := embeddedJSON(snap.HTML); data != nil {
			if m := jsonMapping(data, "seller", "shop", "store"); m != nil {
				return m
			}
		}
	}

	return info
}

// extractLabelled resolves each label through its own small selector cascade,
// taking the first element with non-empty text.
func (e *Extractor) extractLabelled(snap *Snapshot, selectors map[string][]string) map[string]string {
	out := make(map[string]string)
	for label, cascade := range selectors {
		for _, selector := range cascade {
			text := strings.TrimSpace(snap.Doc.Find(selector).First().Text())
			if text != "" {
				out[label] = text
				break
			}
		}
	}
	return out
}
