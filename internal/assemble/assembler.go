package assemble

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/importlab/marketplace-scraper/internal/models"
)

const (
	// shortDescriptionMax bounds the short description including the
	// ellipsis marker, per the import format.
	shortDescriptionMax = 150
	ellipsis            = "..."

	defaultCategory = "Imported Products"
)

// Assembler composes translated fields into the fixed-column output row.
type Assembler struct{}

func New() *Assembler {
	return &Assembler{}
}

// Input carries translated extraction output plus the image references
// retained for the record. Images are either all local paths or all remote
// URLs depending on the pipeline mode, never a mix.
type Input struct {
	Fields *models.ExtractedFields
	Images []string
	URL    string
}

// Assemble builds one output row. The SKU is freshly generated, never derived
// from source data: uniqueness is guaranteed at the cost of traceability.
func (a *Assembler) Assemble(in Input) models.ProductRecord {
	f := in.Fields

	productType := "simple"
	if len(f.Variations) > 0 {
		productType = "variable"
	}

	return models.ProductRecord{
		"Type":              productType,
		"SKU":               NewSKU(),
		"Name":              f.Name,
		"Regular price":     f.Price,
		"Description":       f.Description,
		"Short description": Shorten(f.Description),
		"Images":            strings.Join(in.Images, ","),
		"In stock?":         "1",
		"Categories":        defaultCategory,
		"Original URL":      in.URL,
		"Variations":        FlattenMapping(f.Variations),
		"Shipping Info":     FlattenMapping(f.Shipping),
		"Seller Info":       FlattenMapping(f.Seller),
	}
}

// NewSKU generates an opaque import SKU.
func NewSKU() string {
	return fmt.Sprintf("IMP-%s", uuid.NewString()[:8])
}

// Shorten truncates a description to the short-description budget, appending
// the ellipsis only when something was cut. The budget counts characters, not
// bytes: untranslated CJK text must never be split mid-rune.
func Shorten(desc string) string {
	if utf8.RuneCountInString(desc) <= shortDescriptionMax {
		return desc
	}
	runes := []rune(desc)
	return string(runes[:shortDescriptionMax-len(ellipsis)]) + ellipsis
}

// FlattenMapping renders a mapping as "key: value" entries joined by "|".
// Keys are sorted so the same extraction always flattens identically.
func FlattenMapping(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, m[k]))
	}
	return strings.Join(parts, "|")
}
