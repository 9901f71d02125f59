package models

import (
	"time"
)

// Columns is the fixed WooCommerce import header. The consuming importer
// matches on these exact names, so order and spelling are a contract.
var Columns = []string{
	"Type",
	"SKU",
	"Name",
	"Regular price",
	"Description",
	"Short description",
	"Images",
	"In stock?",
	"Categories",
	"Original URL",
	"Variations",
	"Shipping Info",
	"Seller Info",
}

// ProductRecord is one assembled output row, keyed by column name.
type ProductRecord map[string]string

// Row returns the record's values in Columns order.
func (r ProductRecord) Row() []string {
	row := make([]string, len(Columns))
	for i, col := range Columns {
		row[i] = r[col]
	}
	return row
}

// ExtractedFields holds the raw per-field extraction output for one page,
// before translation and assembly.
type ExtractedFields struct {
	Name        string
	Price       string
	Description string
	Images      []string
	Variations  map[string]string
	Shipping    map[string]string
	Seller      map[string]string
}

// ScrapeResult reports the outcome of processing a single URL.
type ScrapeResult struct {
	URL       string        `json:"url"`
	Record    ProductRecord `json:"record,omitempty"`
	Err       string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// BatchResult summarizes a whole run. Records are in completion order, not
// submission order, when the batch ran with more than one worker.
type BatchResult struct {
	Records   []ProductRecord `json:"records"`
	Processed int             `json:"processed"`
	Failed    int             `json:"failed"`
	Results   []ScrapeResult  `json:"results"`
}

// Succeeded reports whether the run produced at least one record.
func (b *BatchResult) Succeeded() bool {
	return len(b.Records) > 0
}
