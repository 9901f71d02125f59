package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/importlab/marketplace-scraper/internal/models"
)

// utf8BOM makes spreadsheet tools detect the encoding; without it Excel
// mangles the Chinese text that survives translation fallbacks.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteCSV writes records in the fixed import column order.
func WriteCSV(w io.Writer, records []models.ProductRecord) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("failed to write BOM: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(models.Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, record := range records {
		if err := cw.Write(record.Row()); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes records to the given path, creating or truncating it.
func WriteCSVFile(path string, records []models.ProductRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := WriteCSV(f, records); err != nil {
		return err
	}
	return f.Close()
}
