package pipeline

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

var sampleURLs = `# One product URL per line. Lines starting with # are ignored.
https://detail.1688.com/offer/653499140995.html
https://detail.1688.com/offer/636312391325.html
https://item.taobao.com/item.htm?id=123456789
`

// ReadURLFile loads the batch input: one URL per line, blank lines and #
// comments skipped. A missing file is replaced with a commented sample so a
// first run has something to edit.
func ReadURLFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		if werr := os.WriteFile(path, []byte(sampleURLs), 0o644); werr != nil {
			return nil, fmt.Errorf("failed to create sample URL file: %w", werr)
		}
		return nil, fmt.Errorf("%s did not exist, created a sample: %w", path, ErrNoURLs)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.HasPrefix(line, "http") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if len(urls) == 0 {
		return nil, ErrNoURLs
	}
	return urls, nil
}
