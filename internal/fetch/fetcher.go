package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// Client fetches image bytes over HTTP. The headers mirror what the
// marketplace CDNs expect from a browser; without a Referer some of them
// answer 403.
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

type Options struct {
	Timeout   time.Duration
	UserAgent string
	Referer   string
}

func DefaultOptions() *Options {
	return &Options{
		Timeout:   15 * time.Second,
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		Referer:   "https://www.1688.com/",
	}
}

func NewClient(opts *Options, logger *slog.Logger) *Client {
	if opts == nil {
		opts = DefaultOptions()
	}

	httpClient := resty.New().
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", opts.UserAgent).
		SetHeader("Referer", opts.Referer).
		SetHeader("Accept", "image/webp,image/apng,image/*,*/*;q=0.8")

	return &Client{
		http:   httpClient,
		logger: logger.With("component", "fetcher"),
	}
}

// Fetch downloads the resource and returns its bytes.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode(), url)
	}
	return resp.Body(), nil
}

var unsafeNameChars = regexp.MustCompile(`[^\w\s-]`)

// Downloader persists fetched images for the download-first pipeline mode.
type Downloader struct {
	client *Client
	dir    string
	logger *slog.Logger
}

func NewDownloader(client *Client, dir string, logger *slog.Logger) *Downloader {
	return &Downloader{
		client: client,
		dir:    dir,
		logger: logger.With("component", "downloader"),
	}
}

// Download fetches the image and writes it under the images directory. The
// filename combines a sanitized product name with a short unique fragment so
// parallel workers never collide.
func (d *Downloader) Download(ctx context.Context, url, productName string) (string, error) {
	body, err := d.client.Fetch(ctx, url)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create image dir: %w", err)
	}

	name := strings.TrimSpace(unsafeNameChars.ReplaceAllString(productName, ""))
	name = strings.ReplaceAll(name, " ", "_")
	if name == "" {
		name = "product"
	}

	filename := fmt.Sprintf("%s_%s%s", name, uuid.NewString()[:8], extensionOf(url))
	path := filepath.Join(d.dir, filename)

	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}

	d.logger.Debug("downloaded image", "url", url, "path", path)
	return path, nil
}

// extensionOf sniffs the file extension from the URL path, defaulting to .jpg.
func extensionOf(url string) string {
	path := url
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		path = path[i+1:]
	}
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return ext
	}
	return ".jpg"
}
