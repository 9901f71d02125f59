package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/importlab/marketplace-scraper/internal/config"
	"github.com/importlab/marketplace-scraper/internal/translate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLoader struct {
	pages map[string]string
}

func (l *fakeLoader) Load(_ context.Context, url string) (string, error) {
	html, ok := l.pages[url]
	if !ok {
		return "", errors.New("navigation failed")
	}
	return html, nil
}

// fakeDedup mimics content-hash dedup keyed by configured content groups:
// URLs mapped to the same group count as byte-identical resources.
type fakeDedup struct {
	mu      sync.Mutex
	content map[string]string
	seen    map[string]bool
	flagged []string
}

func (d *fakeDedup) Seen(_ context.Context, url string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	key, ok := d.content[url]
	if !ok {
		key = url
	}
	if d.seen == nil {
		d.seen = make(map[string]bool)
	}
	if d.seen[key] {
		d.flagged = append(d.flagged, url)
		return true
	}
	d.seen[key] = true
	return false
}

type fakeSaver struct {
	mu    sync.Mutex
	saved []string
}

func (s *fakeSaver) Download(_ context.Context, url, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, url)
	return fmt.Sprintf("product_images/img_%d.jpg", len(s.saved)), nil
}

func newTestPipeline(loader Loader, dedup DuplicateChecker, saver ImageSaver, opts Options) *Pipeline {
	if opts.Workers == 0 {
		opts.Workers = 1
	}
	return New(loader, translate.Noop{}, dedup, saver, opts, slog.Default())
}

func TestRunPlaceholderWhenSoleCandidateIsLowQuality(t *testing.T) {
	url := "https://detail.example.com/offer/123.html"
	loader := &fakeLoader{pages: map[string]string{
		url: `<html><head><meta property="og:title" content="Disposable Cup 98mm"></head>
			<body><script>init({"imageUrl":"https://cdn.example.com/img_500x500_q60.jpg"});</script></body></html>`,
	}}

	p := newTestPipeline(loader, &fakeDedup{}, nil, Options{
		ImageMode:   config.ImageModeRemote,
		Placeholder: "placeholder.jpg",
	})

	result, err := p.Run(context.Background(), []string{url})
	require.NoError(t, err)
	require.Len(t, result.Records, 1)

	record := result.Records[0]
	assert.Contains(t, record["Name"], "Disposable Cup")
	assert.Equal(t, "placeholder.jpg", record["Images"])
}

func TestRunNormalizesSingleImage(t *testing.T) {
	url := "https://detail.example.com/offer/123.html"
	loader := &fakeLoader{pages: map[string]string{
		url: `<html><head><meta property="og:title" content="Disposable Cup 98mm"></head>
			<body><script>init({"imageUrl":"https://cdn.example.com/img.jpg?x=1"});</script></body></html>`,
	}}

	p := newTestPipeline(loader, &fakeDedup{}, nil, Options{
		ImageMode:   config.ImageModeRemote,
		Placeholder: "placeholder.jpg",
	})

	result, err := p.Run(context.Background(), []string{url})
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "https://cdn.example.com/img.jpg", result.Records[0]["Images"])
}

func TestRunDownloadModeSkipsDuplicateContent(t *testing.T) {
	urlA := "https://detail.example.com/offer/a.html"
	urlB := "https://detail.example.com/offer/b.html"
	page := func(img string) string {
		return fmt.Sprintf(`<html><head><meta property="og:title" content="Disposable Cup 98mm"></head>
			<body><script>init({"imageUrl":"%s"});</script></body></html>`, img)
	}

	loader := &fakeLoader{pages: map[string]string{
		urlA: page("https://cdn.example.com/one.jpg"),
		urlB: page("https://cdn.example.com/two.jpg"),
	}}

	// Both URLs serve byte-identical content.
	dedup := &fakeDedup{content: map[string]string{
		"https://cdn.example.com/one.jpg": "same-bytes",
		"https://cdn.example.com/two.jpg": "same-bytes",
	}}
	saver := &fakeSaver{}

	p := newTestPipeline(loader, dedup, saver, Options{
		ImageMode: config.ImageModeDownload,
	})

	result, err := p.Run(context.Background(), []string{urlA, urlB})
	require.NoError(t, err)
	require.Len(t, result.Records, 2)

	// The identical content was persisted exactly once across the run.
	assert.Len(t, saver.saved, 1)

	var nonEmpty int
	for _, record := range result.Records {
		assert.NotContains(t, record["Images"], "https://", "download mode must emit local paths only")
		if record["Images"] != "" {
			nonEmpty++
		}
	}
	assert.Equal(t, 1, nonEmpty)
}

func TestRunRemoteModeKeepsDuplicatesButFlagsThem(t *testing.T) {
	urlA := "https://detail.example.com/offer/a.html"
	urlB := "https://detail.example.com/offer/b.html"
	page := func(img string) string {
		return fmt.Sprintf(`<html><head><meta property="og:title" content="Disposable Cup 98mm"></head>
			<body><script>init({"imageUrl":"%s"});</script></body></html>`, img)
	}

	loader := &fakeLoader{pages: map[string]string{
		urlA: page("https://cdn.example.com/one.jpg"),
		urlB: page("https://cdn.example.com/two.jpg"),
	}}
	dedup := &fakeDedup{content: map[string]string{
		"https://cdn.example.com/one.jpg": "same-bytes",
		"https://cdn.example.com/two.jpg": "same-bytes",
	}}

	p := newTestPipeline(loader, dedup, nil, Options{
		ImageMode: config.ImageModeRemote,
	})

	result, err := p.Run(context.Background(), []string{urlA, urlB})
	require.NoError(t, err)
	require.Len(t, result.Records, 2)

	// Both records keep their remote URL; the duplicate is only flagged.
	for _, record := range result.Records {
		assert.Contains(t, record["Images"], "https://cdn.example.com/")
	}
	assert.Len(t, dedup.flagged, 1)
}

func TestRunFailedURLSkippedNotFatal(t *testing.T) {
	good := "https://detail.example.com/offer/ok.html"
	bad := "https://detail.example.com/offer/missing.html"

	loader := &fakeLoader{pages: map[string]string{
		good: `<html><head><meta property="og:title" content="Disposable Cup 98mm"></head><body></body></html>`,
	}}

	p := newTestPipeline(loader, &fakeDedup{}, nil, Options{
		ImageMode:   config.ImageModeRemote,
		Placeholder: "placeholder.jpg",
	})

	result, err := p.Run(context.Background(), []string{bad, good})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Records, 1)
	assert.Contains(t, result.Records[0]["Name"], "Disposable Cup")
}

func TestRunEmptyBatch(t *testing.T) {
	p := newTestPipeline(&fakeLoader{}, &fakeDedup{}, nil, Options{})

	result, err := p.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoURLs)
	assert.False(t, result.Succeeded())
}

func TestRunAllURLsFailing(t *testing.T) {
	p := newTestPipeline(&fakeLoader{}, &fakeDedup{}, nil, Options{})

	result, err := p.Run(context.Background(), []string{"https://detail.example.com/offer/x.html"})
	assert.ErrorIs(t, err, ErrNoRecords)
	assert.Equal(t, 1, result.Failed)
}

type panicTranslator struct{}

func (panicTranslator) Translate(_ context.Context, _, _, _ string) string {
	panic("translator blew up")
}

func TestRunRecoversFromPanic(t *testing.T) {
	url := "https://detail.example.com/offer/123.html"
	loader := &fakeLoader{pages: map[string]string{
		url: `<html><head><meta property="og:title" content="Disposable Cup 98mm"></head><body></body></html>`,
	}}

	p := New(loader, panicTranslator{}, &fakeDedup{}, nil, Options{
		Workers:     1,
		ImageMode:   config.ImageModeRemote,
		Placeholder: "placeholder.jpg",
	}, slog.Default())

	result, err := p.Run(context.Background(), []string{url})
	assert.ErrorIs(t, err, ErrNoRecords)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Results, 1)
	assert.Contains(t, result.Results[0].Err, "panic while processing url")
}

func TestRunBoundedParallel(t *testing.T) {
	pages := make(map[string]string)
	var urls []string
	for i := 0; i < 20; i++ {
		url := fmt.Sprintf("https://detail.example.com/offer/%d.html", i)
		pages[url] = fmt.Sprintf(`<html><head><meta property="og:title" content="Product Number %d"></head><body></body></html>`, i)
		urls = append(urls, url)
	}

	p := newTestPipeline(&fakeLoader{pages: pages}, &fakeDedup{}, nil, Options{
		Workers:     4,
		ImageMode:   config.ImageModeRemote,
		Placeholder: "placeholder.jpg",
	})

	result, err := p.Run(context.Background(), urls)
	require.NoError(t, err)
	assert.Equal(t, 20, result.Processed)
	assert.Len(t, result.Records, 20)

	// Every submitted URL shows up exactly once, in whatever completion order.
	seen := make(map[string]bool)
	for _, record := range result.Records {
		seen[record["Original URL"]] = true
		assert.True(t, strings.HasPrefix(record["SKU"], "IMP-"))
	}
	assert.Len(t, seen, 20)
}
