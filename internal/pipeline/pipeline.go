package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/importlab/marketplace-scraper/internal/assemble"
	"github.com/importlab/marketplace-scraper/internal/config"
	"github.com/importlab/marketplace-scraper/internal/extract"
	"github.com/importlab/marketplace-scraper/internal/imageurl"
	"github.com/importlab/marketplace-scraper/internal/models"
	"github.com/importlab/marketplace-scraper/internal/queue"
	"github.com/importlab/marketplace-scraper/internal/ratelimit"
	"github.com/importlab/marketplace-scraper/internal/translate"
)

var (
	ErrNoURLs    = errors.New("no URLs to process")
	ErrNoRecords = errors.New("no products were successfully scraped")
)

// Loader supplies the rendered markup for a URL. It owns all session,
// anti-bot, and navigation concerns; the pipeline only consumes its output.
type Loader interface {
	Load(ctx context.Context, url string) (string, error)
}

// DuplicateChecker reports whether an image's content was already seen this
// run. Implemented by internal/dedup.
type DuplicateChecker interface {
	Seen(ctx context.Context, url string) bool
}

// ImageSaver persists an image locally and returns its path. Implemented by
// internal/fetch for the download-first mode.
type ImageSaver interface {
	Download(ctx context.Context, url, productName string) (string, error)
}

type Options struct {
	Workers     int
	ImageMode   config.ImageMode
	Placeholder string
	Limiter     ratelimit.RateLimiter
	From        string
	To          string
}

// Pipeline drives the per-URL flow: load, extract, translate, normalize,
// dedup, assemble. URLs that fail are logged and skipped; nothing short of an
// empty batch aborts a run.
type Pipeline struct {
	loader     Loader
	extractor  *extract.Extractor
	translator translate.Translator
	dedup      DuplicateChecker
	saver      ImageSaver
	assembler  *assemble.Assembler
	opts       Options
	logger     *slog.Logger
}

func New(loader Loader, translator translate.Translator, dedup DuplicateChecker, saver ImageSaver, opts Options, logger *slog.Logger) *Pipeline {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.None{}
	}

	return &Pipeline{
		loader:     loader,
		extractor:  extract.NewExtractor(logger),
		translator: translator,
		dedup:      dedup,
		saver:      saver,
		assembler:  assemble.New(),
		opts:       opts,
		logger:     logger.With("component", "pipeline"),
	}
}

// Run processes the batch with a bounded worker pool. Records land in
// completion order: there is no cross-URL ordering guarantee when Workers is
// greater than one. Partial results are always returned, alongside
// ErrNoRecords when the whole batch produced nothing.
func (p *Pipeline) Run(ctx context.Context, urls []string) (*models.BatchResult, error) {
	result := &models.BatchResult{}

	if len(urls) == 0 {
		return result, ErrNoURLs
	}

	tasks := queue.NewInMemoryQueue()
	for _, url := range urls {
		if err := tasks.Push(queue.NewTask(url)); err != nil {
			return result, fmt.Errorf("failed to enqueue task: %w", err)
		}
	}
	tasks.Close()

	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < p.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				task, err := tasks.Pop(ctx)
				if err != nil {
					return
				}

				if err := p.opts.Limiter.Wait(ctx); err != nil {
					return
				}

				res := p.processURL(ctx, task.URL)

				mu.Lock()
				result.Results = append(result.Results, res)
				if res.Err == "" {
					result.Records = append(result.Records, res.Record)
					result.Processed++
				} else {
					result.Failed++
					p.logger.Error("url failed", "url", task.URL, "error", res.Err)
				}
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	if !result.Succeeded() {
		return result, ErrNoRecords
	}
	return result, nil
}

// processURL runs one full extraction pass. A panic anywhere in the pass is
// converted into a failed result for that URL alone.
func (p *Pipeline) processURL(ctx context.Context, url string) (res models.ScrapeResult) {
	res = models.ScrapeResult{URL: url, StartedAt: time.Now()}
	defer func() {
		res.Duration = time.Since(res.StartedAt)
		if r := recover(); r != nil {
			res.Record = nil
			res.Err = fmt.Sprintf("panic while processing url: %v", r)
		}
	}()

	html, err := p.loader.Load(ctx, url)
	if err != nil {
		res.Err = fmt.Sprintf("page load failed: %v", err)
		return res
	}

	snap, err := extract.NewSnapshot(url, html)
	if err != nil {
		res.Err = fmt.Sprintf("snapshot failed: %v", err)
		return res
	}

	fields := p.extractor.Extract(snap)
	p.translateFields(ctx, fields)

	images := p.resolveImages(ctx, fields)

	res.Record = p.assembler.Assemble(assemble.Input{
		Fields: fields,
		Images: images,
		URL:    url,
	})

	p.logger.Info("processed product", "url", url, "name", fields.Name, "images", len(images))
	return res
}

// translateFields translates scalar text and flattened mappings in place.
// The translator is fail-open, so this can only ever leave text untranslated.
func (p *Pipeline) translateFields(ctx context.Context, fields *models.ExtractedFields) {
	from, to := p.opts.From, p.opts.To

	fields.Name = p.translator.Translate(ctx, fields.Name, from, to)
	fields.Description = p.translator.Translate(ctx, fields.Description, from, to)
	fields.Variations = p.translateMapping(ctx, fields.Variations)
	fields.Shipping = p.translateMapping(ctx, fields.Shipping)
	fields.Seller = p.translateMapping(ctx, fields.Seller)
}

func (p *Pipeline) translateMapping(ctx context.Context, m map[string]string) map[string]string {
	if len(m) == 0 {
		return m
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[p.translator.Translate(ctx, k, p.opts.From, p.opts.To)] = p.translator.Translate(ctx, v, p.opts.From, p.opts.To)
	}
	return out
}

// resolveImages normalizes collected candidates and applies the configured
// image mode. When every candidate fails normalization the placeholder is
// substituted; that is a defined degraded-success path, not a failure.
func (p *Pipeline) resolveImages(ctx context.Context, fields *models.ExtractedFields) []string {
	var normalized []string
	seen := make(map[string]bool)
	for _, raw := range fields.Images {
		u, err := imageurl.Normalize(raw)
		if err != nil {
			p.logger.Debug("image candidate rejected", "raw", raw, "reason", err)
			continue
		}
		if !seen[u] {
			seen[u] = true
			normalized = append(normalized, u)
		}
	}

	if len(normalized) == 0 {
		p.logger.Warn("no usable images, substituting placeholder", "name", fields.Name)
		if p.opts.Placeholder != "" {
			return []string{p.opts.Placeholder}
		}
		return nil
	}

	switch p.opts.ImageMode {
	case config.ImageModeDownload:
		return p.downloadImages(ctx, normalized, fields.Name)
	default:
		// URL-retention mode: duplicates are flagged in diagnostics but both
		// URLs stay in the record.
		if p.dedup != nil {
			for _, u := range normalized {
				if p.dedup.Seen(ctx, u) {
					p.logger.Info("duplicate image content", "url", u)
				}
			}
		}
		return normalized
	}
}

// downloadImages fetches each non-duplicate image to local storage. The
// resulting list holds local paths only; failed downloads are skipped.
func (p *Pipeline) downloadImages(ctx context.Context, urls []string, productName string) []string {
	var paths []string
	for _, u := range urls {
		if p.dedup != nil && p.dedup.Seen(ctx, u) {
			p.logger.Debug("skipping duplicate image", "url", u)
			continue
		}
		if p.saver == nil {
			continue
		}
		path, err := p.saver.Download(ctx, u, productName)
		if err != nil {
			p.logger.Warn("image download failed", "url", u, "error", err)
			continue
		}
		paths = append(paths, path)
	}
	return paths
}
