package translate

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Translator converts text between languages. Implementations must be
// tolerant: on any failure the original text comes back, never an error, so a
// flaky backend can only ever degrade output to the source language.
type Translator interface {
	Translate(ctx context.Context, text, from, to string) string
}

// Noop returns input unchanged. Used when translation is disabled.
type Noop struct{}

func (Noop) Translate(_ context.Context, text, _, _ string) string { return text }

// commonTerms is a small fixed dictionary of marketplace boilerplate, applied
// when the HTTP backend is unreachable so the most frequent labels still come
// out readable.
var commonTerms = map[string]string{
	"颜色":   "Color",
	"尺寸":   "Size",
	"材质":   "Material",
	"免运费":  "Free shipping",
	"包邮":   "Free shipping",
	"现货":   "In stock",
	"批发":   "Wholesale",
	"厂家直销": "Factory direct",
}

// Client translates through an HTTP backend with a dictionary fallback.
type Client struct {
	http     *resty.Client
	endpoint string
	logger   *slog.Logger
}

type translateResponse struct {
	Text string `json:"text"`
}

// NewClient builds a translator against the given endpoint. The endpoint
// receives GET requests with q/from/to query parameters and answers
// {"text": "..."}.
func NewClient(endpoint string, timeout time.Duration, logger *slog.Logger) *Client {
	httpClient := resty.New().
		SetTimeout(timeout).
		SetRetryCount(1)

	return &Client{
		http:     httpClient,
		endpoint: endpoint,
		logger:   logger.With("component", "translator"),
	}
}

// Translate sends text to the backend. Failures of any kind fall open to the
// dictionary, then to the original text.
func (c *Client) Translate(ctx context.Context, text, from, to string) string {
	if text == "" || text == "N/A" {
		return text
	}

	if c.endpoint != "" {
		resp := translateResponse{}
		r, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"q":    text,
				"from": from,
				"to":   to,
			}).
			SetResult(&resp).
			Get(c.endpoint)

		if err == nil && r.IsSuccess() && resp.Text != "" {
			return resp.Text
		}
		if err != nil {
			c.logger.Warn("translation request failed", "error", err)
		} else {
			c.logger.Warn("translation backend rejected request", "status", r.StatusCode())
		}
	}

	if t, ok := commonTerms[strings.TrimSpace(text)]; ok {
		return t
	}
	return text
}
