package extract

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExtractor() *Extractor {
	return NewExtractor(slog.Default())
}

func mustSnapshot(t *testing.T, html string) *Snapshot {
	t.Helper()
	snap, err := NewSnapshot("https://detail.example.com/offer/123.html", html)
	require.NoError(t, err)
	return snap
}

func TestExtractName(t *testing.T) {
	e := newTestExtractor()

	tests := []struct {
		name     string
		html     string
		expected string
		strategy string
	}{
		{
			name:     "primary selector",
			html:     `<html><body><h1 class="d-title">一次性纸杯 98mm</h1></body></html>`,
			expected: "一次性纸杯 98mm",
			strategy: "selector",
		},
		{
			name:     "generic h1",
			html:     `<html><body><h1>Disposable Paper Cup</h1></body></html>`,
			expected: "Disposable Paper Cup",
			strategy: "selector",
		},
		{
			name:     "page title with site suffix",
			html:     `<html><head><title>Paper Cup Wholesale - 1688.com</title></head><body></body></html>`,
			expected: "Paper Cup Wholesale",
			strategy: "page_title",
		},
		{
			name:     "og title meta",
			html:     `<html><head><meta property="og:title" content="Disposable Cup 98mm"></head><body></body></html>`,
			expected: "Disposable Cup 98mm",
			strategy: "meta",
		},
		{
			name:     "inline json global",
			html:     `<html><body><script>window.__INIT_DATA__ = {"subject":"Bamboo Chopsticks"};</script></body></html>`,
			expected: "Bamboo Chopsticks",
			strategy: "inline_json",
		},
		{
			name:     "regex over raw markup",
			html:     `<html><body><script>load({"productName":"Steel Thermos",})</script></body></html>`,
			expected: "Steel Thermos",
			strategy: "regex",
		},
		{
			name:     "too-short candidates skipped",
			html:     `<html><body><h1>Cup</h1></body></html>`,
			expected: DefaultText,
			strategy: "default",
		},
		{
			name:     "nothing found",
			html:     `<html><body><div>no product here</div></body></html>`,
			expected: DefaultText,
			strategy: "default",
		},
		{
			// 纸杯 is two characters even though it is six bytes; the
			// acceptance gate counts characters.
			name:     "short CJK heading skipped in favor of meta",
			html:     `<html><head><meta property="og:title" content="一次性纸杯批发"></head><body><h1>纸杯</h1></body></html>`,
			expected: "一次性纸杯批发",
			strategy: "meta",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			field := e.ExtractName(mustSnapshot(t, tt.html))
			assert.Equal(t, tt.expected, field.Value)
			assert.Equal(t, tt.strategy, field.Strategy)
		})
	}
}

func TestExtractPrice(t *testing.T) {
	e := newTestExtractor()

	tests := []struct {
		name     string
		html     string
		expected string
		strategy string
	}{
		{
			name:     "selector with currency noise",
			html:     `<html><body><span class="price">¥12.50起</span></body></html>`,
			expected: "12.50",
			strategy: "selector",
		},
		{
			name:     "inline json price",
			html:     `<html><body><script>var offer = {"price":"8.80"};</script></body></html>`,
			expected: "8.80",
			strategy: "inline_json",
		},
		{
			name:     "regex fallback",
			html:     `<html><body><script>cfg.push({"retailPrice": 15.9});</script></body></html>`,
			expected: "15.9",
			strategy: "regex",
		},
		{
			name:     "no price",
			html:     `<html><body><div>contact seller</div></body></html>`,
			expected: DefaultText,
			strategy: "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			field := e.ExtractPrice(mustSnapshot(t, tt.html))
			assert.Equal(t, tt.expected, field.Value)
			assert.Equal(t, tt.strategy, field.Strategy)
		})
	}
}

func TestExtractDescription(t *testing.T) {
	e := newTestExtractor()

	t.Run("selector needs substantial content", func(t *testing.T) {
		html := `<html><body><div class="description">short text</div></body></html>`
		field := e.ExtractDescription(mustSnapshot(t, html))
		assert.Equal(t, DefaultText, field.Value)
	})

	t.Run("selector accepts long content", func(t *testing.T) {
		html := `<html><body><div class="detail-content">High quality disposable cups, 500 per carton.</div></body></html>`
		field := e.ExtractDescription(mustSnapshot(t, html))
		assert.Equal(t, "High quality disposable cups, 500 per carton.", field.Value)
		assert.Equal(t, "selector", field.Strategy)
	})

	t.Run("meta description", func(t *testing.T) {
		html := `<html><head><meta name="description" content="Wholesale cups straight from the factory floor."></head><body></body></html>`
		field := e.ExtractDescription(mustSnapshot(t, html))
		assert.Equal(t, "Wholesale cups straight from the factory floor.", field.Value)
		assert.Equal(t, "meta", field.Strategy)
	})

	t.Run("paragraph fallback requires more text", func(t *testing.T) {
		// 16..30 chars is enough for targeted strategies but not for the
		// generic paragraph sweep.
		html := `<html><body><p>twenty-two characters.</p></body></html>`
		field := e.ExtractDescription(mustSnapshot(t, html))
		assert.Equal(t, DefaultText, field.Value)
	})

	t.Run("paragraph fallback selects substantial paragraphs", func(t *testing.T) {
		text := strings.Repeat("very long paragraph ", 3)
		html := `<html><body><p>` + text + `</p></body></html>`
		field := e.ExtractDescription(mustSnapshot(t, html))
		assert.Equal(t, strings.TrimSpace(text), field.Value)
		assert.Equal(t, "paragraph", field.Strategy)
	})

	t.Run("short strings never selected by paragraph fallback", func(t *testing.T) {
		for _, text := range []string{"", "tiny", "fifteen chars..", "sits at thirty characters yes."} {
			html := `<html><body><p>` + text + `</p></body></html>`
			field := e.ExtractDescription(mustSnapshot(t, html))
			assert.NotEqual(t, "paragraph", field.Strategy, text)
		}
	})
}

func TestExtractVariations(t *testing.T) {
	e := newTestExtractor()

	t.Run("from selectors", func(t *testing.T) {
		html := `<html><body>
			<div class="sku-property" title="颜色" data-value="红色"></div>
			<div class="sku-property" title="尺寸" data-value="大号"></div>
		</body></html>`
		got := e.ExtractVariations(mustSnapshot(t, html))
		assert.Equal(t, map[string]string{"颜色": "红色", "尺寸": "大号"}, got)
	})

	t.Run("from inline json list", func(t *testing.T) {
		html := `<html><body><script>window.__INIT_DATA__ = {"skuProps":[{"name":"Color","value":"Red"},{"name":"Size","value":"L"}]};</script></body></html>`
		got := e.ExtractVariations(mustSnapshot(t, html))
		assert.Equal(t, map[string]string{"Color": "Red", "Size": "L"}, got)
	})

	t.Run("empty when nothing found", func(t *testing.T) {
		got := e.ExtractVariations(mustSnapshot(t, `<html><body></body></html>`))
		assert.Empty(t, got)
	})
}

func TestExtractShippingAndSeller(t *testing.T) {
	e := newTestExtractor()

	html := `<html><body>
		<span class="shipping-fee">免运费</span>
		<span class="delivery-time">48小时内发货</span>
		<div class="shop-name">义乌市某某贸易</div>
		<div class="seller-rating">4.8</div>
	</body></html>`
	snap := mustSnapshot(t, html)

	shipping := e.ExtractShipping(snap)
	assert.Equal(t, "免运费", shipping["shipping_fee"])
	assert.Equal(t, "48小时内发货", shipping["shipping_time"])
	assert.NotContains(t, shipping, "shipping_method")

	seller := e.ExtractSeller(snap)
	assert.Equal(t, "义乌市某某贸易", seller["name"])
	assert.Equal(t, "4.8", seller["rating"])
}

func TestExtractShippingInlineJSONFallback(t *testing.T) {
	e := newTestExtractor()

	html := `<html><body><script>window.__GLOBAL_DATA = {"logistics":{"fee":"8.00","from":"浙江义乌"}};</script></body></html>`
	got := e.ExtractShipping(mustSnapshot(t, html))
	assert.Equal(t, map[string]string{"fee": "8.00", "from": "浙江义乌"}, got)
}

func TestExtractNeverPanicsOnHostileMarkup(t *testing.T) {
	e := newTestExtractor()

	hostile := []string{
		"",
		"<<<>>>",
		`<html><script>window.__INIT_DATA__ = {broken;</script></html>`,
		strings.Repeat("<div>", 200),
	}

	for _, html := range hostile {
		snap := mustSnapshot(t, html)
		fields := e.Extract(snap)
		require.NotNil(t, fields)
		assert.NotEmpty(t, fields.Name)
		assert.NotEmpty(t, fields.Description)
	}
}
