package imageurl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
		err      error
	}{
		{
			name: "empty input",
			raw:  "",
			err:  ErrEmpty,
		},
		{
			name: "whitespace only",
			raw:  "   \t ",
			err:  ErrEmpty,
		},
		{
			name: "thumbnail size token rejected",
			raw:  "https://cdn.example.com/img_50x50.jpg",
			err:  ErrLowQuality,
		},
		{
			name: "size and quality markers rejected",
			raw:  "https://cdn.example.com/img_500x500_q60.jpg",
			err:  ErrLowQuality,
		},
		{
			name: "quality marker alone rejected",
			raw:  "https://cdn.example.com/img_q30.jpg",
			err:  ErrLowQuality,
		},
		{
			name:     "query string stripped",
			raw:      "https://cdn.example.com/img.jpg?x=1&spm=abc",
			expected: "https://cdn.example.com/img.jpg",
		},
		{
			name:     "size suffix above thumbnail ladder stripped",
			raw:      "https://cdn.example.com/photo_800x800.jpg",
			expected: "https://cdn.example.com/photo.jpg",
		},
		{
			name:     "quality suffix stripped",
			raw:      "https://cdn.example.com/photo_Q90.jpg",
			expected: "https://cdn.example.com/photo.jpg",
		},
		{
			name:     "stacked size and quality suffixes stripped",
			raw:      "https://cdn.example.com/photo_2000x2000_Q90.jpg",
			expected: "https://cdn.example.com/photo.jpg",
		},
		{
			name:     "json wrapped candidate",
			raw:      `{"imageUrl":"https://cdn.example.com/a.jpg"}`,
			expected: "https://cdn.example.com/a.jpg",
		},
		{
			name:     "json wrapped under alternate key",
			raw:      `{"fullPathImageURI":"https://cdn.example.com/b.png"}`,
			expected: "https://cdn.example.com/b.png",
		},
		{
			name:     "broken json falls back to regex",
			raw:      `{"imageUrl": https://cdn.example.com/c.webp}`,
			expected: "https://cdn.example.com/c.webp",
		},
		{
			name:     "wrapper prefix stripped",
			raw:      "ImageURI:https://cdn.example.com/d.png",
			expected: "https://cdn.example.com/d.png",
		},
		{
			name:     "trailing comma and slash stripped",
			raw:      "https://cdn.example.com/e.jpg,",
			expected: "https://cdn.example.com/e.jpg",
		},
		{
			name:     "protocol relative url",
			raw:      "//cdn.example.com/f.webp",
			expected: "https://cdn.example.com/f.webp",
		},
		{
			name: "relative path rejected",
			raw:  "/images/g.jpg",
			err:  ErrNoScheme,
		},
		{
			name: "non-image rejected",
			raw:  "https://cdn.example.com/page.html",
			err:  ErrNotImage,
		},
		{
			name: "extension lost after query strip",
			raw:  "https://cdn.example.com/render?img=h.jpg",
			err:  ErrNotImage,
		},
		{
			name:     "uppercase extension accepted",
			raw:      "https://cdn.example.com/i.JPG",
			expected: "https://cdn.example.com/i.JPG",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.raw)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"https://cdn.example.com/img.jpg?x=1",
		"https://cdn.example.com/photo_800x800_Q90.jpg",
		`{"imageUrl":"https://cdn.example.com/a.jpeg"}`,
		"//cdn.example.com/f.webp",
	}

	for _, raw := range inputs {
		first, err := Normalize(raw)
		require.NoError(t, err, raw)

		second, err := Normalize(first)
		require.NoError(t, err, first)
		assert.Equal(t, first, second)
	}
}

func TestNormalizeAcceptedShape(t *testing.T) {
	accepted := []string{
		"https://cdn.example.com/img.jpg?watermark=1",
		"https://cdn.example.com/a/b/photo_1200x1200.png",
		"ImageURI:https://cdn.example.com/d_Q80.gif",
	}

	for _, raw := range accepted {
		got, err := Normalize(raw)
		require.NoError(t, err, raw)

		assert.NotContains(t, got, "?")
		assert.NotRegexp(t, `[_-]\d{2,4}x\d{2,4}\.`, got)
		assert.NotRegexp(t, `(?i)[_-]q\d{2}\.`, got)
		assert.True(t, hasImageExtension(got), got)
	}
}
