package fetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompose(t *testing.T) {
	const base = "http://localhost:8000/api/products"

	tests := []struct {
		name    string
		filters []Filter
		want    Locator
	}{
		{
			name:    "empty category is omitted",
			filters: []Filter{{Name: "category", Value: ""}, {Name: "q", Value: "ml"}},
			want:    base + "?q=ml",
		},
		{
			name:    "no active filter yields bare base",
			filters: []Filter{{Name: "category", Value: ""}, {Name: "q", Value: ""}},
			want:    base,
		},
		{
			name:    "declaration order is kept",
			filters: []Filter{{Name: "q", Value: "diamond"}, {Name: "category", Value: "mlbb"}},
			want:    base + "?q=diamond&category=mlbb",
		},
		{
			name:    "values are query escaped",
			filters: []Filter{{Name: "q", Value: "mobile legends&x=1"}},
			want:    base + "?q=mobile+legends%26x%3D1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compose(base, tt.filters...))
		})
	}
}

func TestCompose_ChangesWhenAnInputChanges(t *testing.T) {
	a := Compose("/products", Filter{"category", "ml"}, Filter{"q", ""})
	b := Compose("/products", Filter{"category", "ml"}, Filter{"q", "d"})
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, Compose("/products", Filter{"category", "ml"}, Filter{"q", ""}))
}

func TestCompose_BaseWithQuery(t *testing.T) {
	assert.Equal(t, Locator("/products?active=1&q=ml"), Compose("/products?active=1", Filter{"q", "ml"}))
}

func TestJoin(t *testing.T) {
	assert.Equal(t, Locator("http://x/api/ratings/abc%2F1"), Join("http://x/api/", "ratings", "abc/1"))
}
