package fetch

import (
	"net/url"
	"strings"
)

// Locator is the fully composed request address (path + query) of one logical fetch.
// Two equal locators denote the same request.
type Locator string

func (l Locator) String() string { return string(l) }

// Filter is one named query parameter; an empty Value means "no filter".
type Filter struct {
	Name  string
	Value string
}

// Compose appends the non-empty filters to base in declaration order.
// With no active filter the bare base is returned, without a trailing "?".
func Compose(base string, filters ...Filter) Locator {
	var b strings.Builder
	b.WriteString(base)
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	for _, f := range filters {
		if f.Value == "" || f.Name == "" {
			continue
		}
		b.WriteString(sep)
		b.WriteString(url.QueryEscape(f.Name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(f.Value))
		sep = "&"
	}
	return Locator(b.String())
}

// Join appends escaped path segments to base, e.g. Join(b, "ratings", id).
func Join(base string, segments ...string) Locator {
	var b strings.Builder
	b.WriteString(strings.TrimRight(base, "/"))
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return Locator(b.String())
}
