package feed

import (
	"slices"
	"strings"
)

// noCategories is sent when every category is deselected, so the backend matches nothing.
const noCategories = "__none__"

// Category is an E-Hentai gallery category.
type Category struct {
	Key   string
	Label string
	Color string
}

// Categories lists the ten gallery categories in display order.
var Categories = []Category{
	{Key: "doujinshi", Label: "Doujinshi", Color: "#ff5252"},
	{Key: "manga", Label: "Manga", Color: "#fdb813"},
	{Key: "image set", Label: "Image Set", Color: "#4f54d1"},
	{Key: "game cg", Label: "Game CG", Color: "#00c700"},
	{Key: "artist cg", Label: "Artist CG", Color: "#d7e600"},
	{Key: "cosplay", Label: "Cosplay", Color: "#8756e6"},
	{Key: "non-h", Label: "Non-H", Color: "#66bcd3"},
	{Key: "asian porn", Label: "Asian Porn", Color: "#de7de5"},
	{Key: "western", Label: "Western", Color: "#18e61f"},
	{Key: "misc", Label: "Misc", Color: "#473f3f"},
}

// CategoryByKey looks a category up by key or label, ignoring case.
func CategoryByKey(key string) (Category, bool) {
	k := strings.ToLower(strings.TrimSpace(key))
	for _, c := range Categories {
		if c.Key == k || strings.ToLower(c.Label) == k {
			return c, true
		}
	}
	return Category{}, false
}

// Filters narrows search results by category and tag.
type Filters struct {
	Categories []string
	Tags       []string
}

// DefaultFilters selects every category and no tags.
func DefaultFilters() Filters {
	f := Filters{}
	for _, c := range Categories {
		f.Categories = append(f.Categories, c.Key)
	}
	return f
}

// EffectiveCategories is the include_categories value sent with a search:
// empty when all categories are selected, a sentinel when none are.
func (f Filters) EffectiveCategories() []string {
	selected := f.selectedCategories()
	switch len(selected) {
	case len(Categories):
		return []string{}
	case 0:
		return []string{noCategories}
	default:
		return selected
	}
}

func (f Filters) selectedCategories() []string {
	var out []string
	for _, c := range Categories {
		if slices.Contains(f.Categories, c.Key) {
			out = append(out, c.Key)
		}
	}
	return out
}

// ToggleCategory selects or deselects one category.
func (f Filters) ToggleCategory(key string) Filters {
	c, ok := CategoryByKey(key)
	if !ok {
		return f
	}
	out := Filters{Tags: slices.Clone(f.Tags)}
	if slices.Contains(f.Categories, c.Key) {
		out.Categories = slices.DeleteFunc(slices.Clone(f.Categories), func(k string) bool { return k == c.Key })
	} else {
		out.Categories = append(slices.Clone(f.Categories), c.Key)
	}
	return out
}

// ToggleTag adds tag, or removes it when already present (case-insensitive).
func (f Filters) ToggleTag(tag string) Filters {
	t := strings.TrimSpace(tag)
	out := Filters{Categories: slices.Clone(f.Categories), Tags: slices.Clone(f.Tags)}
	if t == "" {
		return out
	}
	i := slices.IndexFunc(out.Tags, func(x string) bool { return strings.EqualFold(x, t) })
	if i >= 0 {
		out.Tags = slices.Delete(out.Tags, i, i+1)
	} else {
		out.Tags = append(out.Tags, t)
	}
	return out
}

// HasTag reports whether tag is an active filter.
func (f Filters) HasTag(tag string) bool {
	t := strings.TrimSpace(tag)
	return slices.ContainsFunc(f.Tags, func(x string) bool { return strings.EqualFold(x, t) })
}
