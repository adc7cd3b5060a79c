package model

import "sort"

// CatalogItem is a playable video file or a named, timed activity.
type CatalogItem struct {
	ID         string `json:"uuid"`
	Name       string `json:"name"`
	DurationMs int64  `json:"duration"`
	IsVideo    bool   `json:"isVideo"`
}

// Catalog indexes catalog items by name.
type Catalog map[string]CatalogItem

// NewCatalog builds a Catalog from items. Activities take precedence over
// videos sharing the same name.
func NewCatalog(items []CatalogItem) Catalog {
	c := make(Catalog, len(items))
	for _, it := range items {
		if !it.IsVideo {
			continue
		}
		c[it.Name] = it
	}
	for _, it := range items {
		if it.IsVideo {
			continue
		}
		c[it.Name] = it
	}
	return c
}

// Lookup returns the item registered under name.
func (c Catalog) Lookup(name string) (CatalogItem, bool) {
	it, ok := c[name]
	return it, ok
}

// EffectiveDuration returns the duration used for the named item, falling
// back to DefaultDurationMs for unknown items or items not yet probed.
func (c Catalog) EffectiveDuration(name string) int64 {
	if it, ok := c[name]; ok {
		return it.EffectiveDuration()
	}
	return DefaultDurationMs
}

// EffectiveDuration returns DurationMs, or DefaultDurationMs when unknown.
func (it CatalogItem) EffectiveDuration() int64 {
	if it.DurationMs > 0 {
		return it.DurationMs
	}
	return DefaultDurationMs
}

// SortItemsByName orders items alphabetically in place.
func SortItemsByName(items []CatalogItem) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].Name < items[j].Name })
}

// FilterItems returns the items whose IsVideo flag equals videos.
func FilterItems(items []CatalogItem, videos bool) []CatalogItem {
	out := make([]CatalogItem, 0, len(items))
	for _, it := range items {
		if it.IsVideo == videos {
			out = append(out, it)
		}
	}
	return out
}

// FindItem returns the item with the given id.
func FindItem(items []CatalogItem, id string) (CatalogItem, int, bool) {
	for i, it := range items {
		if it.ID == id {
			return it, i, true
		}
	}
	return CatalogItem{}, -1, false
}
