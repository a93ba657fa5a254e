package closet

import (
	"sort"
	"strings"
	"sync"
)

// CategoryAll is the identity filter: every item matches.
const CategoryAll = "All"

// categoryTerms maps each display category to the garment-type substrings
// that place an item in it. Matching is case-insensitive.
var categoryTerms = map[string][]string{
	"Tops":        {"shirt", "t-shirt", "blouse", "sweater", "hoodie", "sweatshirt", "tank top", "polo"},
	"Bottoms":     {"pants", "jeans", "shorts", "skirt", "trousers", "leggings"},
	"Dresses":     {"dress", "gown", "jumpsuit"},
	"Outerwear":   {"jacket", "coat", "blazer", "cardigan", "vest"},
	"Shoes":       {"shoes", "sneakers", "boots", "sandals", "heels"},
	"Accessories": {"hat", "scarf", "gloves", "belt", "tie", "jewelry", "watch", "bag", "purse", "backpack"},
}

// Categories returns the known filter categories, "All" first.
func Categories() []string {
	out := []string{CategoryAll, "Tops", "Bottoms", "Dresses", "Outerwear", "Shoes", "Accessories"}
	return out
}

// MatchesCategory reports whether a garment type belongs to a category.
// Unknown categories behave like CategoryAll.
func MatchesCategory(garmentType, category string) bool {
	if category == CategoryAll {
		return true
	}
	terms, ok := categoryTerms[category]
	if !ok {
		return true
	}
	garmentType = strings.ToLower(garmentType)
	for _, term := range terms {
		if strings.Contains(garmentType, term) {
			return true
		}
	}
	return false
}

// FilterByCategory keeps the items whose garment type matches the category,
// preserving input order. CategoryAll returns the input unchanged.
func FilterByCategory(items []ClothingItem, category string) []ClothingItem {
	if category == CategoryAll {
		return items
	}
	out := make([]ClothingItem, 0, len(items))
	for _, item := range items {
		if MatchesCategory(item.Attributes.GarmentType, category) {
			out = append(out, item)
		}
	}
	return out
}

// Search keeps the items whose combined attribute text contains every
// whitespace-separated term of the query. An empty query matches everything.
func Search(items []ClothingItem, query string) []ClothingItem {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return items
	}
	out := make([]ClothingItem, 0, len(items))
	for _, item := range items {
		text := item.searchableText()
		all := true
		for _, term := range terms {
			if !strings.Contains(text, term) {
				all = false
				break
			}
		}
		if all {
			out = append(out, item)
		}
	}
	return out
}

// SortByDateAdded returns the items ordered most recent first. The sort is
// stable: equal timestamps keep their prior relative order.
func SortByDateAdded(items []ClothingItem) []ClothingItem {
	out := make([]ClothingItem, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DateAdded.After(out[j].DateAdded)
	})
	return out
}

// Index owns the fetched closet collection and serves filter, search, and
// sort queries over it. All mutation happens under the lock; reads hand out
// snapshot copies so a concurrent deletion can never resurface in a query
// computed alongside it.
type Index struct {
	mu    sync.RWMutex
	items []ClothingItem
}

// NewIndex builds an index over the given items.
func NewIndex(items []ClothingItem) *Index {
	idx := &Index{}
	idx.SetItems(items)
	return idx
}

// SetItems replaces the whole collection, as after a fetch.
func (idx *Index) SetItems(items []ClothingItem) {
	copied := make([]ClothingItem, len(items))
	copy(copied, items)
	idx.mu.Lock()
	idx.items = copied
	idx.mu.Unlock()
}

// Items returns a snapshot copy of the collection.
func (idx *Index) Items() []ClothingItem {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]ClothingItem, len(idx.items))
	copy(out, idx.items)
	return out
}

// Len returns the number of items held.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.items)
}

// Add appends a newly analyzed item to the collection.
func (idx *Index) Add(item ClothingItem) {
	idx.mu.Lock()
	idx.items = append(idx.items, item)
	idx.mu.Unlock()
}

// Delete removes an item by id. It reports whether an item was removed.
func (idx *Index) Delete(id string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for i, item := range idx.items {
		if item.ID == id {
			idx.items = append(idx.items[:i], idx.items[i+1:]...)
			return true
		}
	}
	return false
}

// Query applies the category filter, then the free-text search, then the
// date sort, over a snapshot of the collection.
func (idx *Index) Query(category, query string) []ClothingItem {
	items := idx.Items()
	items = FilterByCategory(items, category)
	items = Search(items, query)
	return SortByDateAdded(items)
}
