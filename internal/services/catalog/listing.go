package catalog

import (
	"sort"
	"strings"

	"aimarket/internal/models"
)

// sortByUpdatedDesc orders listings newest-change-first. Done client-side so
// owner listings need no composite index on the store.
func sortByUpdatedDesc(ps []models.Product) {
	sort.SliceStable(ps, func(i, j int) bool {
		return ps[i].UpdatedAt.After(ps[j].UpdatedAt)
	})
}

// filterInStock drops listings whose stock is known and non-positive. A nil
// stock means unlimited and always passes.
func filterInStock(ps []models.Product) []models.Product {
	out := ps[:0]
	for _, p := range ps {
		if p.Stock != nil && *p.Stock <= 0 {
			continue
		}
		out = append(out, p)
	}
	return out
}

// matchesTerm is a case-insensitive substring match over name and description.
func matchesTerm(p models.Product, term string) bool {
	t := strings.ToLower(term)
	return strings.Contains(strings.ToLower(p.Name), t) ||
		strings.Contains(strings.ToLower(p.Description), t)
}

// statusForStock derives the listing status from a stock level: exactly zero
// means out_of_stock, anything else active.
func statusForStock(stock int64) string {
	if stock == 0 {
		return models.StatusOutOfStock
	}
	return models.StatusActive
}
