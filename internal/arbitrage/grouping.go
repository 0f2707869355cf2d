package arbitrage

import (
	"sort"

	"github.com/alanyoungcy/skewscan/internal/domain"
	"github.com/alanyoungcy/skewscan/internal/matching"
)

// groupSource names how a price group was formed.
type groupSource int

const (
	groupExactID groupSource = iota
	groupMapping
	groupTitle
)

func (s groupSource) String() string {
	switch s {
	case groupExactID:
		return "exact_id"
	case groupMapping:
		return "mapping"
	case groupTitle:
		return "title"
	default:
		return "unknown"
	}
}

// priceGroup is a set of quotes believed to price the same event.
type priceGroup struct {
	source groupSource
	key    string
	prices []domain.Price
}

// buildGroups partitions prices three ways, in this order:
//  1. by exact MarketID;
//  2. by connected component of the mapping graph;
//  3. by title key, for markets that appear in no mapping.
//
// Groups inside each kind are sorted by key.
func buildGroups(prices []domain.Price, markets []domain.Market, mappings []domain.Mapping) []priceGroup {
	var groups []priceGroup

	byID := make(map[string][]domain.Price)
	for _, p := range prices {
		byID[p.MarketID] = append(byID[p.MarketID], p)
	}
	groups = append(groups, collect(groupExactID, byID)...)

	uf := newUnionFind()
	for _, m := range mappings {
		uf.union(m.MarketIDA, m.MarketIDB)
	}
	byComponent := make(map[string][]domain.Price)
	for _, p := range prices {
		if uf.has(p.MarketID) {
			root := uf.find(p.MarketID)
			byComponent[root] = append(byComponent[root], p)
		}
	}
	groups = append(groups, collect(groupMapping, byComponent)...)

	titleKeys := make(map[string]string, len(markets))
	for _, m := range markets {
		if uf.has(m.ID) {
			continue
		}
		if key := matching.TitleKey(m.Title); key != "" {
			titleKeys[m.ID] = key
		}
	}
	byTitle := make(map[string][]domain.Price)
	for _, p := range prices {
		if key, ok := titleKeys[p.MarketID]; ok {
			byTitle[key] = append(byTitle[key], p)
		}
	}
	groups = append(groups, collect(groupTitle, byTitle)...)

	return groups
}

func collect(source groupSource, buckets map[string][]domain.Price) []priceGroup {
	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]priceGroup, 0, len(keys))
	for _, k := range keys {
		out = append(out, priceGroup{source: source, key: k, prices: buckets[k]})
	}
	return out
}

// unionFind tracks connected market ids. The root of a component is always
// its lexically smallest id, which keeps component keys stable.
type unionFind struct {
	parent map[string]string
}

func newUnionFind() *unionFind {
	return &unionFind{parent: make(map[string]string)}
}

func (u *unionFind) has(id string) bool {
	_, ok := u.parent[id]
	return ok
}

func (u *unionFind) find(id string) string {
	if _, ok := u.parent[id]; !ok {
		u.parent[id] = id
		return id
	}
	root := id
	for u.parent[root] != root {
		root = u.parent[root]
	}
	for id != root {
		next := u.parent[id]
		u.parent[id] = root
		id = next
	}
	return root
}

func (u *unionFind) union(a, b string) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if rb < ra {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
}
