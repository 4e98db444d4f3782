package main

import (
	"slices"
	"strings"

	"github.com/xenking/kart-orders/internal/domain/order"
)

type change struct {
	id   string
	from *order.Status
	to   order.Status
}

func statuses(orders []order.Order) map[string]order.Status {
	m := make(map[string]order.Status, len(orders))
	for _, o := range orders {
		m[o.ID] = o.Status
	}
	return m
}

// diff lists orders that appeared or changed status between two snapshots,
// ordered by id. Orders missing from next are ignored.
func diff(prev, next map[string]order.Status) []change {
	var out []change
	for id, to := range next {
		from, ok := prev[id]
		switch {
		case !ok:
			out = append(out, change{id: id, to: to})
		case from != to:
			out = append(out, change{id: id, from: &from, to: to})
		}
	}
	slices.SortFunc(out, func(a, b change) int { return strings.Compare(a.id, b.id) })
	return out
}
