package store

import (
	"sort"

	"github.com/shopstack-oss/shopstack/support-bridge/internal/domain"
)

// Reconcile merges a relay-confirmed message into a collection. It is a pure
// function: the input slice is never mutated.
//
// Rules, in order:
//  1. A message with the same durable id already present means duplicate
//     delivery (the channel is at-least-once); the collection is unchanged.
//  2. The pending entry produced by the same logical send is removed: by
//     clientTag when the relay echoed one, otherwise the oldest pending
//     message from the same sender role (FIFO).
//  3. The confirmed message is appended.
//
// A confirmation that matches no pending entry still appends; unmatched
// pending entries are left in place rather than silently dropped.
func Reconcile(list []*domain.Message, incoming *domain.Message) (out []*domain.Message, replacedLocal string, changed bool) {
	if incoming.ID != "" {
		for _, m := range list {
			if m.ID == incoming.ID {
				return list, "", false
			}
		}
	}

	dropIdx := -1
	if incoming.LocalID != "" {
		for i, m := range list {
			if m.Pending() && m.LocalID == incoming.LocalID {
				dropIdx = i
				break
			}
		}
	}
	if dropIdx < 0 {
		// FIFO fallback: optimistic sends are expected to confirm in the
		// same relative order they were made.
		for i, m := range list {
			if m.Pending() && m.SenderType == incoming.SenderType {
				dropIdx = i
				break
			}
		}
	}

	out = make([]*domain.Message, 0, len(list)+1)
	for i, m := range list {
		if i == dropIdx {
			replacedLocal = m.LocalID
			continue
		}
		out = append(out, m)
	}
	out = append(out, incoming)

	return out, replacedLocal, true
}

// RemoveLocal drops the pending message with the given local id. Used when a
// send is known to have failed and must be reverted.
func RemoveLocal(list []*domain.Message, localID string) (out []*domain.Message, removed bool) {
	out = make([]*domain.Message, 0, len(list))
	for _, m := range list {
		if m.Pending() && m.LocalID == localID {
			removed = true
			continue
		}
		out = append(out, m)
	}
	return out, removed
}

// SortByCreatedAt orders a copy of the list for rendering. Confirmed
// messages may arrive out of order after a confirmation race; the only
// guarantee is eventual createdAt order.
func SortByCreatedAt(list []*domain.Message) []*domain.Message {
	out := make([]*domain.Message, len(list))
	copy(out, list)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
