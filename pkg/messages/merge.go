package messages

import (
	"github.com/samber/lo"
	"github.com/zfogg/feedsync/pkg/entity"
)

// MergeMessages folds a fresh server listing into the locally held list.
//
// The result is the union of both lists by id, with server copies winning.
// Nothing held is dropped: a poll issued before a send confirmed can land
// after it, and its listing will not include the confirmed message yet. The
// result is sorted oldest first and holds each id once.
func MergeMessages(held, fresh []entity.Message) []entity.Message {
	byID := lo.KeyBy(held, func(m entity.Message) string { return m.ID })
	for _, m := range fresh {
		m.Status = entity.StatusConfirmed
		byID[m.ID] = m
	}

	merged := lo.Values(byID)
	entity.SortMessages(merged)
	return merged
}

// replaceLocal swaps the local message localID for its confirmed copy. If a
// poll already delivered the confirmed copy the local one is just dropped.
func replaceLocal(held []entity.Message, localID string, confirmed entity.Message) []entity.Message {
	out := lo.Filter(held, func(m entity.Message, _ int) bool {
		return m.ID != localID && m.ID != confirmed.ID
	})
	out = append(out, confirmed)
	entity.SortMessages(out)
	return out
}

func setStatus(held []entity.Message, id string, status entity.MessageStatus) ([]entity.Message, bool) {
	out := make([]entity.Message, len(held))
	found := false
	for i, m := range held {
		if m.ID == id {
			m.Status = status
			found = true
		}
		out[i] = m
	}
	return out, found
}
