package notification

import "sort"

// MergeInbox combines a freshly fetched inbox with the locally held one.
// Entries are deduplicated by ID, the fetched copy wins on conflict but a read
// flag is never lost, local-only (optimistic) entries are kept, and the result
// is sorted newest first with the ID as a tiebreaker. Merging the same fetched
// set again yields the same result.
func MergeInbox(fetched, local []*Notification) []*Notification {
	byID := make(map[string]*Notification, len(fetched)+len(local))
	for _, n := range local {
		if n == nil {
			continue
		}
		byID[n.ID] = n.Clone()
	}
	for _, n := range fetched {
		if n == nil {
			continue
		}
		merged := n.Clone()
		if prev, ok := byID[n.ID]; ok && prev.Read {
			merged.Read = true
		}
		byID[n.ID] = merged
	}

	out := make([]*Notification, 0, len(byID))
	for _, n := range byID {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
