package coach

// Clone returns a deep copy of the user record, used for read-only
// snapshots handed out while another caller may be mutating the
// original under the store's per-user lock.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	out.ModeStats = cloneCounterMap(u.ModeStats)
	out.DeliveryStats = cloneDeliveryMap(u.DeliveryStats)
	if u.Last != nil {
		last := *u.Last
		out.Last = &last
	}
	out.Relationships = make(map[string]*Relationship, len(u.Relationships))
	for name, rel := range u.Relationships {
		out.Relationships[name] = rel.clone()
	}
	return &out
}

func (r *Relationship) clone() *Relationship {
	if r == nil {
		return nil
	}
	out := *r
	out.History = append([]HistoryEntry(nil), r.History...)
	out.Notes = append([]Note(nil), r.Notes...)
	out.DeliveryStats = cloneDeliveryMap(r.DeliveryStats)
	if r.Thread != nil {
		t := *r.Thread
		if r.Thread.LastSentAt != nil {
			ts := *r.Thread.LastSentAt
			t.LastSentAt = &ts
		}
		out.Thread = &t
	}
	return &out
}

func cloneCounterMap(in map[Mode]*BanditCounters) map[Mode]*BanditCounters {
	if in == nil {
		return nil
	}
	out := make(map[Mode]*BanditCounters, len(in))
	for m, c := range in {
		if c == nil {
			out[m] = nil
			continue
		}
		copied := *c
		out[m] = &copied
	}
	return out
}

func cloneDeliveryMap(in map[Mode]*DeliveryCounters) map[Mode]*DeliveryCounters {
	if in == nil {
		return nil
	}
	out := make(map[Mode]*DeliveryCounters, len(in))
	for m, c := range in {
		if c == nil {
			out[m] = nil
			continue
		}
		copied := *c
		out[m] = &copied
	}
	return out
}
