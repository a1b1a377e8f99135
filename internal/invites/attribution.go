package invites

// Attribute compares the invite list captured before a join against the
// list captured after it and returns the invites whose use count grew.
// Candidates carry their pre-join use count: a candidate with Uses zero
// means the joiner is the invite's first use, which callers treat as
// the invite creator arriving on their own link.
//
// Invites present before the join but missing from the current list are
// returned as vanished so callers can log them; Discord deletes
// exhausted and expired invites and the joiner cannot have used one
// that no longer exists alongside another invite that visibly grew.
// Invites that only appear in the current list have zero uses by
// definition and are never candidates.
func Attribute(old, current []Snapshot) (candidates []Snapshot, vanished []string) {
	byCode := make(map[string]int, len(current))
	for _, entry := range current {
		byCode[entry.Code] = entry.Uses
	}

	for _, entry := range old {
		uses, ok := byCode[entry.Code]
		if !ok {
			vanished = append(vanished, entry.Code)
			continue
		}
		if uses > entry.Uses {
			candidates = append(candidates, entry)
		}
	}
	return candidates, vanished
}

// FindCode returns the snapshot entry for a code, if present.
func FindCode(snapshot []Snapshot, code string) (Snapshot, bool) {
	for _, entry := range snapshot {
		if entry.Code == code {
			return entry, true
		}
	}
	return Snapshot{}, false
}
