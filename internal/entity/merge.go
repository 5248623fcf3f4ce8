package entity

// Merge groups candidates by exact Value and resolves each group to a single
// entity. Groups keep the order in which their value was first seen.
//
// A singleton passes through. For larger groups the highest-priority type
// present wins; if no type in the group is in Priority, the most frequent
// type wins, ties going to the type seen first.
func Merge(candidates []Entity) []Entity {
	if len(candidates) == 0 {
		return nil
	}

	order := make([]string, 0, len(candidates))
	groups := make(map[string][]Type, len(candidates))
	for _, c := range candidates {
		if c.Value == "" {
			continue
		}
		if _, seen := groups[c.Value]; !seen {
			order = append(order, c.Value)
		}
		groups[c.Value] = append(groups[c.Value], c.Type)
	}

	out := make([]Entity, 0, len(order))
	for _, v := range order {
		out = append(out, Entity{Type: resolve(groups[v]), Value: v})
	}
	return out
}

// resolve picks one type from a group of competing detections.
func resolve(types []Type) Type {
	if len(types) == 1 {
		return types[0]
	}

	best, bestRank := Type(""), len(Priority)
	for _, t := range types {
		if r, ok := priorityRank[t]; ok && r < bestRank {
			best, bestRank = t, r
		}
	}
	if best != "" {
		return best
	}

	// Majority vote; the strict > keeps the first-seen type on ties.
	counts := make(map[Type]int, len(types))
	var winner Type
	for _, t := range types {
		counts[t]++
	}
	for _, t := range types {
		if winner == "" || counts[t] > counts[winner] {
			winner = t
		}
	}
	return winner
}
