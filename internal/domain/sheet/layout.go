package sheet

// Placement puts Followers, in order, immediately after Anchor.
type Placement struct {
	Anchor    string
	Followers []string
}

// Layout is a set of placement rules. A column is placed when one of its rules
// names an anchor that is present; every other column keeps its relative
// order and is followed, depth-first, by the columns placed after it.
//
// Order depends only on the set of columns and on the relative order of the
// unplaced ones, so applying a layout to its own output changes nothing.
type Layout struct {
	Placements []Placement
	// Suffixes place "<col><suffix>" after "<col>" for any col present.
	Suffixes []string
}

// Order returns the normalized column order. Rules naming absent columns are
// ignored. When two rules place the same column the first one wins.
func (l Layout) Order(columns []string) []string {
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}

	parent := make(map[string]string)
	children := make(map[string][]string)
	place := func(anchor, follower string) {
		if anchor == follower || !present[anchor] || !present[follower] {
			return
		}
		if _, taken := parent[follower]; taken {
			return
		}
		parent[follower] = anchor
		children[anchor] = append(children[anchor], follower)
	}

	for _, p := range l.Placements {
		for _, f := range p.Followers {
			place(p.Anchor, f)
		}
	}
	for _, c := range columns {
		for _, s := range l.Suffixes {
			place(c, c+s)
		}
	}

	out := make([]string, 0, len(columns))
	emitted := make(map[string]bool, len(columns))
	var emit func(c string)
	emit = func(c string) {
		if emitted[c] {
			return
		}
		emitted[c] = true
		out = append(out, c)
		for _, ch := range children[c] {
			emit(ch)
		}
	}

	for _, c := range columns {
		if _, placed := parent[c]; !placed {
			emit(c)
		}
	}
	// Columns only reachable through a cycle of rules go last, in input order.
	for _, c := range columns {
		if !emitted[c] {
			emitted[c] = true
			out = append(out, c)
		}
	}
	return out
}

// ApplyLayout reorders the table's columns in place.
func (t *Table) ApplyLayout(l Layout) {
	t.SetColumnOrder(l.Order(t.columns))
}
