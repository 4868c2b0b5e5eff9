package bucket

// Row is one flat grouped result: a key path, outermost first, and its value
type Row struct {
	Keys  []string
	Value Value
}

// Fold nests flat rows into a histogram of the given depth, one level per key.
// Rows whose key path is shorter than depth are ignored.
func Fold(rows []Row, depth int) *Histogram {
	return fold(rows, 0, depth)
}

func fold(rows []Row, level, depth int) *Histogram {
	h := &Histogram{}
	if level == depth-1 {
		h.Leaves = make(map[string]Value, len(rows))
		for _, r := range rows {
			if len(r.Keys) < depth {
				continue
			}
			h.Leaves[r.Keys[level]] = merge(h.Leaves[r.Keys[level]], r.Value)
		}
		return h
	}

	var order []string
	groups := make(map[string][]Row)
	for _, r := range rows {
		if len(r.Keys) < depth {
			continue
		}
		key := r.Keys[level]
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], r)
	}

	h.Children = make(map[string]*Histogram, len(order))
	for _, key := range order {
		h.Children[key] = fold(groups[key], level+1, depth)
	}
	return h
}

// merge combines two values for the same key path. Repeated ComplexCount
// paths keep the larger day count.
func merge(a, b Value) Value {
	if a == (Value{}) {
		return b
	}
	switch b.Kind {
	case ComplexCount:
		a.Count = max(a.Count, b.Count)
		a.Hours += b.Hours
	default:
		a.Count += b.Count
	}
	return a
}
