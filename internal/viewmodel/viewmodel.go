// Package viewmodel turns exported histograms into chart series: for every
// bucket key only the series holding the largest value is shown.
package viewmodel

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"

	"github.com/zhaobenny/timeslice/internal/bucket"
	"github.com/zhaobenny/timeslice/internal/export"
	"github.com/zhaobenny/timeslice/internal/model"
)

var (
	// ErrMissingOption is returned when a slice type needs an outer key the caller didn't give
	ErrMissingOption = errors.New("missing histogram option")
	// ErrUnknownSlice is returned for slice names outside the catalogue
	ErrUnknownSlice = errors.New("unknown histogram slice")
)

// CountType selects which half of a complexCount value is plotted
type CountType string

const (
	CountHours CountType = "hourCount"
	CountDays  CountType = "count"
)

// Options picks the outer keys of a nested slice and the plotted statistic
type Options struct {
	Year      string
	Month     string
	Weekday   string
	CountType CountType
}

// Source is one named series' histogram set, e.g. one tag or one project
type Source struct {
	Name       string
	Histograms export.Histograms
}

// Point is one bar of a series
type Point struct {
	Key   string `json:"x"`
	Value int64  `json:"y"`
}

// Series is one named set of bars
type Series struct {
	Name   string  `json:"name"`
	Points []Point `json:"data"`
}

// Chart is the view model of one histogram
type Chart struct {
	SliceType string   `json:"sliceType"`
	Keys      []string `json:"keys"`
	Series    []Series `json:"series"`
}

// Filled is a series with every key present
type Filled struct {
	Name   string
	Values map[string]int64
}

// path resolves the outer keys for st from opts. It fails before any data is read.
func path(st bucket.SliceType, opts Options) ([]string, error) {
	var keys []string
	for _, c := range st.Nesting()[:st.Depth()-1] {
		var v string
		switch c {
		case bucket.Year:
			v = opts.Year
		case bucket.Month:
			v = padMonth(opts.Month)
		case bucket.Weekday:
			v = opts.Weekday
		}
		if v == "" {
			return nil, fmt.Errorf("%w: %s needs a %s", ErrMissingOption, st.Name, c)
		}
		keys = append(keys, v)
	}
	return keys, nil
}

func padMonth(m string) string {
	if n, err := strconv.Atoi(m); err == nil && len(m) == 1 {
		return fmt.Sprintf("%02d", n)
	}
	return m
}

// Fill extracts the histogram named sliceType from every source, narrowed by
// opts, and zero-fills it over the key axis. Sources without the slice are
// filled with zeros.
func Fill(sliceType string, sources []Source, opts Options) ([]Filled, []string, error) {
	st, err := bucket.LookupSlice(sliceType)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownSlice, sliceType)
	}
	outer, err := path(st, opts)
	if err != nil {
		return nil, nil, err
	}
	countType := opts.CountType
	if countType == "" {
		countType = CountHours
	}

	levels := make([]*bucket.Histogram, len(sources))
	for i, src := range sources {
		h := src.Histograms[st.Name]
		for _, key := range outer {
			h = h.Child(key)
		}
		levels[i] = h
	}

	keys := st.Inner().Keys()
	if keys == nil {
		keys = dataKeys(levels)
	}

	filled := make([]Filled, len(sources))
	for i, src := range sources {
		values := make(map[string]int64, len(keys))
		for _, key := range keys {
			var v int64
			if levels[i] != nil {
				if leaf, ok := levels[i].Leaves[key]; ok {
					v = leaf.Scalar(countType == CountHours)
				}
			}
			values[key] = v
		}
		filled[i] = Filled{Name: src.Name, Values: values}
	}
	return filled, keys, nil
}

// dataKeys returns the sorted union of leaf keys, for axes like year whose
// domain comes from the data
func dataKeys(levels []*bucket.Histogram) []string {
	seen := make(map[string]bool)
	for _, h := range levels {
		if h == nil {
			continue
		}
		for key := range h.Leaves {
			seen[key] = true
		}
	}
	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Winners keeps, for every key, only the series with the largest value there.
// Tied series all keep the key. Series that never win a non-zero value are
// dropped; the rest are zero-filled over keys.
func Winners(filled []Filled, keys []string) []Series {
	won := make(map[string]map[string]int64)
	var order []string

	for _, key := range keys {
		var best []int
		for i, f := range filled {
			switch {
			case len(best) == 0 || f.Values[key] > filled[best[0]].Values[key]:
				best = []int{i}
			case f.Values[key] == filled[best[0]].Values[key]:
				best = append(best, i)
			}
		}
		for _, i := range best {
			name := filled[i].Name
			if won[name] == nil {
				won[name] = make(map[string]int64)
				order = append(order, name)
			}
			won[name][key] = filled[i].Values[key]
		}
	}

	var series []Series
	for _, name := range order {
		values := won[name]
		allZero := true
		for _, v := range values {
			if v != 0 {
				allZero = false
				break
			}
		}
		if allZero {
			continue
		}

		points := make([]Point, len(keys))
		for i, key := range keys {
			points[i] = Point{Key: key, Value: values[key]}
		}
		series = append(series, Series{Name: name, Points: points})
	}

	// keep source order rather than first-win order
	rank := make(map[string]int, len(filled))
	for i, f := range filled {
		rank[f.Name] = i
	}
	slices.SortStableFunc(series, func(a, b Series) int {
		return rank[a.Name] - rank[b.Name]
	})
	return series
}

// Build produces the chart for one slice type across sources
func Build(sliceType string, sources []Source, opts Options) (*Chart, error) {
	filled, keys, err := Fill(sliceType, sources, opts)
	if err != nil {
		return nil, err
	}
	return &Chart{
		SliceType: sliceType,
		Keys:      keys,
		Series:    Winners(filled, keys),
	}, nil
}

// TypeSources returns one source per tag, in tag order
func TypeSources(doc *export.Document) []Source {
	var out []Source
	for _, tag := range model.Tags {
		if h, ok := doc.ByType.All[tag]; ok {
			out = append(out, Source{Name: string(tag), Histograms: h})
		}
	}
	return out
}

// ProjectSources returns one source per project, sorted by name
func ProjectSources(doc *export.Document) []Source {
	names := make([]string, 0, len(doc.ByProject.All))
	for name := range doc.ByProject.All {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Source, 0, len(names))
	for _, name := range names {
		out = append(out, Source{Name: name, Histograms: doc.ByProject.All[name].Histograms})
	}
	return out
}

// GroupSources returns one source per project and description pair, named
// "project|description" and sorted
func GroupSources(doc *export.Document) []Source {
	var out []Source
	for project, descriptions := range doc.ByGroup.All {
		for description, entry := range descriptions {
			key := model.SliceKey{Project: project, Description: description}
			out = append(out, Source{Name: key.String(), Histograms: entry.Histograms})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
