// Package export assembles aggregate tables into the data.json document
// consumed by the dashboard.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/zhaobenny/timeslice/internal/bucket"
	"github.com/zhaobenny/timeslice/internal/model"
)

// ErrMissingSection is returned when a decoded document lacks a top-level section
var ErrMissingSection = errors.New("missing data section")

// Top-level section names
const (
	SectionByTime    = "byTime"
	SectionByType    = "byType"
	SectionByGroup   = "byGroup"
	SectionByProject = "byProject"
)

var sections = []string{SectionByTime, SectionByType, SectionByGroup, SectionByProject}

// Document is the exported aggregate set
type Document struct {
	ByTime    TimeSection    `json:"byTime"`
	ByType    TypeSection    `json:"byType"`
	ByGroup   GroupSection   `json:"byGroup"`
	ByProject ProjectSection `json:"byProject"`

	missing []string
}

// TimeValue is one calendar bucket with its readable label
type TimeValue struct {
	TotalTime    int64  `json:"totalTime"`
	TimeString   string `json:"timeString"`
	OriginalTime string `json:"originalTime"`
}

// TimeSection holds calendar-only buckets keyed by time type
type TimeSection struct {
	Top map[string][]TimeValue `json:"top"`
	All map[string][]TimeValue `json:"all"`
}

// Histograms maps slice type names to histograms
type Histograms map[string]*bucket.Histogram

// UnmarshalJSON decodes each histogram using its slice type. Unknown slice
// names are skipped.
func (h *Histograms) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*h = decodeHistograms(raw)
	return nil
}

func decodeHistograms(raw map[string]json.RawMessage) Histograms {
	out := make(Histograms)
	for name, msg := range raw {
		st, err := bucket.LookupSlice(name)
		if err != nil {
			continue
		}
		if hist, err := bucket.DecodeHistogram(msg, st); err == nil {
			out[name] = hist
		}
	}
	return out
}

// TypeSection holds histograms and totals per tag
type TypeSection struct {
	All    map[model.Tag]Histograms `json:"all"`
	Totals map[string]int64         `json:"totals"`
}

// GroupEntry is the histogram set of one project and description pair
type GroupEntry struct {
	Project     string
	Description string
	Type        []model.Tag
	Histograms  Histograms
}

// MarshalJSON flattens the histograms next to the descriptive fields
func (g GroupEntry) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(g.Histograms)+3)
	for name, h := range g.Histograms {
		out[name] = h
	}
	out["project"] = g.Project
	out["description"] = g.Description
	out["type"] = tagList(g.Type)
	return json.Marshal(out)
}

// UnmarshalJSON reads the flattened form written by MarshalJSON
func (g *GroupEntry) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := unmarshalField(raw, "project", &g.Project); err != nil {
		return err
	}
	if err := unmarshalField(raw, "description", &g.Description); err != nil {
		return err
	}
	if err := unmarshalField(raw, "type", &g.Type); err != nil {
		return err
	}
	g.Histograms = decodeHistograms(raw)
	return nil
}

// GroupSection holds project -> description -> histogram set
type GroupSection struct {
	All    map[string]map[string]*GroupEntry `json:"all"`
	Totals map[string]int64                  `json:"totals"`
}

// ProjectEntry is the histogram set of one project
type ProjectEntry struct {
	Project    string
	Type       []model.Tag
	Histograms Histograms
}

// MarshalJSON flattens the histograms next to the descriptive fields
func (p ProjectEntry) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Histograms)+2)
	for name, h := range p.Histograms {
		out[name] = h
	}
	out["project"] = p.Project
	out["type"] = tagList(p.Type)
	return json.Marshal(out)
}

// UnmarshalJSON reads the flattened form written by MarshalJSON
func (p *ProjectEntry) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := unmarshalField(raw, "project", &p.Project); err != nil {
		return err
	}
	if err := unmarshalField(raw, "type", &p.Type); err != nil {
		return err
	}
	p.Histograms = decodeHistograms(raw)
	return nil
}

// ProjectSection holds project -> histogram set
type ProjectSection struct {
	All    map[string]*ProjectEntry `json:"all"`
	Totals map[string]int64         `json:"totals"`
}

func unmarshalField(raw map[string]json.RawMessage, key string, dst any) error {
	msg, ok := raw[key]
	if !ok {
		return nil
	}
	delete(raw, key)
	if err := json.Unmarshal(msg, dst); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

func tagList(tags []model.Tag) []model.Tag {
	if tags == nil {
		return []model.Tag{}
	}
	return tags
}

// New returns an empty document with every time type and tag pre-initialised
func New() *Document {
	doc := &Document{
		ByTime: TimeSection{
			Top: make(map[string][]TimeValue, len(bucket.TimeTypes)),
			All: make(map[string][]TimeValue, len(bucket.TimeTypes)),
		},
		ByType: TypeSection{
			All:    make(map[model.Tag]Histograms, len(model.Tags)),
			Totals: make(map[string]int64),
		},
		ByGroup: GroupSection{
			All:    make(map[string]map[string]*GroupEntry),
			Totals: make(map[string]int64),
		},
		ByProject: ProjectSection{
			All:    make(map[string]*ProjectEntry),
			Totals: make(map[string]int64),
		},
	}
	for _, tt := range bucket.TimeTypes {
		doc.ByTime.Top[tt.Name] = []TimeValue{}
		doc.ByTime.All[tt.Name] = []TimeValue{}
	}
	for _, tag := range model.Tags {
		doc.ByType.All[tag] = Histograms{}
	}
	return doc
}

// Decode parses a data.json document. Absent top-level sections are not an
// error here; they are reported by Missing and Validate.
func Decode(data []byte) (*Document, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}

	doc := &Document{}
	targets := map[string]any{
		SectionByTime:    &doc.ByTime,
		SectionByType:    &doc.ByType,
		SectionByGroup:   &doc.ByGroup,
		SectionByProject: &doc.ByProject,
	}
	for _, name := range sections {
		msg, ok := raw[name]
		if !ok || string(msg) == "null" {
			doc.missing = append(doc.missing, name)
			continue
		}
		if err := json.Unmarshal(msg, targets[name]); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
	}
	return doc, nil
}

// documentJSON is the wire form of Document. Sections absent from a decoded
// document stay absent when it is encoded again.
type documentJSON struct {
	ByTime    *TimeSection    `json:"byTime,omitempty"`
	ByType    *TypeSection    `json:"byType,omitempty"`
	ByGroup   *GroupSection   `json:"byGroup,omitempty"`
	ByProject *ProjectSection `json:"byProject,omitempty"`
}

// MarshalJSON encodes the present sections only
func (d *Document) MarshalJSON() ([]byte, error) {
	out := documentJSON{
		ByTime:    &d.ByTime,
		ByType:    &d.ByType,
		ByGroup:   &d.ByGroup,
		ByProject: &d.ByProject,
	}
	for _, name := range d.missing {
		switch name {
		case SectionByTime:
			out.ByTime = nil
		case SectionByType:
			out.ByType = nil
		case SectionByGroup:
			out.ByGroup = nil
		case SectionByProject:
			out.ByProject = nil
		}
	}
	return json.Marshal(out)
}

// Missing lists the top-level sections absent from a decoded document
func (d *Document) Missing() []string {
	return d.missing
}

// Validate returns ErrMissingSection naming any absent sections
func (d *Document) Validate() error {
	if len(d.missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrMissingSection, strings.Join(d.missing, ", "))
}

// TimeTypes returns the time types present in the byTime section, sorted
func (s TimeSection) TimeTypes() []string {
	names := make([]string, 0, len(s.All))
	for name := range s.All {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
