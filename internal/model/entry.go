package model

import (
	"slices"
	"time"
)

// Tag is an activity category assigned to a time entry
type Tag string

const (
	TagApply       Tag = "Apply"
	TagBeyond      Tag = "Beyond"
	TagCommunity   Tag = "Community"
	TagCompost     Tag = "Compost"
	TagDogs        Tag = "Dogs"
	TagEmail       Tag = "Email"
	TagExercise    Tag = "Exercise"
	TagFun         Tag = "Fun"
	TagHustle      Tag = "Hustle"
	TagMeeting     Tag = "Meeting"
	TagNetworking  Tag = "Networking"
	TagNew         Tag = "New"
	TagPNNL        Tag = "PNNL"
	TagPaid        Tag = "Paid"
	TagResearch    Tag = "Research"
	TagResume      Tag = "Resume"
	TagScholarship Tag = "Scholarship"
	TagSchool      Tag = "School"
	TagUnknown     Tag = "UNKNOWN"
	TagWork        Tag = "Work"
)

// Tags is the closed tag enumeration in output order
var Tags = []Tag{
	TagApply, TagBeyond, TagCommunity, TagCompost, TagDogs,
	TagEmail, TagExercise, TagFun, TagHustle, TagMeeting,
	TagNetworking, TagNew, TagPNNL, TagPaid, TagResearch,
	TagResume, TagScholarship, TagSchool, TagUnknown, TagWork,
}

// Index returns the tag's position in Tags, or -1 if it is not a known tag
func (t Tag) Index() int {
	return slices.Index(Tags, t)
}

// SortTags orders tags by enumeration order and drops duplicates
func SortTags(tags []Tag) []Tag {
	out := slices.Clone(tags)
	slices.SortFunc(out, func(a, b Tag) int {
		return a.Index() - b.Index()
	})
	return slices.Compact(out)
}

// TimeEntry represents one row of a time-tracking export
type TimeEntry struct {
	Project     string
	Description string
	Tags        []Tag
	Billable    bool
	Start       time.Time
	End         time.Time
}

// DurationSeconds returns the elapsed time between start and end
func (e TimeEntry) DurationSeconds() int64 {
	return int64(e.End.Sub(e.Start) / time.Second)
}

// ExpandedHourRow is a per-hour copy of a time entry, one for each local hour it touches
type ExpandedHourRow struct {
	EntryID         int64
	Hour            time.Time // local time, truncated to the hour
	Project         string
	Description     string
	Tags            []Tag
	DurationSeconds int64
}

// Dimension is the axis an aggregate is sliced along
type Dimension string

const (
	DimensionType    Dimension = "type"
	DimensionGroup   Dimension = "group"
	DimensionProject Dimension = "project"
)

// Dimensions lists every slicing dimension
var Dimensions = []Dimension{DimensionType, DimensionGroup, DimensionProject}

// SliceKey identifies one slice of a dimension: a tag, a project, or a
// project and description pair
type SliceKey struct {
	Tag         Tag
	Project     string
	Description string
}

func (k SliceKey) String() string {
	switch {
	case k.Tag != "":
		return string(k.Tag)
	case k.Description != "":
		return k.Project + "|" + k.Description
	}
	return k.Project
}
