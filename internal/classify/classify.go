// Package classify assigns activity tags to time entries from keyword rules.
package classify

import (
	"regexp"

	"github.com/zhaobenny/timeslice/internal/model"
)

// rule fires its tag when the pattern matches anywhere in the field
type rule struct {
	tag     model.Tag
	pattern *regexp.Regexp
}

func r(tag model.Tag, pattern string) rule {
	return rule{tag: tag, pattern: regexp.MustCompile(`(?i)` + pattern)}
}

// projectRules are matched against the entry's project
var projectRules = []rule{
	r(model.TagHustle, `(leht)`),
	r(model.TagBeyond, `(refactor|kitchen)`),
	r(model.TagCommunity, `(refactor)`),
	r(model.TagFun, `(exercise|scuba|motorcycle|avalanche)`),
	r(model.TagExercise, `(exercise)`),
	r(model.TagNew, `(scuba|motorcycle|avalanche)`),
	r(model.TagDogs, `(dog)`),
	r(model.TagPaid, `(innovation|teaching assistant|hopped|pika)`),
	r(model.TagSchool, `(\d{3}|^class$)`),
	r(model.TagScholarship, `(scholarship)`),
	r(model.TagCompost, `(capstone|compost)`),
}

// descriptionRules are matched against the cleaned description
var descriptionRules = []rule{
	r(model.TagApply, `(apply|application)`),
	r(model.TagMeeting, `(meet)`),
	r(model.TagNetworking, `(network|attend)`),
	r(model.TagResume, `(resume)`),
	r(model.TagResearch, `(research)`),
	r(model.TagCommunity, `(trio|sacnas)`),
	r(model.TagScholarship, `(ford|scholarship)`),
	r(model.TagBeyond, `(gift card|recommendation|thank you)`),
	r(model.TagWork, `(work|code|interview)`),
	r(model.TagEmail, `(email|letter)`),
	r(model.TagCompost, `(compost)`),
	r(model.TagDogs, `(dog)`),
	r(model.TagNew, `(skin)`),
	r(model.TagExercise, `(exercise)`),
	r(model.TagPNNL, `(pnnl|apartment)`),
}

// Classify returns every tag whose rule matches the project or description,
// in enumeration order. Entries that match nothing are tagged UNKNOWN.
func Classify(project, description string) []model.Tag {
	var tags []model.Tag
	for _, rl := range projectRules {
		if rl.pattern.MatchString(project) {
			tags = append(tags, rl.tag)
		}
	}
	for _, rl := range descriptionRules {
		if rl.pattern.MatchString(description) {
			tags = append(tags, rl.tag)
		}
	}

	if len(tags) == 0 {
		return []model.Tag{model.TagUnknown}
	}
	return model.SortTags(tags)
}

// descriptionFixes maps project -> recorded description -> corrected description
var descriptionFixes = map[string]map[string]string{
	"Get Hired at Dream Job": {
		"Prepare for SACNAS": "Prepare for SACNAS - Network",
		"Search for housing": "Search for apartment",
	},
	"CS 461 Capstone": {
		"Homwork": "Homework",
	},
}

// CleanDescription applies known corrections for exact (project, description) pairs
func CleanDescription(project, description string) string {
	if fixed, ok := descriptionFixes[project][description]; ok {
		return fixed
	}
	return description
}
