package classify

import (
	"slices"
	"testing"

	"github.com/zhaobenny/timeslice/internal/model"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		project     string
		description string
		want        []model.Tag
	}{
		{
			name:        "course project with homework",
			project:     "CS 461 Capstone",
			description: "Homework",
			want:        []model.Tag{model.TagCompost, model.TagSchool, model.TagWork},
		},
		{
			name:        "no rule matches",
			project:     "Errands",
			description: "Groceries",
			want:        []model.Tag{model.TagUnknown},
		},
		{
			name:        "case insensitive",
			project:     "SCUBA Certification",
			description: "",
			want:        []model.Tag{model.TagFun, model.TagNew},
		},
		{
			name:        "project and description both fire",
			project:     "Refactor",
			description: "Attend TRIO meeting",
			want:        []model.Tag{model.TagBeyond, model.TagCommunity, model.TagMeeting, model.TagNetworking},
		},
		{
			name:        "class project only when exact",
			project:     "class",
			description: "",
			want:        []model.Tag{model.TagSchool},
		},
		{
			name:        "class as a substring does not match",
			project:     "classic cars",
			description: "",
			want:        []model.Tag{model.TagUnknown},
		},
		{
			name:        "apartment search",
			project:     "Get Hired at Dream Job",
			description: "Search for apartment",
			want:        []model.Tag{model.TagPNNL},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.project, tt.description)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Classify(%q, %q) = %v, want %v", tt.project, tt.description, got, tt.want)
			}
		})
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	first := Classify("Dog walking 101", "exercise the dog")
	for i := 0; i < 10; i++ {
		if got := Classify("Dog walking 101", "exercise the dog"); !slices.Equal(got, first) {
			t.Fatalf("Classify returned %v, previously %v", got, first)
		}
	}
	if len(first) == 0 {
		t.Fatal("Classify returned no tags")
	}
}

func TestCleanDescription(t *testing.T) {
	tests := []struct {
		project, description, want string
	}{
		{"CS 461 Capstone", "Homwork", "Homework"},
		{"CS 461 Capstone", "Homework", "Homework"},
		{"Get Hired at Dream Job", "Prepare for SACNAS", "Prepare for SACNAS - Network"},
		{"Get Hired at Dream Job", "Search for housing", "Search for apartment"},
		{"Other", "Homwork", "Homwork"},
	}

	for _, tt := range tests {
		if got := CleanDescription(tt.project, tt.description); got != tt.want {
			t.Errorf("CleanDescription(%q, %q) = %q, want %q", tt.project, tt.description, got, tt.want)
		}
	}
}
