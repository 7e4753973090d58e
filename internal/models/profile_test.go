package models

import (
	"testing"
)

func TestNewUserProfile(t *testing.T) {
	t.Parallel()

	p := NewUserProfile("user-1")

	if p.UserID != "user-1" {
		t.Errorf("Expected user ID user-1, got %s", p.UserID)
	}
	if p.KnowledgeGraph == nil {
		t.Error("Expected knowledge graph to be initialized")
	}
	if p.Interests == nil || p.WeakPoints == nil {
		t.Error("Expected interests and weak points to be non-nil slices")
	}
	if p.Preferences.IsEmpty() {
		t.Error("Expected default preferences to be populated")
	}
}

func TestUserProfile_TopWeakPoints(t *testing.T) {
	t.Parallel()

	profile := &UserProfile{
		WeakPoints: []WeakPoint{
			{Concept: "pointers", ConfusionScore: 90},
			{Concept: "recursion", ConfusionScore: 70},
			{Concept: "closures", ConfusionScore: 40},
		},
	}

	tests := []struct {
		name string
		n    int
		want []string
	}{
		{name: "fewer than available", n: 2, want: []string{"pointers", "recursion"}},
		{name: "more than available", n: 10, want: []string{"pointers", "recursion", "closures"}},
		{name: "zero", n: 0, want: []string{}},
		{name: "negative", n: -1, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := profile.TopWeakPoints(tt.n)
			if len(got) != len(tt.want) {
				t.Fatalf("TopWeakPoints(%d) returned %d entries, want %d", tt.n, len(got), len(tt.want))
			}
			for i, concept := range tt.want {
				if got[i].Concept != concept {
					t.Errorf("TopWeakPoints(%d)[%d] = %s, want %s", tt.n, i, got[i].Concept, concept)
				}
			}
		})
	}

	t.Run("returned slice is a copy", func(t *testing.T) {
		t.Parallel()

		got := profile.TopWeakPoints(1)
		got[0].Concept = "mutated"
		if profile.WeakPoints[0].Concept != "pointers" {
			t.Error("TopWeakPoints aliased the profile's slice")
		}
	})
}

func TestUserProfile_TopWeakPoints_Empty(t *testing.T) {
	t.Parallel()

	profile := NewUserProfile("user-1")
	got := profile.TopWeakPoints(3)
	if len(got) != 0 {
		t.Errorf("Expected no weak points on a fresh profile, got %d", len(got))
	}
}
