package competency

import (
	"context"
	"errors"
	"testing"
)

func TestRecommendForUser(t *testing.T) {
	// 两项差距：Welding(当前1→HIGH)、Crane Ops(当前2→MEDIUM)。
	// 培训 300 覆盖两项技能，必须只出现一次并保留 HIGH。
	store := &fakeStore{
		users: map[uint]UserRecord{
			1: {Info: UserInfo{ID: 1, Name: "Asha"}, DesignationID: 10},
		},
		skills: map[uint][]SkillRef{
			10: {{ID: 100, Name: "Crane Ops"}, {ID: 102, Name: "Welding"}},
		},
		levels: map[uint]map[uint]LevelRecord{
			1: {
				100: {Current: 2, Required: intPtr(4)},
				102: {Current: 1, Required: intPtr(3)},
			},
		},
		trainings: map[uint][]TrainingRef{
			100: {{ID: 300, Topic: "Heavy Equipment Refresher"}},
			102: {
				{ID: 300, Topic: "Heavy Equipment Refresher"},
				{ID: 301, Topic: "Arc Welding Basics"},
			},
		},
	}
	rec := NewRecommender(store, NewAnalyzer(store))

	report, err := rec.ForUser(context.Background(), 1)
	if err != nil {
		t.Fatalf("ForUser: %v", err)
	}

	if report.TotalRecommendations != 2 {
		t.Fatalf("recommendations = %d, want 2 (training 300 deduplicated)", report.TotalRecommendations)
	}

	byID := map[uint]Recommendation{}
	for _, r := range report.Recommendations {
		byID[r.TrainingID] = r
	}

	merged, ok := byID[300]
	if !ok {
		t.Fatalf("training 300 missing from recommendations")
	}
	if merged.Priority != PriorityHigh {
		t.Errorf("merged priority = %q, want HIGH kept over MEDIUM", merged.Priority)
	}
	if len(merged.SkillsCovered) != 2 {
		t.Errorf("skills covered = %v, want both gap skills", merged.SkillsCovered)
	}

	if byID[301].Priority != PriorityHigh {
		t.Errorf("training 301 priority = %q, want HIGH (welding current 1)", byID[301].Priority)
	}
}

func TestRecommendOrdering(t *testing.T) {
	store := &fakeStore{
		users: map[uint]UserRecord{
			1: {Info: UserInfo{ID: 1, Name: "Asha"}, DesignationID: 10},
		},
		skills: map[uint][]SkillRef{
			10: {{ID: 100, Name: "Crane Ops"}, {ID: 102, Name: "Welding"}},
		},
		levels: map[uint]map[uint]LevelRecord{
			1: {
				100: {Current: 3, Required: intPtr(4)}, // LOW
				102: {Current: 0, Required: intPtr(2)}, // HIGH
			},
		},
		trainings: map[uint][]TrainingRef{
			100: {{ID: 310, Topic: "Advanced Rigging"}},
			102: {
				{ID: 311, Topic: "Zen of Welding"},
				{ID: 312, Topic: "Arc Welding Basics"},
			},
		},
	}
	rec := NewRecommender(store, NewAnalyzer(store))

	report, err := rec.ForUser(context.Background(), 1)
	if err != nil {
		t.Fatalf("ForUser: %v", err)
	}

	// 优先级降序，同级内按标题升序。
	wantTitles := []string{"Arc Welding Basics", "Zen of Welding", "Advanced Rigging"}
	if len(report.Recommendations) != len(wantTitles) {
		t.Fatalf("recommendations = %d, want %d", len(report.Recommendations), len(wantTitles))
	}
	for i, want := range wantTitles {
		if report.Recommendations[i].Title != want {
			t.Errorf("recommendation %d = %q, want %q", i, report.Recommendations[i].Title, want)
		}
	}
}

func TestRecommendNoGaps(t *testing.T) {
	store := &fakeStore{
		users: map[uint]UserRecord{
			1: {Info: UserInfo{ID: 1, Name: "Asha"}, DesignationID: 10},
		},
		skills: map[uint][]SkillRef{
			10: {{ID: 100, Name: "Crane Ops"}},
		},
		levels: map[uint]map[uint]LevelRecord{
			1: {100: {Current: 4, Required: intPtr(4)}},
		},
	}
	rec := NewRecommender(store, NewAnalyzer(store))

	report, err := rec.ForUser(context.Background(), 1)
	if err != nil {
		t.Fatalf("ForUser: %v", err)
	}
	if report.TotalRecommendations != 0 || len(report.Recommendations) != 0 {
		t.Fatalf("want empty recommendation list, got %+v", report)
	}
}

func TestRecommendNotFound(t *testing.T) {
	rec := NewRecommender(&fakeStore{}, NewAnalyzer(&fakeStore{}))

	_, err := rec.ForUser(context.Background(), 7)
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}
