package competency

import (
	"context"
	"errors"
	"testing"
)

type fakeStore struct {
	users     map[uint]UserRecord
	deptUsers map[uint][]UserRecord
	allUsers  []UserRecord
	skills    map[uint][]SkillRef
	levels    map[uint]map[uint]LevelRecord
	trainings map[uint][]TrainingRef
	failWith  error
}

func (f *fakeStore) GetUser(_ context.Context, userID uint) (*UserRecord, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	u, ok := f.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (f *fakeStore) ActiveUsersByDepartment(_ context.Context, departmentID uint) ([]UserRecord, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	return f.deptUsers[departmentID], nil
}

func (f *fakeStore) ActiveUsers(_ context.Context, filter UserFilter) ([]UserRecord, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	if filter.DepartmentID != 0 {
		return f.deptUsers[filter.DepartmentID], nil
	}
	return f.allUsers, nil
}

func (f *fakeStore) CandidateSkills(_ context.Context, designationID uint) ([]SkillRef, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	return f.skills[designationID], nil
}

func (f *fakeStore) LevelsForUser(_ context.Context, userID uint) (map[uint]LevelRecord, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	levels, ok := f.levels[userID]
	if !ok {
		return map[uint]LevelRecord{}, nil
	}
	return levels, nil
}

func (f *fakeStore) TrainingsForSkill(_ context.Context, skillID uint) ([]TrainingRef, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	return f.trainings[skillID], nil
}

func intPtr(n int) *int { return &n }

func newGapFixture() *fakeStore {
	return &fakeStore{
		users: map[uint]UserRecord{
			1: {Info: UserInfo{ID: 1, Name: "Asha", EmployeeID: "E001"}, DesignationID: 10},
		},
		skills: map[uint][]SkillRef{
			10: {
				{ID: 100, Name: "Crane Ops"},
				{ID: 101, Name: "Forklift"},
				{ID: 102, Name: "Welding"},
			},
		},
		levels: map[uint]map[uint]LevelRecord{
			1: {
				100: {Current: 3, Required: intPtr(3)}, // 已达标
				101: {Current: 2},                      // 未设目标，必须排除
				102: {Current: 1, Required: intPtr(3)}, // gap=2
			},
		},
	}
}

func TestUserGap(t *testing.T) {
	analyzer := NewAnalyzer(newGapFixture())

	report, err := analyzer.UserGap(context.Background(), 1)
	if err != nil {
		t.Fatalf("UserGap: %v", err)
	}

	if report.Summary.TotalSkills != 3 {
		t.Errorf("total skills = %d, want 3", report.Summary.TotalSkills)
	}
	if report.Summary.GapSkills != 1 {
		t.Fatalf("gap skills = %d, want 1", report.Summary.GapSkills)
	}

	entry := report.SkillGaps[0]
	if entry.SkillName != "Welding" {
		t.Errorf("gap skill = %q, want Welding", entry.SkillName)
	}
	if entry.Gap != 2 {
		t.Errorf("gap = %d, want 2", entry.Gap)
	}
	if entry.Priority != PriorityHigh {
		t.Errorf("priority = %q, want HIGH (current level 1)", entry.Priority)
	}
	if report.Summary.HighPriority != 1 || report.Summary.MediumPriority != 0 {
		t.Errorf("summary counts = %+v", report.Summary)
	}
}

func TestUserGapInvariants(t *testing.T) {
	store := newGapFixture()
	store.levels[1][100] = LevelRecord{Current: 4, Required: intPtr(2)} // current > required
	analyzer := NewAnalyzer(store)

	report, err := analyzer.UserGap(context.Background(), 1)
	if err != nil {
		t.Fatalf("UserGap: %v", err)
	}

	for _, entry := range report.SkillGaps {
		if entry.Gap != entry.RequiredLevel-entry.CurrentLevel {
			t.Errorf("%s: gap %d != required-current %d", entry.SkillName, entry.Gap, entry.RequiredLevel-entry.CurrentLevel)
		}
		if entry.Gap <= 0 {
			t.Errorf("%s: non-positive gap %d emitted", entry.SkillName, entry.Gap)
		}
		if entry.SkillID == 100 {
			t.Errorf("skill with current >= required must not appear")
		}
	}
}

func TestUserGapNotFound(t *testing.T) {
	analyzer := NewAnalyzer(newGapFixture())

	_, err := analyzer.UserGap(context.Background(), 99)
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}

func TestUserGapPropagatesStoreErrors(t *testing.T) {
	infraErr := errors.New("connection refused")
	analyzer := NewAnalyzer(&fakeStore{failWith: infraErr})

	_, err := analyzer.UserGap(context.Background(), 1)
	if !errors.Is(err, infraErr) {
		t.Fatalf("err = %v, want wrapped infra error", err)
	}
	if errors.Is(err, ErrUserNotFound) {
		t.Fatalf("infra error must not look like not-found")
	}
}

func TestPriorityForLevel(t *testing.T) {
	cases := []struct {
		current int
		want    Priority
	}{
		{0, PriorityHigh},
		{1, PriorityHigh},
		{2, PriorityMedium},
		{3, PriorityLow},
		{4, PriorityLow},
	}
	for _, tc := range cases {
		if got := PriorityForLevel(tc.current); got != tc.want {
			t.Errorf("PriorityForLevel(%d) = %q, want %q", tc.current, got, tc.want)
		}
	}
}

func TestDepartmentGap(t *testing.T) {
	// 三名员工同岗位：两人在 Safety 上 gap=2，一人已达标。
	store := &fakeStore{
		deptUsers: map[uint][]UserRecord{
			5: {
				{Info: UserInfo{ID: 1, Name: "Asha"}, DesignationID: 10},
				{Info: UserInfo{ID: 2, Name: "Bo"}, DesignationID: 10},
				{Info: UserInfo{ID: 3, Name: "Chen"}, DesignationID: 10},
			},
		},
		skills: map[uint][]SkillRef{
			10: {{ID: 200, Name: "Safety"}},
		},
		levels: map[uint]map[uint]LevelRecord{
			1: {200: {Current: 1, Required: intPtr(3)}},
			2: {200: {Current: 1, Required: intPtr(3)}},
			3: {200: {Current: 3, Required: intPtr(3)}},
		},
	}
	analyzer := NewAnalyzer(store)

	report, err := analyzer.DepartmentGap(context.Background(), 5)
	if err != nil {
		t.Fatalf("DepartmentGap: %v", err)
	}

	if report.Summary.TotalEmployees != 3 {
		t.Errorf("total employees = %d, want 3", report.Summary.TotalEmployees)
	}
	if len(report.SkillGaps) != 1 {
		t.Fatalf("skill gaps = %d, want 1", len(report.SkillGaps))
	}

	entry := report.SkillGaps[0]
	if entry.EmployeesAffected != 2 {
		t.Errorf("employees affected = %d, want 2", entry.EmployeesAffected)
	}
	if entry.TotalGap != 4 {
		t.Errorf("total gap = %d, want 4", entry.TotalGap)
	}
	if entry.AverageGap != 2.0 {
		t.Errorf("average gap = %v, want 2.0", entry.AverageGap)
	}
	if entry.Priority != PriorityHigh {
		t.Errorf("priority = %q, want HIGH (avg current 1.0)", entry.Priority)
	}
}

func TestDepartmentGapNoUsers(t *testing.T) {
	analyzer := NewAnalyzer(&fakeStore{deptUsers: map[uint][]UserRecord{}})

	_, err := analyzer.DepartmentGap(context.Background(), 5)
	if !errors.Is(err, ErrDepartmentNoUsers) {
		t.Fatalf("err = %v, want ErrDepartmentNoUsers", err)
	}
}

func TestDepartmentGapDeterministic(t *testing.T) {
	store := &fakeStore{
		deptUsers: map[uint][]UserRecord{
			5: {
				{Info: UserInfo{ID: 1, Name: "Asha"}, DesignationID: 10},
			},
		},
		skills: map[uint][]SkillRef{
			10: {{ID: 200, Name: "Safety"}, {ID: 201, Name: "Crane Ops"}},
		},
		levels: map[uint]map[uint]LevelRecord{
			1: {
				200: {Current: 0, Required: intPtr(2)},
				201: {Current: 2, Required: intPtr(4)},
			},
		},
	}
	analyzer := NewAnalyzer(store)

	first, err := analyzer.DepartmentGap(context.Background(), 5)
	if err != nil {
		t.Fatalf("DepartmentGap: %v", err)
	}
	second, err := analyzer.DepartmentGap(context.Background(), 5)
	if err != nil {
		t.Fatalf("DepartmentGap: %v", err)
	}

	if len(first.SkillGaps) != len(second.SkillGaps) {
		t.Fatalf("runs differ in length: %d vs %d", len(first.SkillGaps), len(second.SkillGaps))
	}
	for i := range first.SkillGaps {
		if first.SkillGaps[i] != second.SkillGaps[i] {
			t.Errorf("entry %d differs between runs: %+v vs %+v", i, first.SkillGaps[i], second.SkillGaps[i])
		}
	}
	if first.SkillGaps[0].SkillName != "Crane Ops" {
		t.Errorf("entries not sorted by skill name: %q first", first.SkillGaps[0].SkillName)
	}
}
