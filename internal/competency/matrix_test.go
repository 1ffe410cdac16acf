package competency

import (
	"context"
	"errors"
	"testing"
)

func newMatrixFixture() *fakeStore {
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
				100: {Current: 3, Required: intPtr(4)},
				101: {Current: 2},                      // 未设目标，不计入分母
				102: {Current: 1, Required: intPtr(3)}, // gap=2
			},
		},
	}
}

func TestUserMatrix(t *testing.T) {
	builder := NewMatrixBuilder(newMatrixFixture())

	matrix, err := builder.UserMatrix(context.Background(), 1)
	if err != nil {
		t.Fatalf("UserMatrix: %v", err)
	}

	if len(matrix.Skills) != 3 {
		t.Fatalf("skills = %d, want 3 (every candidate skill is a row)", len(matrix.Skills))
	}

	// required 7, current 4 → round(4/7*100) = 57
	if matrix.Summary.TotalRequiredScore != 7 {
		t.Errorf("total required = %d, want 7", matrix.Summary.TotalRequiredScore)
	}
	if matrix.Summary.TotalCurrentScore != 4 {
		t.Errorf("total current = %d, want 4", matrix.Summary.TotalCurrentScore)
	}
	if matrix.Summary.CompletionPercentage != 57 {
		t.Errorf("completion = %d, want 57", matrix.Summary.CompletionPercentage)
	}

	for _, skill := range matrix.Skills {
		if skill.SkillID == 101 {
			if skill.RequiredLevel != nil || skill.Gap != nil {
				t.Errorf("unset required level must stay nil, got %+v", skill)
			}
		}
		if skill.SkillID == 102 {
			if skill.Gap == nil || *skill.Gap != 2 {
				t.Errorf("skill 102 gap = %v, want 2", skill.Gap)
			}
		}
	}
}

func TestUserMatrixZeroRequired(t *testing.T) {
	store := newMatrixFixture()
	store.levels[1] = map[uint]LevelRecord{
		100: {Current: 3}, // 全部未设目标
	}
	builder := NewMatrixBuilder(store)

	matrix, err := builder.UserMatrix(context.Background(), 1)
	if err != nil {
		t.Fatalf("UserMatrix: %v", err)
	}
	if matrix.Summary.CompletionPercentage != 0 {
		t.Errorf("completion with zero required = %d, want 0", matrix.Summary.CompletionPercentage)
	}
}

func TestUserMatrixNotFound(t *testing.T) {
	builder := NewMatrixBuilder(newMatrixFixture())

	_, err := builder.UserMatrix(context.Background(), 42)
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}

func TestOrgMatrix(t *testing.T) {
	store := &fakeStore{
		allUsers: []UserRecord{
			{Info: UserInfo{ID: 1, Name: "Asha", EmployeeID: "E001"}, DesignationID: 10},
			{Info: UserInfo{ID: 2, Name: "Bo", EmployeeID: "E002"}, DesignationID: 11},
		},
		skills: map[uint][]SkillRef{
			10: {{ID: 100, Name: "Crane Ops"}, {ID: 101, Name: "Forklift"}},
			11: {{ID: 101, Name: "Forklift"}, {ID: 102, Name: "Welding"}},
		},
		levels: map[uint]map[uint]LevelRecord{
			1: {
				100: {Current: 2, Required: intPtr(4)},
				101: {Current: 4, Required: intPtr(4)},
			},
			2: {
				101: {Current: 1, Required: intPtr(2)},
				102: {Current: 3},
			},
		},
	}
	builder := NewMatrixBuilder(store)

	matrix, err := builder.OrgMatrix(context.Background(), UserFilter{})
	if err != nil {
		t.Fatalf("OrgMatrix: %v", err)
	}

	// 列是两个岗位技能的并集，按名称排序。
	wantCols := []string{"Crane Ops", "Forklift", "Welding"}
	if len(matrix.Skills) != len(wantCols) {
		t.Fatalf("columns = %d, want %d", len(matrix.Skills), len(wantCols))
	}
	for i, name := range wantCols {
		if matrix.Skills[i].Name != name {
			t.Errorf("column %d = %q, want %q", i, matrix.Skills[i].Name, name)
		}
	}

	if len(matrix.Employees) != 2 {
		t.Fatalf("employees = %d, want 2", len(matrix.Employees))
	}
	for _, emp := range matrix.Employees {
		if len(emp.Cells) != len(wantCols) {
			t.Errorf("%s: cells = %d, want %d (one per column)", emp.Name, len(emp.Cells), len(wantCols))
		}
	}

	// Asha: required 8, current 6 → 75。Welding 不属于其岗位，格子留白。
	asha := matrix.Employees[0]
	if asha.CompletionPercentage != 75 {
		t.Errorf("Asha completion = %d, want 75", asha.CompletionPercentage)
	}
	welding := asha.Cells[2]
	if welding.RequiredLevel != nil || welding.CurrentLevel != 0 || welding.Gap != nil {
		t.Errorf("cell outside designation must be empty, got %+v", welding)
	}

	// Bo: Welding 有当前等级但未设目标 → 不计入完成度。required 2, current 1 → 50。
	bo := matrix.Employees[1]
	if bo.CompletionPercentage != 50 {
		t.Errorf("Bo completion = %d, want 50", bo.CompletionPercentage)
	}
	if bo.Cells[2].CurrentLevel != 3 || bo.Cells[2].RequiredLevel != nil {
		t.Errorf("Bo welding cell = %+v, want current 3 with nil required", bo.Cells[2])
	}
}

func TestOrgMatrixQueryFilter(t *testing.T) {
	store := &fakeStore{
		allUsers: []UserRecord{
			{Info: UserInfo{ID: 1, Name: "Asha Rao", EmployeeID: "E001"}, DesignationID: 10},
			{Info: UserInfo{ID: 2, Name: "Bo Lin", EmployeeID: "E002"}, DesignationID: 10},
		},
		skills: map[uint][]SkillRef{10: {{ID: 100, Name: "Crane Ops"}}},
		levels: map[uint]map[uint]LevelRecord{},
	}
	builder := NewMatrixBuilder(store)

	matrix, err := builder.OrgMatrix(context.Background(), UserFilter{Query: "e002"})
	if err != nil {
		t.Fatalf("OrgMatrix: %v", err)
	}
	if len(matrix.Employees) != 1 || matrix.Employees[0].ID != 2 {
		t.Fatalf("query filter kept %d employees, want only Bo", len(matrix.Employees))
	}
}

func TestCompletion(t *testing.T) {
	cases := []struct {
		current, required, want int
	}{
		{0, 0, 0},
		{4, 7, 57},
		{6, 8, 75},
		{3, 3, 100},
		{1, 3, 33},
	}
	for _, tc := range cases {
		if got := completion(tc.current, tc.required); got != tc.want {
			t.Errorf("completion(%d, %d) = %d, want %d", tc.current, tc.required, got, tc.want)
		}
	}
}
