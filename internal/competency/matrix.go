package competency

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
)

// MatrixSkill 是个人矩阵中的一行。目标等级未设定时 Required/Gap 为空，
// 且该行不计入完成度分母。
type MatrixSkill struct {
	SkillID       uint   `json:"skillId"`
	SkillName     string `json:"skillName"`
	RequiredLevel *int   `json:"requiredLevel"`
	CurrentLevel  int    `json:"currentLevel"`
	Gap           *int   `json:"gap"`
}

// MatrixSummary 汇总个人矩阵的分值与完成度。
type MatrixSummary struct {
	TotalSkills          int `json:"totalSkills"`
	TotalRequiredScore   int `json:"totalRequiredScore"`
	TotalCurrentScore    int `json:"totalCurrentScore"`
	CompletionPercentage int `json:"completionPercentage"`
}

// UserMatrix 是单个员工的技能矩阵。
type UserMatrix struct {
	User    UserInfo      `json:"user"`
	Summary MatrixSummary `json:"summary"`
	Skills  []MatrixSkill `json:"skills"`
}

// MatrixCell 是组织矩阵中 (员工, 技能) 的一个格子。
type MatrixCell struct {
	SkillID       uint `json:"skillId"`
	RequiredLevel *int `json:"requiredLevel"`
	CurrentLevel  int  `json:"currentLevel"`
	Gap           *int `json:"gap"`
}

// MatrixEmployee 是组织矩阵中的一行员工。
type MatrixEmployee struct {
	UserInfo
	CompletionPercentage int          `json:"completionPercentage"`
	Cells                []MatrixCell `json:"cells"`
}

// OrgMatrix 是组织级技能矩阵：列为筛选出的员工岗位所关联技能的并集。
type OrgMatrix struct {
	Skills    []SkillRef       `json:"skills"`
	Employees []MatrixEmployee `json:"employees"`
}

// MatrixBuilder 构建个人与组织技能矩阵。
type MatrixBuilder struct {
	store Store
}

// NewMatrixBuilder 构造 MatrixBuilder。
func NewMatrixBuilder(store Store) *MatrixBuilder {
	return &MatrixBuilder{store: store}
}

// UserMatrix 构建单个员工的矩阵视图。
func (m *MatrixBuilder) UserMatrix(ctx context.Context, userID uint) (*UserMatrix, error) {
	user, err := m.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	candidates, err := m.store.CandidateSkills(ctx, user.DesignationID)
	if err != nil {
		return nil, fmt.Errorf("user matrix: %w", err)
	}
	levels, err := m.store.LevelsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("user matrix: %w", err)
	}

	matrix := &UserMatrix{
		User:   user.Info,
		Skills: []MatrixSkill{},
	}

	var totalRequired, totalCurrent int
	for _, skill := range candidates {
		rec := levels[skill.ID]
		row := MatrixSkill{
			SkillID:      skill.ID,
			SkillName:    skill.Name,
			CurrentLevel: rec.Current,
		}
		if rec.Required != nil {
			required := *rec.Required
			gap := required - rec.Current
			row.RequiredLevel = &required
			row.Gap = &gap
			totalRequired += required
			totalCurrent += rec.Current
		}
		matrix.Skills = append(matrix.Skills, row)
	}

	matrix.Summary = MatrixSummary{
		TotalSkills:          len(matrix.Skills),
		TotalRequiredScore:   totalRequired,
		TotalCurrentScore:    totalCurrent,
		CompletionPercentage: completion(totalCurrent, totalRequired),
	}
	return matrix, nil
}

// OrgMatrix 构建组织级矩阵。列集合是筛选出的员工岗位所关联技能的并集，
// 按技能名排序；Query 过滤在部门/岗位过滤之后、于内存中执行。
func (m *MatrixBuilder) OrgMatrix(ctx context.Context, filter UserFilter) (*OrgMatrix, error) {
	users, err := m.store.ActiveUsers(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("org matrix: %w", err)
	}
	users = applyQueryFilter(users, filter.Query)

	matrix := &OrgMatrix{
		Skills:    []SkillRef{},
		Employees: []MatrixEmployee{},
	}

	// 岗位 -> 候选技能，避免同岗位员工反复查询。
	skillsByDesignation := map[uint][]SkillRef{}
	columnSet := map[uint]SkillRef{}
	for _, user := range users {
		if _, ok := skillsByDesignation[user.DesignationID]; ok {
			continue
		}
		candidates, err := m.store.CandidateSkills(ctx, user.DesignationID)
		if err != nil {
			return nil, fmt.Errorf("org matrix: %w", err)
		}
		skillsByDesignation[user.DesignationID] = candidates
		for _, skill := range candidates {
			columnSet[skill.ID] = skill
		}
	}

	for _, skill := range columnSet {
		matrix.Skills = append(matrix.Skills, skill)
	}
	sort.Slice(matrix.Skills, func(i, j int) bool {
		return matrix.Skills[i].Name < matrix.Skills[j].Name
	})

	for _, user := range users {
		levels, err := m.store.LevelsForUser(ctx, user.Info.ID)
		if err != nil {
			return nil, fmt.Errorf("org matrix: %w", err)
		}

		row := MatrixEmployee{
			UserInfo: user.Info,
			Cells:    make([]MatrixCell, 0, len(matrix.Skills)),
		}
		var totalRequired, totalCurrent int
		for _, skill := range matrix.Skills {
			rec := levels[skill.ID]
			cell := MatrixCell{
				SkillID:      skill.ID,
				CurrentLevel: rec.Current,
			}
			if rec.Required != nil {
				required := *rec.Required
				gap := required - rec.Current
				cell.RequiredLevel = &required
				cell.Gap = &gap
				totalRequired += required
				totalCurrent += rec.Current
			}
			row.Cells = append(row.Cells, cell)
		}
		row.CompletionPercentage = completion(totalCurrent, totalRequired)
		matrix.Employees = append(matrix.Employees, row)
	}

	return matrix, nil
}

// completion 计算完成度百分比，分母为 0 时返回 0，绝不除零。
func completion(current, required int) int {
	if required == 0 {
		return 0
	}
	return int(math.Round(float64(current) / float64(required) * 100))
}

func applyQueryFilter(users []UserRecord, query string) []UserRecord {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return users
	}
	filtered := make([]UserRecord, 0, len(users))
	for _, u := range users {
		if strings.Contains(strings.ToLower(u.Info.Name), q) ||
			strings.Contains(strings.ToLower(u.Info.EmployeeID), q) ||
			strings.Contains(strings.ToLower(u.Info.Email), q) {
			filtered = append(filtered, u)
		}
	}
	return filtered
}
