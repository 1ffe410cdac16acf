package competency

import (
	"context"
	"fmt"
	"sort"
)

// GapEntry 表示一条正向技能差距。
type GapEntry struct {
	SkillID       uint     `json:"skillId"`
	SkillName     string   `json:"skillName"`
	RequiredLevel int      `json:"requiredLevel"`
	CurrentLevel  int      `json:"currentLevel"`
	Gap           int      `json:"gap"`
	Priority      Priority `json:"priority"`
}

// GapSummary 汇总一次差距计算的各档计数。
type GapSummary struct {
	TotalSkills    int `json:"totalSkills"`
	GapSkills      int `json:"gapSkills"`
	HighPriority   int `json:"highPriority"`
	MediumPriority int `json:"mediumPriority"`
	LowPriority    int `json:"lowPriority"`
}

// UserGapReport 是单个员工的差距分析结果。
type UserGapReport struct {
	User      UserInfo   `json:"user"`
	Summary   GapSummary `json:"summary"`
	SkillGaps []GapEntry `json:"skillGaps"`
}

// DepartmentGapEntry 是按技能聚合后的部门级差距。
type DepartmentGapEntry struct {
	SkillID             uint     `json:"skillId"`
	SkillName           string   `json:"skillName"`
	EmployeesAffected   int      `json:"employeesAffected"`
	TotalGap            int      `json:"totalGap"`
	AverageGap          float64  `json:"averageGap"`
	AverageCurrentLevel float64  `json:"averageCurrentLevel"`
	Priority            Priority `json:"priority"`
}

// DepartmentGapSummary 汇总部门差距结果。
type DepartmentGapSummary struct {
	TotalEmployees int `json:"totalEmployees"`
	TotalSkills    int `json:"totalSkills"`
	HighPriority   int `json:"highPriority"`
	MediumPriority int `json:"mediumPriority"`
	LowPriority    int `json:"lowPriority"`
}

// DepartmentGapReport 是部门级差距分析结果。
type DepartmentGapReport struct {
	DepartmentID uint                 `json:"departmentId"`
	Summary      DepartmentGapSummary `json:"summary"`
	SkillGaps    []DepartmentGapEntry `json:"skillGaps"`
}

// Analyzer 计算个人与部门的技能差距。
type Analyzer struct {
	store Store
}

// NewAnalyzer 构造 Analyzer。
func NewAnalyzer(store Store) *Analyzer {
	return &Analyzer{store: store}
}

// UserGap 计算员工的技能差距。
// 候选集 = 岗位关联技能；只有显式设定了目标等级、且目标高于当前
// 等级的技能才会产生条目；无等级记录时当前等级按 0 计。
func (a *Analyzer) UserGap(ctx context.Context, userID uint) (*UserGapReport, error) {
	user, err := a.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	candidates, err := a.store.CandidateSkills(ctx, user.DesignationID)
	if err != nil {
		return nil, fmt.Errorf("user gap: %w", err)
	}
	levels, err := a.store.LevelsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("user gap: %w", err)
	}

	report := &UserGapReport{
		User:      user.Info,
		SkillGaps: []GapEntry{},
	}
	report.Summary.TotalSkills = len(candidates)

	for _, skill := range candidates {
		rec := levels[skill.ID]
		if rec.Required == nil {
			continue // 未设定目标等级，不纳入差距评估
		}

		gap := *rec.Required - rec.Current
		if gap <= 0 {
			continue
		}

		priority := PriorityForLevel(rec.Current)
		switch priority {
		case PriorityHigh:
			report.Summary.HighPriority++
		case PriorityMedium:
			report.Summary.MediumPriority++
		case PriorityLow:
			report.Summary.LowPriority++
		}

		report.SkillGaps = append(report.SkillGaps, GapEntry{
			SkillID:       skill.ID,
			SkillName:     skill.Name,
			RequiredLevel: *rec.Required,
			CurrentLevel:  rec.Current,
			Gap:           gap,
			Priority:      priority,
		})
	}

	report.Summary.GapSkills = len(report.SkillGaps)
	return report, nil
}

// DepartmentGap 对部门内每位在职员工跑一遍个人差距逻辑，再按技能聚合。
// 部门无在职员工时返回 ErrDepartmentNoUsers。
func (a *Analyzer) DepartmentGap(ctx context.Context, departmentID uint) (*DepartmentGapReport, error) {
	users, err := a.store.ActiveUsersByDepartment(ctx, departmentID)
	if err != nil {
		return nil, fmt.Errorf("department gap: %w", err)
	}
	if len(users) == 0 {
		return nil, ErrDepartmentNoUsers
	}

	type bucket struct {
		name         string
		totalGap     int
		totalCurrent int
		affected     int
	}
	buckets := map[uint]*bucket{}
	var order []uint

	report := &DepartmentGapReport{
		DepartmentID: departmentID,
		SkillGaps:    []DepartmentGapEntry{},
	}
	report.Summary.TotalEmployees = len(users)

	for _, user := range users {
		candidates, err := a.store.CandidateSkills(ctx, user.DesignationID)
		if err != nil {
			return nil, fmt.Errorf("department gap: %w", err)
		}
		levels, err := a.store.LevelsForUser(ctx, user.Info.ID)
		if err != nil {
			return nil, fmt.Errorf("department gap: %w", err)
		}

		for _, skill := range candidates {
			rec := levels[skill.ID]
			if rec.Required == nil {
				continue
			}
			gap := *rec.Required - rec.Current
			if gap <= 0 {
				continue
			}

			b, ok := buckets[skill.ID]
			if !ok {
				b = &bucket{name: skill.Name}
				buckets[skill.ID] = b
				order = append(order, skill.ID)
			}
			b.totalGap += gap
			b.totalCurrent += rec.Current
			b.affected++

			switch PriorityForLevel(rec.Current) {
			case PriorityHigh:
				report.Summary.HighPriority++
			case PriorityMedium:
				report.Summary.MediumPriority++
			case PriorityLow:
				report.Summary.LowPriority++
			}
		}
	}

	for _, skillID := range order {
		b := buckets[skillID]
		avgCurrent := float64(b.totalCurrent) / float64(b.affected)
		report.SkillGaps = append(report.SkillGaps, DepartmentGapEntry{
			SkillID:             skillID,
			SkillName:           b.name,
			EmployeesAffected:   b.affected,
			TotalGap:            b.totalGap,
			AverageGap:          round1(float64(b.totalGap) / float64(b.affected)),
			AverageCurrentLevel: round1(avgCurrent),
			Priority:            DepartmentPriority(avgCurrent),
		})
	}
	sort.Slice(report.SkillGaps, func(i, j int) bool {
		return report.SkillGaps[i].SkillName < report.SkillGaps[j].SkillName
	})

	report.Summary.TotalSkills = len(report.SkillGaps)
	return report, nil
}
