package competency

import (
	"context"
	"fmt"
	"sort"
)

// Recommendation 是一条去重后的培训推荐。
type Recommendation struct {
	TrainingID    uint     `json:"trainingId"`
	Title         string   `json:"title"`
	Priority      Priority `json:"priority"`
	SkillsCovered []string `json:"skillsCovered"`
}

// RecommendationReport 是员工的培训推荐结果。
type RecommendationReport struct {
	User                 UserInfo         `json:"user"`
	TotalRecommendations int              `json:"totalRecommendations"`
	Recommendations      []Recommendation `json:"recommendations"`
}

// Recommender 把开放的技能差距匹配到覆盖对应技能的培训上。
type Recommender struct {
	store    Store
	analyzer *Analyzer
}

// NewRecommender 构造 Recommender。
func NewRecommender(store Store, analyzer *Analyzer) *Recommender {
	return &Recommender{store: store, analyzer: analyzer}
}

// ForUser 为员工生成培训推荐。
// 同一培训覆盖多个差距技能时只出现一次，技能名合并进 SkillsCovered，
// 优先级取所覆盖差距中最高的一档；结果按优先级降序、标题升序排列。
func (r *Recommender) ForUser(ctx context.Context, userID uint) (*RecommendationReport, error) {
	gapReport, err := r.analyzer.UserGap(ctx, userID)
	if err != nil {
		return nil, err
	}

	merged := map[uint]*Recommendation{}
	for _, gap := range gapReport.SkillGaps {
		trainings, err := r.store.TrainingsForSkill(ctx, gap.SkillID)
		if err != nil {
			return nil, fmt.Errorf("recommendations: %w", err)
		}
		for _, training := range trainings {
			existing, ok := merged[training.ID]
			if !ok {
				merged[training.ID] = &Recommendation{
					TrainingID:    training.ID,
					Title:         training.Topic,
					Priority:      gap.Priority,
					SkillsCovered: []string{gap.SkillName},
				}
				continue
			}
			existing.Priority = Higher(existing.Priority, gap.Priority)
			existing.SkillsCovered = append(existing.SkillsCovered, gap.SkillName)
		}
	}

	report := &RecommendationReport{
		User:            gapReport.User,
		Recommendations: make([]Recommendation, 0, len(merged)),
	}
	for _, rec := range merged {
		report.Recommendations = append(report.Recommendations, *rec)
	}
	sort.Slice(report.Recommendations, func(i, j int) bool {
		a, b := report.Recommendations[i], report.Recommendations[j]
		if a.Priority.rank() != b.Priority.rank() {
			return a.Priority.rank() > b.Priority.rank()
		}
		return a.Title < b.Title
	})
	report.TotalRecommendations = len(report.Recommendations)
	return report, nil
}
