package competency

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"traincomp/internal/clock"
	"traincomp/internal/database"
)

// RequirementSyncResult 是一次同步的产出。
type RequirementSyncResult struct {
	User   UserInfo                       `json:"user"`
	Synced []database.TrainingRequirement `json:"synced"`
	Closed int                            `json:"closed"`
}

// RequirementSyncer 把差距分析的输出物化为 training_requirements 行。
// 每个 (user, skill) 最多保留一条活跃行（OPEN/IN_PROGRESS）：
// 差距仍在时更新该行并保留人工推进的状态，差距消失时转 CLOSED。
type RequirementSyncer struct {
	db       *gorm.DB
	analyzer *Analyzer
	clock    clock.Clock
}

// NewRequirementSyncer 构造 RequirementSyncer。
func NewRequirementSyncer(db *gorm.DB, analyzer *Analyzer, clk clock.Clock) *RequirementSyncer {
	return &RequirementSyncer{db: db, analyzer: analyzer, clock: clk}
}

// SyncForUser 为员工刷新培训需求。员工不存在时返回 ErrUserNotFound。
func (s *RequirementSyncer) SyncForUser(ctx context.Context, userID uint) (*RequirementSyncResult, error) {
	report, err := s.analyzer.UserGap(ctx, userID)
	if err != nil {
		return nil, err
	}

	var active []database.TrainingRequirement
	err = s.db.WithContext(ctx).
		Where("user_id = ? AND status IN ?", userID,
			[]string{database.RequirementOpen, database.RequirementInProgress}).
		Find(&active).Error
	if err != nil {
		return nil, fmt.Errorf("load active requirements: %w", err)
	}
	activeBySkill := make(map[uint]*database.TrainingRequirement, len(active))
	for i := range active {
		activeBySkill[active[i].SkillID] = &active[i]
	}

	result := &RequirementSyncResult{
		User:   report.User,
		Synced: []database.TrainingRequirement{},
	}
	gapped := map[uint]bool{}

	for _, entry := range report.SkillGaps {
		gapped[entry.SkillID] = true

		trainingID, topic, err := s.suggestForSkill(ctx, entry.SkillID, entry.SkillName)
		if err != nil {
			return nil, err
		}

		req := activeBySkill[entry.SkillID]
		if req == nil {
			req = &database.TrainingRequirement{
				UserID:  userID,
				SkillID: entry.SkillID,
				Status:  database.RequirementOpen,
			}
		}
		req.RequiredLevel = entry.RequiredLevel
		req.CurrentLevel = entry.CurrentLevel
		req.Gap = entry.Gap
		req.Priority = string(entry.Priority)
		req.SuggestedTrainingID = trainingID
		req.SuggestedTopic = topic

		if err := s.db.WithContext(ctx).Save(req).Error; err != nil {
			return nil, fmt.Errorf("save requirement: %w", err)
		}
		result.Synced = append(result.Synced, *req)
	}

	// 差距已消失的活跃行转为 CLOSED。
	for skillID, req := range activeBySkill {
		if gapped[skillID] {
			continue
		}
		err := s.db.WithContext(ctx).Model(req).
			Update("status", database.RequirementClosed).Error
		if err != nil {
			return nil, fmt.Errorf("close requirement: %w", err)
		}
		result.Closed++
	}
	return result, nil
}

// suggestForSkill 为技能挑选建议培训：优先最近的未来场次，其次最近的
// 过往场次；已取消的不参与。没有任何映射时退化为建议主题。
func (s *RequirementSyncer) suggestForSkill(ctx context.Context, skillID uint, skillName string) (*uint, string, error) {
	var links []database.TrainingSkill
	err := s.db.WithContext(ctx).
		Preload("Training").
		Where("skill_id = ?", skillID).
		Find(&links).Error
	if err != nil {
		return nil, "", fmt.Errorf("load trainings for skill %d: %w", skillID, err)
	}

	today := s.clock.Now().Format("2006-01-02")
	candidates := make([]database.Training, 0, len(links))
	for _, l := range links {
		if l.Training.ID == 0 || l.Training.Status == database.TrainingCancelled {
			continue
		}
		candidates = append(candidates, l.Training)
	}
	if len(candidates) == 0 {
		return nil, "Training for " + skillName, nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		au, bu := a.Date >= today, b.Date >= today
		if au != bu {
			return au // 未来场次优先
		}
		if au {
			return a.Date < b.Date // 未来取最近的
		}
		return a.Date > b.Date // 过去取最晚的
	})
	id := candidates[0].ID
	return &id, "", nil
}

// ListForUser 返回员工的培训需求，优先级降序、更新时间降序。
// status 非空时按状态过滤；员工不存在时返回 ErrUserNotFound。
func (s *RequirementSyncer) ListForUser(ctx context.Context, userID uint, status string) ([]database.TrainingRequirement, error) {
	if _, err := s.analyzer.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	q := s.db.WithContext(ctx).
		Preload("Skill").
		Preload("SuggestedTraining").
		Where("user_id = ?", userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var reqs []database.TrainingRequirement
	if err := q.Find(&reqs).Error; err != nil {
		return nil, fmt.Errorf("list requirements: %w", err)
	}
	sort.Slice(reqs, func(i, j int) bool {
		a, b := reqs[i], reqs[j]
		if Priority(a.Priority).rank() != Priority(b.Priority).rank() {
			return Priority(a.Priority).rank() > Priority(b.Priority).rank()
		}
		return a.UpdatedAt.After(b.UpdatedAt)
	})
	return reqs, nil
}

// UpdateStatus 人工推进一条需求的状态。不存在时返回 ErrRequirementNotFound。
func (s *RequirementSyncer) UpdateStatus(ctx context.Context, id uint, status string) (*database.TrainingRequirement, error) {
	var req database.TrainingRequirement
	err := s.db.WithContext(ctx).First(&req, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRequirementNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load requirement %d: %w", id, err)
	}
	if err := s.db.WithContext(ctx).Model(&req).Update("status", status).Error; err != nil {
		return nil, fmt.Errorf("update requirement %d: %w", id, err)
	}
	return &req, nil
}
