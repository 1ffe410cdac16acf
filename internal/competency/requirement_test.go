package competency

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"traincomp/internal/clock"
	"traincomp/internal/database"
)

func newSyncer(db *gorm.DB, clk clock.Clock) *RequirementSyncer {
	store := NewGormStore(db)
	return NewRequirementSyncer(db, NewAnalyzer(store), clk)
}

func seedGapSkill(t *testing.T, db *gorm.DB, user database.User, name string, current, required int) database.Skill {
	t.Helper()
	skill := database.Skill{Name: name, IsActive: true}
	if err := db.Create(&skill).Error; err != nil {
		t.Fatalf("seed skill: %v", err)
	}
	link := database.DesignationSkill{DesignationID: user.DesignationID, SkillID: skill.ID}
	if err := db.Create(&link).Error; err != nil {
		t.Fatalf("seed link: %v", err)
	}
	level := database.UserSkillLevel{UserID: user.ID, SkillID: skill.ID, CurrentLevel: current, RequiredLevel: &required}
	if err := db.Create(&level).Error; err != nil {
		t.Fatalf("seed level: %v", err)
	}
	return skill
}

func TestRequirementSyncCreatesOpenRows(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	skill := seedGapSkill(t, db, user, "Welding", 1, 3)
	syncer := newSyncer(db, clock.Fixed{T: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)})

	result, err := syncer.SyncForUser(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("SyncForUser: %v", err)
	}
	if len(result.Synced) != 1 || result.Closed != 0 {
		t.Fatalf("result = %+v, want 1 synced / 0 closed", result)
	}
	req := result.Synced[0]
	if req.SkillID != skill.ID || req.Status != database.RequirementOpen {
		t.Errorf("row = %+v, want open row for Welding", req)
	}
	if req.Gap != 2 || req.Priority != string(PriorityHigh) {
		t.Errorf("gap = %d priority = %s, want 2 / HIGH", req.Gap, req.Priority)
	}
	if req.SuggestedTrainingID != nil || req.SuggestedTopic != "Training for Welding" {
		t.Errorf("suggestion = %+v / %q, want topic fallback", req.SuggestedTrainingID, req.SuggestedTopic)
	}
}

func TestRequirementSyncClosesResolved(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	skill := seedGapSkill(t, db, user, "Welding", 1, 3)
	syncer := newSyncer(db, clock.Fixed{T: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)})

	if _, err := syncer.SyncForUser(context.Background(), user.ID); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	// 员工达标后再同步，需求应关闭而不是删除。
	err := db.Model(&database.UserSkillLevel{}).
		Where("user_id = ? AND skill_id = ?", user.ID, skill.ID).
		Update("current_level", 3).Error
	if err != nil {
		t.Fatalf("raise level: %v", err)
	}

	result, err := syncer.SyncForUser(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if len(result.Synced) != 0 || result.Closed != 1 {
		t.Fatalf("result = %+v, want 0 synced / 1 closed", result)
	}

	var rows []database.TrainingRequirement
	if err := db.Where("user_id = ?", user.ID).Find(&rows).Error; err != nil {
		t.Fatalf("load rows: %v", err)
	}
	if len(rows) != 1 || rows[0].Status != database.RequirementClosed {
		t.Fatalf("rows = %+v, want single closed row", rows)
	}
}

func TestRequirementSyncKeepsManualStatus(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	seedGapSkill(t, db, user, "Welding", 1, 3)
	syncer := newSyncer(db, clock.Fixed{T: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)})

	first, err := syncer.SyncForUser(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("first sync: %v", err)
	}
	if _, err := syncer.UpdateStatus(context.Background(), first.Synced[0].ID, database.RequirementInProgress); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	second, err := syncer.SyncForUser(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if len(second.Synced) != 1 {
		t.Fatalf("synced = %+v, want the same row refreshed", second.Synced)
	}
	if second.Synced[0].ID != first.Synced[0].ID {
		t.Fatalf("sync must reuse the active row, got new id %d", second.Synced[0].ID)
	}
	if second.Synced[0].Status != database.RequirementInProgress {
		t.Errorf("status = %s, must keep IN_PROGRESS", second.Synced[0].Status)
	}

	var count int64
	if err := db.Model(&database.TrainingRequirement{}).Where("user_id = ?", user.ID).Count(&count).Error; err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 1 {
		t.Fatalf("rows = %d, want no duplicates", count)
	}
}

func TestRequirementSyncSuggestsNearestUpcomingTraining(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	skill := seedGapSkill(t, db, user, "Welding", 1, 3)
	syncer := newSyncer(db, clock.Fixed{T: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)})

	past := database.Training{Topic: "Welding Refresher", Date: "2026-01-10", Status: database.TrainingCompleted}
	upcoming := database.Training{Topic: "Arc Welding Basics", Date: "2026-09-10", Status: database.TrainingPending}
	cancelled := database.Training{Topic: "Cancelled Session", Date: "2026-06-01", Status: database.TrainingCancelled}
	for _, tr := range []*database.Training{&past, &upcoming, &cancelled} {
		if err := db.Create(tr).Error; err != nil {
			t.Fatalf("seed training: %v", err)
		}
		link := database.TrainingSkill{TrainingID: tr.ID, SkillID: skill.ID, ImprovementLevel: 2}
		if err := db.Create(&link).Error; err != nil {
			t.Fatalf("seed training link: %v", err)
		}
	}

	result, err := syncer.SyncForUser(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("SyncForUser: %v", err)
	}
	req := result.Synced[0]
	if req.SuggestedTrainingID == nil || *req.SuggestedTrainingID != upcoming.ID {
		t.Fatalf("suggested = %+v, want the upcoming session %d", req.SuggestedTrainingID, upcoming.ID)
	}
	if req.SuggestedTopic != "" {
		t.Errorf("topic fallback must stay empty when a training matched, got %q", req.SuggestedTopic)
	}
}

func TestRequirementListFiltersAndOrders(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	// current=2 → MEDIUM, current=1 → HIGH
	seedGapSkill(t, db, user, "Forklift", 2, 4)
	seedGapSkill(t, db, user, "Welding", 1, 3)
	syncer := newSyncer(db, clock.Fixed{T: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)})

	if _, err := syncer.SyncForUser(context.Background(), user.ID); err != nil {
		t.Fatalf("sync: %v", err)
	}

	reqs, err := syncer.ListForUser(context.Background(), user.ID, "")
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(reqs) != 2 {
		t.Fatalf("reqs = %+v, want 2", reqs)
	}
	if reqs[0].Priority != string(PriorityHigh) || reqs[0].Skill.Name != "Welding" {
		t.Errorf("first = %s/%s, want the HIGH row first", reqs[0].Skill.Name, reqs[0].Priority)
	}

	open, err := syncer.ListForUser(context.Background(), user.ID, database.RequirementClosed)
	if err != nil {
		t.Fatalf("filtered list: %v", err)
	}
	if len(open) != 0 {
		t.Fatalf("closed filter = %+v, want empty", open)
	}
}

func TestRequirementSyncUnknownUser(t *testing.T) {
	db := newTestDB(t)
	syncer := newSyncer(db, clock.System{})

	_, err := syncer.SyncForUser(context.Background(), 999)
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}

func TestRequirementUpdateStatusMissing(t *testing.T) {
	db := newTestDB(t)
	syncer := newSyncer(db, clock.System{})

	_, err := syncer.UpdateStatus(context.Background(), 42, database.RequirementClosed)
	if !errors.Is(err, ErrRequirementNotFound) {
		t.Fatalf("err = %v, want ErrRequirementNotFound", err)
	}
}
