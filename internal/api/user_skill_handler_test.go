package api

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"traincomp/internal/auth"
	"traincomp/internal/database"
)

func seedLevelFixtures(t *testing.T, db *gorm.DB) (*database.User, *database.Skill) {
	t.Helper()
	user := database.User{
		Name: "Asha", Email: "asha@example.com", EmployeeID: "E001",
		Role: database.RoleEmployee, IsActive: true, DepartmentID: 1,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	skill := database.Skill{Name: "Welding", IsActive: true}
	if err := db.Create(&skill).Error; err != nil {
		t.Fatalf("seed skill: %v", err)
	}
	return &user, &skill
}

func levelOf(n int) *int { return &n }

func TestUpsertLevel_RejectsOutOfRange(t *testing.T) {
	db := newHandlerDB(t)
	h := NewUserSkillHandler(db)
	user, skill := seedLevelFixtures(t, db)

	for _, bad := range []int{-1, 5, 9} {
		body := map[string]any{"skillId": skill.ID, "currentLevel": bad}
		c, w := newAuthedContext(t, auth.Identity{UserID: 99, Role: database.RoleHR},
			http.MethodPut, "/v1/users/"+strconv.Itoa(int(user.ID))+"/skills", body)
		c.Params = gin.Params{{Key: "id", Value: strconv.Itoa(int(user.ID))}}

		h.Upsert(c)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("level %d: expected 400, got %d", bad, w.Code)
		}
	}

	var count int64
	db.Model(&database.UserSkillLevel{}).Count(&count)
	if count != 0 {
		t.Fatalf("no rows should be written on validation failure, got %d", count)
	}
}

func TestUpsertLevel_EmployeeCannotSetRequired(t *testing.T) {
	db := newHandlerDB(t)
	h := NewUserSkillHandler(db)
	user, skill := seedLevelFixtures(t, db)

	body := map[string]any{"skillId": skill.ID, "requiredLevel": 3}
	c, w := newAuthedContext(t, auth.Identity{UserID: user.ID, Role: database.RoleEmployee},
		http.MethodPut, "/v1/users/"+strconv.Itoa(int(user.ID))+"/skills", body)
	c.Params = gin.Params{{Key: "id", Value: strconv.Itoa(int(user.ID))}}

	h.Upsert(c)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for employee setting required level, got %d", w.Code)
	}
}

func TestUpsertLevel_EmployeeUpdatesOwnCurrentLevel(t *testing.T) {
	db := newHandlerDB(t)
	h := NewUserSkillHandler(db)
	user, skill := seedLevelFixtures(t, db)

	body := map[string]any{"skillId": skill.ID, "currentLevel": 2}
	c, w := newAuthedContext(t, auth.Identity{UserID: user.ID, Role: database.RoleEmployee, DepartmentID: 1},
		http.MethodPut, "/v1/users/"+strconv.Itoa(int(user.ID))+"/skills", body)
	c.Params = gin.Params{{Key: "id", Value: strconv.Itoa(int(user.ID))}}

	h.Upsert(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var row database.UserSkillLevel
	if err := db.Where("user_id = ? AND skill_id = ?", user.ID, skill.ID).First(&row).Error; err != nil {
		t.Fatalf("load level row: %v", err)
	}
	if row.CurrentLevel != 2 {
		t.Fatalf("current level = %d, want 2", row.CurrentLevel)
	}
	if row.RequiredLevel != nil {
		t.Fatalf("required level must stay unset, got %d", *row.RequiredLevel)
	}
}

func TestUpsertLevel_UpdateDoesNotClobberOtherColumn(t *testing.T) {
	db := newHandlerDB(t)
	h := NewUserSkillHandler(db)
	user, skill := seedLevelFixtures(t, db)

	seed := database.UserSkillLevel{
		UserID: user.ID, SkillID: skill.ID, CurrentLevel: 1, RequiredLevel: levelOf(4),
	}
	if err := db.Create(&seed).Error; err != nil {
		t.Fatalf("seed level row: %v", err)
	}

	body := map[string]any{"skillId": skill.ID, "currentLevel": 3}
	c, w := newAuthedContext(t, auth.Identity{UserID: 50, Role: database.RoleAdmin},
		http.MethodPut, "/v1/users/"+strconv.Itoa(int(user.ID))+"/skills", body)
	c.Params = gin.Params{{Key: "id", Value: strconv.Itoa(int(user.ID))}}

	h.Upsert(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var row database.UserSkillLevel
	if err := db.Where("user_id = ? AND skill_id = ?", user.ID, skill.ID).First(&row).Error; err != nil {
		t.Fatalf("load level row: %v", err)
	}
	if row.CurrentLevel != 3 {
		t.Fatalf("current level = %d, want 3", row.CurrentLevel)
	}
	if row.RequiredLevel == nil || *row.RequiredLevel != 4 {
		t.Fatalf("required level must survive a current-only update, got %v", row.RequiredLevel)
	}
}

func TestBulkSetRequired_HODOutsideDepartment(t *testing.T) {
	db := newHandlerDB(t)
	h := NewUserSkillHandler(db)
	user, skill := seedLevelFixtures(t, db) // DepartmentID 1

	body := map[string]any{
		"levels": []map[string]any{{"skillId": skill.ID, "requiredLevel": 3}},
	}
	c, w := newAuthedContext(t, auth.Identity{UserID: 7, Role: database.RoleHOD, DepartmentID: 2},
		http.MethodPut, "/v1/users/"+strconv.Itoa(int(user.ID))+"/skills/required", body)
	c.Params = gin.Params{{Key: "id", Value: strconv.Itoa(int(user.ID))}}

	h.BulkSetRequired(c)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for HOD outside department, got %d", w.Code)
	}
}
