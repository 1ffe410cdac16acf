package api

import (
	"errors"
	"log/slog"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"traincomp/internal/api/middleware"
	"traincomp/internal/competency"
	"traincomp/internal/database"
)

// UserSkillHandler 维护 (员工, 技能) 的当前/目标等级。
type UserSkillHandler struct {
	db *gorm.DB
}

func NewUserSkillHandler(db *gorm.DB) *UserSkillHandler {
	return &UserSkillHandler{db: db}
}

type upsertLevelRequest struct {
	SkillID       uint `json:"skillId" binding:"required"`
	CurrentLevel  *int `json:"currentLevel"`
	RequiredLevel *int `json:"requiredLevel"`
}

type levelResponse struct {
	UserID        uint `json:"userId"`
	SkillID       uint `json:"skillId"`
	CurrentLevel  int  `json:"currentLevel"`
	RequiredLevel *int `json:"requiredLevel"`
}

// Upsert 写入某员工某技能的等级。
// EMPLOYEE 只能改自己的当前等级；目标等级是 HR/ADMIN/HOD（本部门）的权限。
func (h *UserSkillHandler) Upsert(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	userID, err := parseIDParam(c)
	if err != nil {
		BadRequest(c, "invalid user id")
		return
	}

	var req upsertLevelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if req.CurrentLevel == nil && req.RequiredLevel == nil {
		BadRequest(c, "nothing to update")
		return
	}
	if req.CurrentLevel != nil && !competency.ValidLevel(*req.CurrentLevel) {
		BadRequest(c, "current level must be between 0 and 4")
		return
	}
	if req.RequiredLevel != nil && !competency.ValidLevel(*req.RequiredLevel) {
		BadRequest(c, "required level must be between 0 and 4")
		return
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)

	var target database.User
	if err := h.db.WithContext(ctx).First(&target, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "user not found")
			return
		}
		logger.Error("load user failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	// 权限检查。
	if id.Role == database.RoleEmployee {
		if id.UserID != userID || req.RequiredLevel != nil {
			Forbidden(c, "employees may only update their own current level")
			return
		}
	} else if !canManageLevels(id, target.DepartmentID) {
		Forbidden(c, "user outside your department")
		return
	}

	var skill database.Skill
	if err := h.db.WithContext(ctx).First(&skill, req.SkillID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "skill not found")
			return
		}
		logger.Error("load skill failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	row := database.UserSkillLevel{UserID: userID, SkillID: req.SkillID}
	updateColumns := []string{}
	if req.CurrentLevel != nil {
		row.CurrentLevel = *req.CurrentLevel
		updateColumns = append(updateColumns, "current_level")
	}
	if req.RequiredLevel != nil {
		row.RequiredLevel = req.RequiredLevel
		updateColumns = append(updateColumns, "required_level")
	}

	err = h.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "skill_id"}},
			DoUpdates: clause.AssignmentColumns(updateColumns),
		}).
		Create(&row).Error
	if err != nil {
		logger.Error("upsert skill level failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	var saved database.UserSkillLevel
	err = h.db.WithContext(ctx).
		Where("user_id = ? AND skill_id = ?", userID, req.SkillID).
		First(&saved).Error
	if err != nil {
		logger.Error("reload skill level failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusOK, levelResponse{
		UserID:        saved.UserID,
		SkillID:       saved.SkillID,
		CurrentLevel:  saved.CurrentLevel,
		RequiredLevel: saved.RequiredLevel,
	})
}

type bulkRequiredRequest struct {
	Levels []struct {
		SkillID       uint `json:"skillId" binding:"required"`
		RequiredLevel int  `json:"requiredLevel"`
	} `json:"levels" binding:"required,min=1"`
}

// BulkSetRequired 批量设定某员工的目标等级（HR/ADMIN/HOD 本部门）。
func (h *UserSkillHandler) BulkSetRequired(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	userID, err := parseIDParam(c)
	if err != nil {
		BadRequest(c, "invalid user id")
		return
	}

	var req bulkRequiredRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	for _, l := range req.Levels {
		if !competency.ValidLevel(l.RequiredLevel) {
			BadRequest(c, "required level must be between 0 and 4")
			return
		}
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)

	var target database.User
	if err := h.db.WithContext(ctx).First(&target, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "user not found")
			return
		}
		logger.Error("load user failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	if !canManageLevels(id, target.DepartmentID) {
		Forbidden(c, "user outside your department")
		return
	}

	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, l := range req.Levels {
			required := l.RequiredLevel
			row := database.UserSkillLevel{
				UserID:        userID,
				SkillID:       l.SkillID,
				RequiredLevel: &required,
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}, {Name: "skill_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"required_level"}),
			}).Create(&row).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.Error("bulk set required levels failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	c.Status(http.StatusNoContent)
}

// ListForUser 返回某员工的全部等级记录（只含存活技能）。
func (h *UserSkillHandler) ListForUser(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	userID, err := parseIDParam(c)
	if err != nil {
		BadRequest(c, "invalid user id")
		return
	}
	if id.Role == database.RoleEmployee && id.UserID != userID {
		Forbidden(c, "employees may only view their own levels")
		return
	}

	h.replyLevels(c, userID)
}

// MyLevels 返回当前登录员工的等级记录。
func (h *UserSkillHandler) MyLevels(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	h.replyLevels(c, id.UserID)
}

func (h *UserSkillHandler) replyLevels(c *gin.Context, userID uint) {
	store := competency.NewGormStore(h.db)
	levels, err := store.LevelsForUser(c.Request.Context(), userID)
	if err != nil {
		middleware.LoggerFromContext(c).Error("load skill levels failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	out := make([]levelResponse, 0, len(levels))
	for skillID, rec := range levels {
		out = append(out, levelResponse{
			UserID:        userID,
			SkillID:       skillID,
			CurrentLevel:  rec.Current,
			RequiredLevel: rec.Required,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SkillID < out[j].SkillID })
	c.JSON(http.StatusOK, gin.H{"levels": out, "total": len(out)})
}
