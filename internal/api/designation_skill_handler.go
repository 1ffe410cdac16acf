package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"traincomp/internal/api/middleware"
	"traincomp/internal/database"
)

// DesignationSkillHandler 维护岗位与技能的关联（候选技能集）。
type DesignationSkillHandler struct {
	db *gorm.DB
}

func NewDesignationSkillHandler(db *gorm.DB) *DesignationSkillHandler {
	return &DesignationSkillHandler{db: db}
}

type designationSkillRequest struct {
	SkillIDs []uint `json:"skillIds" binding:"required,min=1"`
}

// Assign 把一组技能挂到岗位上，重复关联幂等跳过。
func (h *DesignationSkillHandler) Assign(c *gin.Context) {
	designationID, err := parseIDParam(c)
	if err != nil {
		BadRequest(c, "invalid designation id")
		return
	}

	var req designationSkillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)

	var designation database.Designation
	if err := h.db.WithContext(ctx).First(&designation, designationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "designation not found")
			return
		}
		logger.Error("load designation failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	// 只接受存活的技能 ID。
	var skills []database.Skill
	if err := h.db.WithContext(ctx).Find(&skills, req.SkillIDs).Error; err != nil {
		logger.Error("load skills failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	if len(skills) != len(req.SkillIDs) {
		BadRequest(c, "one or more skills do not exist")
		return
	}

	links := make([]database.DesignationSkill, 0, len(skills))
	for _, s := range skills {
		links = append(links, database.DesignationSkill{
			DesignationID: designationID,
			SkillID:       s.ID,
		})
	}
	err = h.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&links).Error
	if err != nil {
		logger.Error("link skills failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	c.Status(http.StatusNoContent)
}

// Remove 解除岗位与某技能的关联。
func (h *DesignationSkillHandler) Remove(c *gin.Context) {
	designationID, err := parseIDParam(c)
	if err != nil {
		BadRequest(c, "invalid designation id")
		return
	}
	skillID, err := parseUintParam(c, "skillId")
	if err != nil {
		BadRequest(c, "invalid skill id")
		return
	}

	result := h.db.WithContext(c.Request.Context()).
		Where("designation_id = ? AND skill_id = ?", designationID, skillID).
		Delete(&database.DesignationSkill{})
	if result.Error != nil {
		middleware.LoggerFromContext(c).Error("unlink skill failed", slog.Any("error", result.Error))
		Internal(c, "internal error")
		return
	}
	if result.RowsAffected == 0 {
		NotFound(c, "link not found")
		return
	}
	c.Status(http.StatusNoContent)
}

// List 返回岗位的候选技能集（只含存活技能，按名称排序）。
func (h *DesignationSkillHandler) List(c *gin.Context) {
	designationID, err := parseIDParam(c)
	if err != nil {
		BadRequest(c, "invalid designation id")
		return
	}

	ctx := c.Request.Context()
	var links []database.DesignationSkill
	if err := h.db.WithContext(ctx).Where("designation_id = ?", designationID).Find(&links).Error; err != nil {
		middleware.LoggerFromContext(c).Error("list designation skills failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	items := []catalogItem{}
	if len(links) > 0 {
		ids := make([]uint, 0, len(links))
		for _, l := range links {
			ids = append(ids, l.SkillID)
		}
		var skills []database.Skill
		if err := h.db.WithContext(ctx).Order("name ASC").Find(&skills, ids).Error; err != nil {
			middleware.LoggerFromContext(c).Error("load linked skills failed", slog.Any("error", err))
			Internal(c, "internal error")
			return
		}
		for _, s := range skills {
			items = append(items, catalogItem{ID: s.ID, Name: s.Name, IsActive: s.IsActive})
		}
	}
	c.JSON(http.StatusOK, gin.H{"skills": items, "total": len(items)})
}
