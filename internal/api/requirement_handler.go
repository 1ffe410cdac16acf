package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"traincomp/internal/api/middleware"
	"traincomp/internal/clock"
	"traincomp/internal/competency"
	"traincomp/internal/database"
)

// RequirementHandler 暴露物化培训需求的同步、查询与状态推进。
type RequirementHandler struct {
	syncer *competency.RequirementSyncer
	logger *slog.Logger
}

func NewRequirementHandler(db *gorm.DB, clk clock.Clock, logger *slog.Logger) *RequirementHandler {
	store := competency.NewGormStore(db)
	analyzer := competency.NewAnalyzer(store)
	return &RequirementHandler{
		syncer: competency.NewRequirementSyncer(db, analyzer, clk),
		logger: logger,
	}
}

type suggestedTrainingResponse struct {
	ID      uint   `json:"id"`
	Topic   string `json:"topic"`
	Date    string `json:"date"`
	Time    string `json:"time"`
	Trainer string `json:"trainer"`
	Status  string `json:"status"`
}

type requirementResponse struct {
	ID                uint                       `json:"id"`
	UserID            uint                       `json:"userId"`
	SkillID           uint                       `json:"skillId"`
	SkillName         string                     `json:"skillName,omitempty"`
	RequiredLevel     int                        `json:"requiredLevel"`
	CurrentLevel      int                        `json:"currentLevel"`
	Gap               int                        `json:"gap"`
	Priority          string                     `json:"priority"`
	Status            string                     `json:"status"`
	SuggestedTraining *suggestedTrainingResponse `json:"suggestedTraining"`
	SuggestedTopic    string                     `json:"suggestedTopic,omitempty"`
}

func toRequirementResponse(r *database.TrainingRequirement) requirementResponse {
	resp := requirementResponse{
		ID:             r.ID,
		UserID:         r.UserID,
		SkillID:        r.SkillID,
		SkillName:      r.Skill.Name,
		RequiredLevel:  r.RequiredLevel,
		CurrentLevel:   r.CurrentLevel,
		Gap:            r.Gap,
		Priority:       r.Priority,
		Status:         r.Status,
		SuggestedTopic: r.SuggestedTopic,
	}
	if r.SuggestedTraining != nil && r.SuggestedTraining.ID != 0 {
		resp.SuggestedTraining = &suggestedTrainingResponse{
			ID:      r.SuggestedTraining.ID,
			Topic:   r.SuggestedTraining.Topic,
			Date:    r.SuggestedTraining.Date,
			Time:    r.SuggestedTraining.Time,
			Trainer: r.SuggestedTraining.Trainer,
			Status:  r.SuggestedTraining.Status,
		}
	}
	return resp
}

func (h *RequirementHandler) targetUserID(c *gin.Context) (uint, bool) {
	id, ok := identityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return 0, false
	}
	userID, err := parseIDParam(c)
	if err != nil {
		BadRequest(c, "invalid user id")
		return 0, false
	}
	if id.Role == database.RoleEmployee && id.UserID != userID {
		Forbidden(c, "employees may only view their own data")
		return 0, false
	}
	return userID, true
}

// SyncUser POST /requirements/users/:id/sync
func (h *RequirementHandler) SyncUser(c *gin.Context) {
	userID, ok := h.targetUserID(c)
	if !ok {
		return
	}
	h.sync(c, userID)
}

// SyncMe POST /requirements/me/sync
func (h *RequirementHandler) SyncMe(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	h.sync(c, id.UserID)
}

func (h *RequirementHandler) sync(c *gin.Context, userID uint) {
	result, err := h.syncer.SyncForUser(c.Request.Context(), userID)
	if err != nil {
		h.replyError(c, err, "sync requirements")
		return
	}
	synced := make([]requirementResponse, 0, len(result.Synced))
	for i := range result.Synced {
		synced = append(synced, toRequirementResponse(&result.Synced[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"user":   result.User,
		"synced": synced,
		"closed": result.Closed,
	})
}

// ListForUser GET /requirements/users/:id?status=
func (h *RequirementHandler) ListForUser(c *gin.Context) {
	userID, ok := h.targetUserID(c)
	if !ok {
		return
	}
	h.list(c, userID)
}

// ListMine GET /requirements/me?status=
func (h *RequirementHandler) ListMine(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	h.list(c, id.UserID)
}

func (h *RequirementHandler) list(c *gin.Context, userID uint) {
	status := c.Query("status")
	if status != "" && !validRequirementStatus(status) {
		BadRequest(c, "invalid status filter")
		return
	}
	reqs, err := h.syncer.ListForUser(c.Request.Context(), userID, status)
	if err != nil {
		h.replyError(c, err, "list requirements")
		return
	}
	items := make([]requirementResponse, 0, len(reqs))
	for i := range reqs {
		items = append(items, toRequirementResponse(&reqs[i]))
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": len(items)})
}

type updateRequirementRequest struct {
	Status string `json:"status" binding:"required,oneof=OPEN IN_PROGRESS CLOSED"`
}

// UpdateStatus PATCH /requirements/:id
func (h *RequirementHandler) UpdateStatus(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		BadRequest(c, "invalid requirement id")
		return
	}
	var req updateRequirementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "status must be OPEN, IN_PROGRESS or CLOSED")
		return
	}
	updated, err := h.syncer.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		h.replyError(c, err, "update requirement status")
		return
	}
	c.JSON(http.StatusOK, toRequirementResponse(updated))
}

func validRequirementStatus(s string) bool {
	switch s {
	case database.RequirementOpen, database.RequirementInProgress, database.RequirementClosed:
		return true
	}
	return false
}

func (h *RequirementHandler) replyError(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, competency.ErrUserNotFound):
		NotFound(c, "user not found")
	case errors.Is(err, competency.ErrRequirementNotFound):
		NotFound(c, "requirement not found")
	default:
		middleware.LoggerFromContext(c).Error(op+" failed", slog.Any("error", err))
		Internal(c, "internal error")
	}
}
