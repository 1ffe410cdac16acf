package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"traincomp/internal/api/middleware"
	"traincomp/internal/database"
)

// AuditHandler 只读查询审计日志（ADMIN/HR）。
type AuditHandler struct {
	db *gorm.DB
}

func NewAuditHandler(db *gorm.DB) *AuditHandler {
	return &AuditHandler{db: db}
}

// List GET /audit-logs?actor=&department=&entity=&page=&page_size=
func (h *AuditHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	q := h.db.WithContext(ctx).Model(&database.AuditLog{})

	if raw := c.Query("actor"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			BadRequest(c, "invalid actor filter")
			return
		}
		q = q.Where("actor_id = ?", uint(n))
	}
	if raw := c.Query("department"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			BadRequest(c, "invalid department filter")
			return
		}
		q = q.Where("department_id = ?", uint(n))
	}
	if entity := c.Query("entity"); entity != "" {
		q = q.Where("entity = ?", entity)
	}

	page := parseIntDefault(c.Query("page"), 1)
	pageSize := parseIntDefault(c.Query("page_size"), 50)
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		middleware.LoggerFromContext(c).Error("count audit logs failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	var items []database.AuditLog
	err := q.Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&items).Error
	if err != nil {
		middleware.LoggerFromContext(c).Error("list audit logs failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"logs":     items,
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
	})
}

func parseIntDefault(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
