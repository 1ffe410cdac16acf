package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"traincomp/internal/api/middleware"
	"traincomp/internal/database"
)

// CatalogHandler 统一处理三类"名称目录"实体：部门、岗位、技能。
// 它们的形状完全一致（唯一名称 + IsActive + 软删除），共用一套 CRUD。
type CatalogHandler struct {
	db *gorm.DB
}

func NewCatalogHandler(db *gorm.DB) *CatalogHandler {
	return &CatalogHandler{db: db}
}

type catalogItem struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"isActive"`
}

type catalogRequest struct {
	Name     string `json:"name" binding:"required,max=128"`
	IsActive *bool  `json:"isActive"`
}

// newCatalogModel 按实体名返回一个空模型指针。
func newCatalogModel(entity string) (any, bool) {
	switch entity {
	case "departments":
		return &database.Department{}, true
	case "designations":
		return &database.Designation{}, true
	case "skills":
		return &database.Skill{}, true
	default:
		return nil, false
	}
}

func catalogFields(model any) (id uint, name string, isActive bool) {
	switch m := model.(type) {
	case *database.Department:
		return m.ID, m.Name, m.IsActive
	case *database.Designation:
		return m.ID, m.Name, m.IsActive
	case *database.Skill:
		return m.ID, m.Name, m.IsActive
	}
	return 0, "", false
}

func setCatalogFields(model any, name string, isActive bool) {
	switch m := model.(type) {
	case *database.Department:
		m.Name, m.IsActive = name, isActive
	case *database.Designation:
		m.Name, m.IsActive = name, isActive
	case *database.Skill:
		m.Name, m.IsActive = name, isActive
	}
}

// List 列出目录项，默认只含存活且启用的行。
func (h *CatalogHandler) List(entity string) gin.HandlerFunc {
	return func(c *gin.Context) {
		model, ok := newCatalogModel(entity)
		if !ok {
			NotFound(c, "unknown catalog")
			return
		}

		q := h.db.WithContext(c.Request.Context()).Model(model).Order("name ASC")
		if !parseBoolDefault(c.Query("include_inactive"), false) {
			q = q.Where("is_active = ?", true)
		}

		var items []catalogItem
		if err := q.Select("id", "name", "is_active").Find(&items).Error; err != nil {
			middleware.LoggerFromContext(c).Error("list catalog failed",
				slog.String("entity", entity), slog.Any("error", err))
			Internal(c, "internal error")
			return
		}
		if items == nil {
			items = []catalogItem{}
		}
		c.JSON(http.StatusOK, gin.H{"items": items, "total": len(items)})
	}
}

// Create 新建目录项，名称冲突返回 409。
func (h *CatalogHandler) Create(entity string) gin.HandlerFunc {
	return func(c *gin.Context) {
		model, ok := newCatalogModel(entity)
		if !ok {
			NotFound(c, "unknown catalog")
			return
		}

		var req catalogRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			BadRequest(c, err.Error())
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			BadRequest(c, "name is required")
			return
		}
		active := true
		if req.IsActive != nil {
			active = *req.IsActive
		}

		ctx := c.Request.Context()
		existing, _ := newCatalogModel(entity)
		err := h.db.WithContext(ctx).Where("name = ?", name).First(existing).Error
		if err == nil {
			Conflict(c, "name already taken")
			return
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			middleware.LoggerFromContext(c).Error("catalog lookup failed", slog.Any("error", err))
			Internal(c, "internal error")
			return
		}

		setCatalogFields(model, name, active)
		if err := h.db.WithContext(ctx).Create(model).Error; err != nil {
			middleware.LoggerFromContext(c).Error("create catalog item failed",
				slog.String("entity", entity), slog.Any("error", err))
			Internal(c, "internal error")
			return
		}

		id, createdName, createdActive := catalogFields(model)
		c.JSON(http.StatusCreated, catalogItem{ID: id, Name: createdName, IsActive: createdActive})
	}
}

// Update 重命名或启停目录项。
func (h *CatalogHandler) Update(entity string) gin.HandlerFunc {
	return func(c *gin.Context) {
		model, ok := newCatalogModel(entity)
		if !ok {
			NotFound(c, "unknown catalog")
			return
		}
		id, err := parseIDParam(c)
		if err != nil {
			BadRequest(c, "invalid id")
			return
		}

		var req catalogRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			BadRequest(c, err.Error())
			return
		}

		ctx := c.Request.Context()
		if err := h.db.WithContext(ctx).First(model, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				NotFound(c, "not found")
				return
			}
			middleware.LoggerFromContext(c).Error("load catalog item failed", slog.Any("error", err))
			Internal(c, "internal error")
			return
		}

		updates := map[string]any{"name": strings.TrimSpace(req.Name)}
		if req.IsActive != nil {
			updates["is_active"] = *req.IsActive
		}
		if err := h.db.WithContext(ctx).Model(model).Updates(updates).Error; err != nil {
			middleware.LoggerFromContext(c).Error("update catalog item failed", slog.Any("error", err))
			Internal(c, "internal error")
			return
		}

		itemID, name, active := catalogFields(model)
		c.JSON(http.StatusOK, catalogItem{ID: itemID, Name: name, IsActive: active})
	}
}

// Delete 软删除目录项。被删的技能自动从所有矩阵/差距结果中消失。
func (h *CatalogHandler) Delete(entity string) gin.HandlerFunc {
	return func(c *gin.Context) {
		model, ok := newCatalogModel(entity)
		if !ok {
			NotFound(c, "unknown catalog")
			return
		}
		id, err := parseIDParam(c)
		if err != nil {
			BadRequest(c, "invalid id")
			return
		}

		result := h.db.WithContext(c.Request.Context()).Delete(model, id)
		if result.Error != nil {
			middleware.LoggerFromContext(c).Error("delete catalog item failed", slog.Any("error", result.Error))
			Internal(c, "internal error")
			return
		}
		if result.RowsAffected == 0 {
			NotFound(c, "not found")
			return
		}
		c.Status(http.StatusNoContent)
	}
}
