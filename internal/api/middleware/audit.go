package middleware

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"traincomp/internal/database"
)

// AuditMiddleware 把有副作用的请求（POST/PUT/PATCH/DELETE）落库到 audit_logs。
// 写审计失败只记日志，绝不影响业务响应。
func AuditMiddleware(db *gorm.DB, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		switch c.Request.Method {
		case "POST", "PUT", "PATCH", "DELETE":
		default:
			return
		}

		entry := database.AuditLog{
			Action:     c.Request.Method + " " + routePath(c),
			Entity:     entityFromPath(routePath(c)),
			EntityID:   c.Param("id"),
			Method:     c.Request.Method,
			Path:       c.Request.URL.Path,
			StatusCode: c.Writer.Status(),
			IP:         c.ClientIP(),
			UserAgent:  c.Request.UserAgent(),
		}
		if id, ok := IdentityFromContext(c); ok {
			actorID := id.UserID
			entry.ActorID = &actorID
			entry.ActorName = actorName(c, db, actorID)
			if id.DepartmentID != 0 {
				deptID := id.DepartmentID
				entry.DepartmentID = &deptID
			}
		}
		if correlationID := GetCorrelationID(c); correlationID != "" {
			// 关联 ID 来自客户端请求头，必须走 JSON 编码
			meta, err := json.Marshal(map[string]string{"correlation_id": correlationID})
			if err == nil {
				entry.Meta = datatypes.JSON(meta)
			}
		}

		if err := db.WithContext(c.Request.Context()).Create(&entry).Error; err != nil {
			logger.Error("write audit log failed", slog.Any("error", err))
		}
	}
}

func actorName(c *gin.Context, db *gorm.DB, actorID uint) string {
	var name string
	err := db.WithContext(c.Request.Context()).
		Model(&database.User{}).
		Select("name").
		Where("id = ?", actorID).
		Scan(&name).Error
	if err != nil {
		return ""
	}
	return name
}

func routePath(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return c.Request.URL.Path
}

// entityFromPath 取路由中 /v1/ 之后的第一段作为实体名。
func entityFromPath(path string) string {
	path = strings.TrimPrefix(path, "/v1/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return path
}
