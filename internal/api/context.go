package api

import (
	"github.com/gin-gonic/gin"

	"traincomp/internal/api/middleware"
	"traincomp/internal/auth"
	"traincomp/internal/database"
)

// identityFromContext 取出认证中间件注入的身份；缺失说明路由未挂鉴权。
func identityFromContext(c *gin.Context) (auth.Identity, bool) {
	return middleware.IdentityFromContext(c)
}

// canManageLevels 报告该身份能否写目标部门的技能等级。
// ADMIN/HR 全局可写，HOD 仅限本部门。
func canManageLevels(id auth.Identity, departmentID uint) bool {
	switch id.Role {
	case database.RoleAdmin, database.RoleHR:
		return true
	case database.RoleHOD:
		return id.DepartmentID != 0 && id.DepartmentID == departmentID
	default:
		return false
	}
}

// scopeDepartment 返回该身份在列表查询时被强制限定的部门（0 表示不限定）。
func scopeDepartment(id auth.Identity, requested uint) uint {
	if id.Role == database.RoleHOD {
		return id.DepartmentID
	}
	return requested
}
