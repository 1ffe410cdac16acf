package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"traincomp/internal/api/middleware"
	"traincomp/internal/competency"
	"traincomp/internal/database"
)

// CompetencyHandler 暴露差距分析、技能矩阵与培训推荐的同步查询。
// 计算本身在 competency 包里，这里只做鉴权、参数解析与错误翻译。
type CompetencyHandler struct {
	analyzer    *competency.Analyzer
	matrix      *competency.MatrixBuilder
	recommender *competency.Recommender
	logger      *slog.Logger
}

func NewCompetencyHandler(db *gorm.DB, logger *slog.Logger) *CompetencyHandler {
	store := competency.NewGormStore(db)
	analyzer := competency.NewAnalyzer(store)
	return &CompetencyHandler{
		analyzer:    analyzer,
		matrix:      competency.NewMatrixBuilder(store),
		recommender: competency.NewRecommender(store, analyzer),
		logger:      logger,
	}
}

func (h *CompetencyHandler) targetUserID(c *gin.Context) (uint, bool) {
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
	// 员工只能看自己的画像；HOD 的部门限制在数据层无法提前判断，
	// 读到用户后不匹配按 403 处理。
	if id.Role == database.RoleEmployee && id.UserID != userID {
		Forbidden(c, "employees may only view their own data")
		return 0, false
	}
	return userID, true
}

// UserGap GET /competency/users/:id/gap
func (h *CompetencyHandler) UserGap(c *gin.Context) {
	userID, ok := h.targetUserID(c)
	if !ok {
		return
	}
	report, err := h.analyzer.UserGap(c.Request.Context(), userID)
	if err != nil {
		h.replyError(c, err, "compute user gap")
		return
	}
	c.JSON(http.StatusOK, report)
}

// DepartmentGap GET /competency/departments/:id/gap
func (h *CompetencyHandler) DepartmentGap(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	deptID, err := parseIDParam(c)
	if err != nil {
		BadRequest(c, "invalid department id")
		return
	}
	if id.Role == database.RoleHOD && id.DepartmentID != deptID {
		Forbidden(c, "department outside your scope")
		return
	}

	report, err := h.analyzer.DepartmentGap(c.Request.Context(), deptID)
	if err != nil {
		h.replyError(c, err, "compute department gap")
		return
	}
	c.JSON(http.StatusOK, report)
}

// UserMatrix GET /competency/users/:id/matrix
func (h *CompetencyHandler) UserMatrix(c *gin.Context) {
	userID, ok := h.targetUserID(c)
	if !ok {
		return
	}
	m, err := h.matrix.UserMatrix(c.Request.Context(), userID)
	if err != nil {
		h.replyError(c, err, "build user matrix")
		return
	}
	c.JSON(http.StatusOK, m)
}

// OrgMatrix GET /competency/matrix?department=&designation=&q=
func (h *CompetencyHandler) OrgMatrix(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	filter := competency.UserFilter{Query: c.Query("q")}
	if raw := c.Query("department"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			BadRequest(c, "invalid department filter")
			return
		}
		filter.DepartmentID = uint(n)
	}
	if raw := c.Query("designation"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			BadRequest(c, "invalid designation filter")
			return
		}
		filter.DesignationID = uint(n)
	}
	// HOD 固定限定本部门
	filter.DepartmentID = scopeDepartment(id, filter.DepartmentID)

	m, err := h.matrix.OrgMatrix(c.Request.Context(), filter)
	if err != nil {
		h.replyError(c, err, "build org matrix")
		return
	}
	c.JSON(http.StatusOK, m)
}

// Recommendations GET /competency/users/:id/recommendations
func (h *CompetencyHandler) Recommendations(c *gin.Context) {
	userID, ok := h.targetUserID(c)
	if !ok {
		return
	}
	report, err := h.recommender.ForUser(c.Request.Context(), userID)
	if err != nil {
		h.replyError(c, err, "build recommendations")
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *CompetencyHandler) replyError(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, competency.ErrUserNotFound):
		NotFound(c, "user not found")
	case errors.Is(err, competency.ErrDepartmentNoUsers):
		NotFound(c, "department has no active members")
	default:
		middleware.LoggerFromContext(c).Error(op+" failed", slog.Any("error", err))
		Internal(c, "internal error")
	}
}
