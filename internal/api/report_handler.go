package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"traincomp/internal/api/middleware"
	"traincomp/internal/database"
	"traincomp/internal/storage"
	"traincomp/internal/tasks"
)

// ReportHandler 负责异步报表：受理导出请求、查询进度、签发下载链接，
// 另带一个仪表盘汇总接口。
type ReportHandler struct {
	db          *gorm.DB
	asynqClient *asynq.Client
	storage     *storage.Client
	logger      *slog.Logger
}

func NewReportHandler(db *gorm.DB, asynqClient *asynq.Client, st *storage.Client, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{db: db, asynqClient: asynqClient, storage: st, logger: logger}
}

type reportKindInfo struct {
	Kind        string   `json:"kind"`
	Description string   `json:"description"`
	Formats     []string `json:"formats"`
	Subject     string   `json:"subject"` // user / department / none
}

var reportCatalog = []reportKindInfo{
	{tasks.ReportUserMatrix, "Skill matrix for a single employee", []string{"xlsx", "pdf"}, "user"},
	{tasks.ReportDepartmentGap, "Aggregated skill gaps for a department", []string{"xlsx"}, "department"},
	{tasks.ReportRecommendations, "Training recommendations for a single employee", []string{"xlsx"}, "user"},
	{tasks.ReportTrainingCompletion, "Attendance and completion across all trainings", []string{"xlsx"}, "none"},
}

// Catalog GET /reports/catalog — 前端用它渲染导出表单。
func (h *ReportHandler) Catalog(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"kinds": reportCatalog})
}

type createExportRequest struct {
	Kind      string `json:"kind" binding:"required"`
	Format    string `json:"format" binding:"required,oneof=xlsx pdf"`
	SubjectID uint   `json:"subjectId"`
}

type exportResponse struct {
	ID        uint   `json:"id"`
	Kind      string `json:"kind"`
	Format    string `json:"format"`
	Status    string `json:"status"`
	ErrorMsg  string `json:"errorMsg,omitempty"`
	CreatedAt string `json:"createdAt"`
}

func toExportResponse(e *database.ReportExport) exportResponse {
	return exportResponse{
		ID:        e.ID,
		Kind:      e.Kind,
		Format:    e.Format,
		Status:    e.Status,
		ErrorMsg:  e.ErrorMsg,
		CreatedAt: e.CreatedAt.Format(time.RFC3339),
	}
}

// CreateExport POST /reports/exports — 建导出记录并入队，立即返回 202。
func (h *ReportHandler) CreateExport(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var req createExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	var info *reportKindInfo
	for i := range reportCatalog {
		if reportCatalog[i].Kind == req.Kind {
			info = &reportCatalog[i]
			break
		}
	}
	if info == nil {
		BadRequest(c, "unknown report kind")
		return
	}
	if !containsString(info.Formats, req.Format) {
		BadRequest(c, "format not supported for this report kind")
		return
	}

	subjectID := req.SubjectID
	switch info.Subject {
	case "user":
		if subjectID == 0 {
			subjectID = id.UserID
		}
		if id.Role == database.RoleEmployee && subjectID != id.UserID {
			Forbidden(c, "employees may only export their own reports")
			return
		}
	case "department":
		if id.Role == database.RoleHOD {
			subjectID = id.DepartmentID
		}
		if subjectID == 0 {
			BadRequest(c, "subjectId is required for department reports")
			return
		}
	default:
		subjectID = 0
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)

	export := database.ReportExport{
		UserID: id.UserID,
		Kind:   req.Kind,
		Format: req.Format,
		Status: database.ExportPending,
	}
	if err := h.db.WithContext(ctx).Create(&export).Error; err != nil {
		logger.Error("create export record failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	task, err := tasks.NewReportGenerateTask(tasks.ReportGeneratePayload{
		ExportID:      export.ID,
		Kind:          req.Kind,
		Format:        req.Format,
		RequestedBy:   id.UserID,
		SubjectID:     subjectID,
		CorrelationID: middleware.GetCorrelationID(c),
	})
	if err != nil {
		logger.Error("build report task failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	reportInfo, err := h.asynqClient.Enqueue(task, asynq.MaxRetry(3), asynq.Timeout(5*time.Minute))
	if err != nil {
		// 入队失败就把记录标失败，别留悬空的 PENDING。
		h.db.WithContext(ctx).Model(&export).
			Updates(map[string]any{"status": database.ExportFailed, "error_msg": "enqueue failed"})
		logger.Error("enqueue report task failed", slog.Any("error", err))
		Internal(c, "failed to enqueue report generation")
		return
	}

	logger.Info("report export queued",
		slog.Uint64("export_id", uint64(export.ID)),
		slog.String("kind", req.Kind),
		slog.String("task_id", reportInfo.ID))
	c.JSON(http.StatusAccepted, toExportResponse(&export))
}

// ListExports GET /reports/exports — 当前用户的导出历史，新的在前。
func (h *ReportHandler) ListExports(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var items []database.ReportExport
	err := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", id.UserID).
		Order("id DESC").
		Limit(100).
		Find(&items).Error
	if err != nil {
		middleware.LoggerFromContext(c).Error("list exports failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	out := make([]exportResponse, 0, len(items))
	for i := range items {
		out = append(out, toExportResponse(&items[i]))
	}
	c.JSON(http.StatusOK, gin.H{"exports": out, "total": len(out)})
}

// DownloadLink GET /reports/exports/:id/download — 签发 15 分钟有效的预签名 URL。
func (h *ReportHandler) DownloadLink(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	exportID, err := parseIDParam(c)
	if err != nil {
		BadRequest(c, "invalid export id")
		return
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)

	var export database.ReportExport
	if err := h.db.WithContext(ctx).First(&export, exportID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "export not found")
			return
		}
		logger.Error("load export failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	if export.UserID != id.UserID && id.Role != database.RoleAdmin {
		Forbidden(c, "not your export")
		return
	}
	if export.Status != database.ExportCompleted || export.ObjectKey == "" {
		Conflict(c, "export is not ready")
		return
	}

	filename := export.Kind + "." + export.Format
	url, err := h.storage.GeneratePresignedURL(ctx, export.ObjectKey, filename, 15*time.Minute)
	if err != nil {
		if storage.IsNoSuchKey(err) {
			NotFound(c, "report file no longer exists")
			return
		}
		logger.Error("presign download failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url, "expiresIn": int((15 * time.Minute).Seconds())})
}

// Dashboard GET /reports/dashboard — 首页汇总数字。
func (h *ReportHandler) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)

	type counter struct {
		dest  *int64
		query *gorm.DB
	}
	var (
		activeUsers       int64
		departments       int64
		skills            int64
		pendingTrainings  int64
		completedTraining int64
	)
	counters := []counter{
		{&activeUsers, h.db.WithContext(ctx).Model(&database.User{}).Where("is_active = ?", true)},
		{&departments, h.db.WithContext(ctx).Model(&database.Department{}).Where("is_active = ?", true)},
		{&skills, h.db.WithContext(ctx).Model(&database.Skill{}).Where("is_active = ?", true)},
		{&pendingTrainings, h.db.WithContext(ctx).Model(&database.Training{}).Where("status = ?", database.TrainingPending)},
		{&completedTraining, h.db.WithContext(ctx).Model(&database.Training{}).Where("status = ?", database.TrainingCompleted)},
	}
	for _, cnt := range counters {
		if err := cnt.query.Count(cnt.dest).Error; err != nil {
			logger.Error("dashboard count failed", slog.Any("error", err))
			Internal(c, "internal error")
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"activeUsers":        activeUsers,
		"departments":        departments,
		"skills":             skills,
		"pendingTrainings":   pendingTrainings,
		"completedTrainings": completedTraining,
	})
}
