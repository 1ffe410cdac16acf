package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"traincomp/internal/competency"
	"traincomp/internal/database"
	"traincomp/internal/errcode"
	"traincomp/internal/report"
	"traincomp/internal/storage"
	"traincomp/internal/tasks"
)

// ReportTaskHandler 负责消费报表生成任务。
type ReportTaskHandler struct {
	db          *gorm.DB
	storage     *storage.Client
	redisClient *redis.Client
	logger      *slog.Logger

	analyzer    *competency.Analyzer
	matrix      *competency.MatrixBuilder
	recommender *competency.Recommender
}

// NewReportTaskHandler 创建任务处理器。
func NewReportTaskHandler(db *gorm.DB, storageClient *storage.Client, redisClient *redis.Client, logger *slog.Logger) *ReportTaskHandler {
	store := competency.NewGormStore(db)
	analyzer := competency.NewAnalyzer(store)
	return &ReportTaskHandler{
		db:          db,
		storage:     storageClient,
		redisClient: redisClient,
		logger:      logger,
		analyzer:    analyzer,
		matrix:      competency.NewMatrixBuilder(store),
		recommender: competency.NewRecommender(store, analyzer),
	}
}

// ProcessTask 实现 asynq.Handler。
func (h *ReportTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	var payload tasks.ReportGeneratePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("unmarshal task payload failed", slog.Any("error", err))
		return err
	}

	log := h.logger.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Uint64("export_id", uint64(payload.ExportID)),
		slog.String("kind", payload.Kind),
	)
	log.Info("starting report generation task")

	var export database.ReportExport
	if err := h.db.WithContext(ctx).First(&export, payload.ExportID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("export row not found, skipping task")
			return nil
		}
		log.Error("query export failed", slog.Any("error", err))
		return err
	}

	defer func() {
		if retErr == nil || !isFinalAsynqAttempt(ctx) {
			return
		}
		h.failExport(ctx, log, &export, payload, errcode.SystemError, retErr.Error())
	}()

	artifact, err := h.buildArtifact(ctx, payload)
	if err != nil {
		// 业务上无数据可导出不重试，直接终态。
		if errors.Is(err, competency.ErrUserNotFound) || errors.Is(err, competency.ErrDepartmentNoUsers) {
			h.failExport(ctx, log, &export, payload, errcode.EmptyReport, err.Error())
			return nil
		}
		log.Error("build report failed", slog.Any("error", err))
		return err
	}

	objectKey := fmt.Sprintf("generated-reports/%d/%s%s",
		payload.RequestedBy, uuid.NewString(), path.Ext(artifact.Filename))
	reader := bytes.NewReader(artifact.Data)
	if _, err := h.storage.UploadFile(ctx, objectKey, reader, int64(len(artifact.Data)), artifact.ContentType); err != nil {
		log.Error("upload report to minio failed", slog.Any("error", err))
		return err
	}

	update := map[string]any{
		"status":     database.ExportCompleted,
		"object_key": objectKey,
		"error_msg":  "",
	}
	if err := h.db.WithContext(ctx).Model(&export).Updates(update).Error; err != nil {
		log.Error("update export failed", slog.Any("error", err))
		return err
	}

	notify := ReportNotifyMessage{
		Status:        "completed",
		ExportID:      export.ID,
		Kind:          payload.Kind,
		CorrelationID: payload.CorrelationID,
		ErrorCode:     errcode.OK,
	}
	if err := h.publishNotify(ctx, payload.RequestedBy, notify); err != nil {
		log.Error("publish redis notification failed", slog.Any("error", err))
		return err
	}

	log.Info("report generation task completed")
	return nil
}

func (h *ReportTaskHandler) buildArtifact(ctx context.Context, p tasks.ReportGeneratePayload) (*report.Artifact, error) {
	switch p.Kind {
	case tasks.ReportUserMatrix:
		matrix, err := h.matrix.UserMatrix(ctx, p.SubjectID)
		if err != nil {
			return nil, err
		}
		if p.Format == "pdf" {
			return report.UserMatrixPDF(matrix)
		}
		return report.UserMatrixXLSX(matrix)

	case tasks.ReportDepartmentGap:
		gap, err := h.analyzer.DepartmentGap(ctx, p.SubjectID)
		if err != nil {
			return nil, err
		}
		var dept database.Department
		if err := h.db.WithContext(ctx).First(&dept, p.SubjectID).Error; err != nil {
			return nil, fmt.Errorf("query department %d: %w", p.SubjectID, err)
		}
		return report.DepartmentGapXLSX(gap, dept.Name)

	case tasks.ReportRecommendations:
		recs, err := h.recommender.ForUser(ctx, p.SubjectID)
		if err != nil {
			return nil, err
		}
		return report.RecommendationsXLSX(recs)

	case tasks.ReportTrainingCompletion:
		var trainings []database.Training
		if err := h.db.WithContext(ctx).Order("date DESC").Find(&trainings).Error; err != nil {
			return nil, fmt.Errorf("query trainings: %w", err)
		}
		return report.TrainingCompletionXLSX(trainings)

	default:
		return nil, fmt.Errorf("unknown report kind %q", p.Kind)
	}
}

func (h *ReportTaskHandler) failExport(ctx context.Context, log *slog.Logger, export *database.ReportExport, p tasks.ReportGeneratePayload, code int, reason string) {
	update := map[string]any{
		"status":    database.ExportFailed,
		"error_msg": strings.TrimSpace(reason),
	}
	if err := h.db.WithContext(ctx).Model(export).Updates(update).Error; err != nil {
		log.Error("mark export failed errored", slog.Any("error", err))
	}
	notify := ReportNotifyMessage{
		Status:        "error",
		ExportID:      export.ID,
		Kind:          p.Kind,
		CorrelationID: p.CorrelationID,
		ErrorCode:     code,
		ErrorMessage:  strings.TrimSpace(reason),
	}
	if err := h.publishNotify(ctx, p.RequestedBy, notify); err != nil {
		log.Error("publish error notification failed", slog.Any("error", err))
	}
}

func (h *ReportTaskHandler) publishNotify(ctx context.Context, userID uint, notify ReportNotifyMessage) error {
	data, err := json.Marshal(notify)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	channel := fmt.Sprintf("user_notify:%d", userID)
	if err := h.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish redis notification to %q: %w", channel, err)
	}
	return nil
}

func isFinalAsynqAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return false
	}
	return retryCount >= maxRetry
}
