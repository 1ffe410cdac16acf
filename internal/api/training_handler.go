package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"traincomp/internal/api/middleware"
	"traincomp/internal/clock"
	"traincomp/internal/database"
	"traincomp/internal/mailer"
	"traincomp/internal/training"
)

// TrainingHandler 负责培训排期的增删改查、状态流转与出勤登记。
type TrainingHandler struct {
	db     *gorm.DB
	mail   mailer.Mailer // nil 表示邮件功能关闭
	clock  clock.Clock
	logger *slog.Logger
}

func NewTrainingHandler(db *gorm.DB, mail mailer.Mailer, clk clock.Clock, logger *slog.Logger) *TrainingHandler {
	return &TrainingHandler{db: db, mail: mail, clock: clk, logger: logger}
}

type trainingSkillInput struct {
	SkillID          uint `json:"skillId" binding:"required"`
	ImprovementLevel int  `json:"improvementLevel" binding:"required,min=1,max=4"`
}

type createTrainingRequest struct {
	Topic        string               `json:"topic" binding:"required"`
	TrainingType string               `json:"trainingType" binding:"omitempty,oneof=INTERNAL EXTERNAL"`
	Date         string               `json:"date" binding:"required"`
	Time         string               `json:"time" binding:"required"`
	Venue        string               `json:"venue"`
	Trainer      string               `json:"trainer"`
	Departments  []string             `json:"departments"`
	Skills       []trainingSkillInput `json:"skills"`
	AssigneeIDs  []uint               `json:"assigneeIds"`
}

type trainingResponse struct {
	ID                uint                        `json:"id"`
	Topic             string                      `json:"topic"`
	TrainingType      string                      `json:"trainingType"`
	Date              string                      `json:"date"`
	Time              string                      `json:"time"`
	Venue             string                      `json:"venue"`
	Trainer           string                      `json:"trainer"`
	Status            string                      `json:"status"`
	PostponeReason    string                      `json:"postponeReason,omitempty"`
	Departments       []string                    `json:"departments"`
	SkillNames        []string                    `json:"skillNames"`
	AssignedEmployees []database.TrainingAssignee `json:"assignedEmployees"`
	Attendees         []database.TrainingAttendee `json:"attendees"`
	StartAt           string                      `json:"startAt,omitempty"`
}

func toTrainingResponse(t *database.Training) trainingResponse {
	resp := trainingResponse{
		ID:                t.ID,
		Topic:             t.Topic,
		TrainingType:      t.TrainingType,
		Date:              t.Date,
		Time:              t.Time,
		Venue:             t.Venue,
		Trainer:           t.Trainer,
		Status:            t.Status,
		PostponeReason:    t.PostponeReason,
		Departments:       t.Departments,
		SkillNames:        t.SkillNames,
		AssignedEmployees: t.AssignedEmployees,
		Attendees:         t.Attendees,
	}
	if start, err := training.StartAt(t.Date, t.Time, time.UTC); err == nil {
		resp.StartAt = start.Format(time.RFC3339)
	}
	return resp
}

// Create 新建一次培训并一次性发送指派通知（MailSentOnCreate 防重发）。
func (h *TrainingHandler) Create(c *gin.Context) {
	var req createTrainingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		BadRequest(c, "date must be YYYY-MM-DD")
		return
	}
	if _, _, err := training.ParseStartTime(req.Time); err != nil {
		BadRequest(c, "time must start with HH:mm")
		return
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)

	trainingType := req.TrainingType
	if trainingType == "" {
		trainingType = "INTERNAL"
	}

	// 校验技能存在并冗余名称，列表接口就不用再 join。
	skillNames := make([]string, 0, len(req.Skills))
	for _, s := range req.Skills {
		var skill database.Skill
		if err := h.db.WithContext(ctx).First(&skill, s.SkillID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				BadRequest(c, "unknown skill id")
				return
			}
			logger.Error("load skill failed", slog.Any("error", err))
			Internal(c, "internal error")
			return
		}
		skillNames = append(skillNames, skill.Name)
	}

	assignees, attendees, recipients, err := h.resolveAssignees(c, req.AssigneeIDs)
	if err != nil {
		return // resolveAssignees 已写响应
	}

	t := database.Training{
		Topic:             req.Topic,
		TrainingType:      trainingType,
		Date:              req.Date,
		Time:              req.Time,
		Venue:             req.Venue,
		Trainer:           req.Trainer,
		Status:            database.TrainingPending,
		Departments:       datatypes.NewJSONSlice(req.Departments),
		SkillNames:        datatypes.NewJSONSlice(skillNames),
		AssignedEmployees: datatypes.NewJSONSlice(assignees),
		Attendees:         datatypes.NewJSONSlice(attendees),
	}

	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&t).Error; err != nil {
			return err
		}
		for _, s := range req.Skills {
			link := database.TrainingSkill{
				TrainingID:       t.ID,
				SkillID:          s.SkillID,
				ImprovementLevel: s.ImprovementLevel,
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.Error("create training failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	h.sendAssignmentMail(c, &t, recipients)

	c.JSON(http.StatusCreated, toTrainingResponse(&t))
}

// resolveAssignees 把员工 ID 列表展开成冗余的指派/出勤记录与邮件收件人。
// 出错时自行写响应并返回非 nil error。
func (h *TrainingHandler) resolveAssignees(c *gin.Context, ids []uint) ([]database.TrainingAssignee, []database.TrainingAttendee, []mailer.Recipient, error) {
	if len(ids) == 0 {
		return nil, nil, nil, nil
	}

	var users []database.User
	err := h.db.WithContext(c.Request.Context()).
		Preload("Department").
		Where("id IN ? AND is_active = ?", ids, true).
		Find(&users).Error
	if err != nil {
		middleware.LoggerFromContext(c).Error("load assignees failed", slog.Any("error", err))
		Internal(c, "internal error")
		return nil, nil, nil, err
	}
	if len(users) != len(ids) {
		BadRequest(c, "one or more assignees not found or inactive")
		return nil, nil, nil, errors.New("bad assignees")
	}

	assignees := make([]database.TrainingAssignee, 0, len(users))
	attendees := make([]database.TrainingAttendee, 0, len(users))
	recipients := make([]mailer.Recipient, 0, len(users))
	for _, u := range users {
		assignees = append(assignees, database.TrainingAssignee{
			EmpID: u.EmployeeID,
			Name:  u.Name,
			Dept:  u.Department.Name,
		})
		attendees = append(attendees, database.TrainingAttendee{
			EmpID:  u.EmployeeID,
			Name:   u.Name,
			Dept:   u.Department.Name,
			Status: database.AttendanceAbsent,
		})
		recipients = append(recipients, mailer.Recipient{Name: u.Name, Email: u.Email})
	}
	return assignees, attendees, recipients, nil
}

func (h *TrainingHandler) sendAssignmentMail(c *gin.Context, t *database.Training, recipients []mailer.Recipient) {
	if t.MailSentOnCreate || len(recipients) == 0 {
		return
	}
	logger := middleware.LoggerFromContext(c)
	if h.mail == nil {
		logger.Info("mail disabled, skipping assignment notification", slog.Uint64("training_id", uint64(t.ID)))
		return
	}

	details := mailer.TrainingDetails{
		Topic: t.Topic, Date: t.Date, Time: t.Time, Venue: t.Venue, Trainer: t.Trainer,
	}
	ctx := c.Request.Context()
	failed := false
	for _, r := range recipients {
		msg := mailer.Message{
			To:       []mailer.Recipient{r},
			Subject:  "Training Assigned: " + t.Topic,
			HTMLBody: mailer.AssignmentBody(r.Name, details),
		}
		if err := h.mail.Send(ctx, msg); err != nil {
			failed = true
			logger.Error("assignment mail failed",
				slog.Uint64("training_id", uint64(t.ID)),
				slog.String("email", r.Email),
				slog.Any("error", err))
		}
	}
	if failed {
		return // 标志留空，下次编辑/重发时还有机会
	}
	if err := h.db.WithContext(ctx).Model(t).Update("mail_sent_on_create", true).Error; err != nil {
		logger.Error("persist mail flag failed", slog.Any("error", err))
		return
	}
	t.MailSentOnCreate = true
}

// List 支持按状态、日期范围、部门过滤。
func (h *TrainingHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	q := h.db.WithContext(ctx).Model(&database.Training{})

	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	if from := c.Query("from"); from != "" {
		q = q.Where("date >= ?", from)
	}
	if to := c.Query("to"); to != "" {
		q = q.Where("date <= ?", to)
	}

	var items []database.Training
	if err := q.Order("date DESC, id DESC").Find(&items).Error; err != nil {
		middleware.LoggerFromContext(c).Error("list trainings failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	// 部门过滤落在 JSON 列上，直接在内存里筛。
	dept := c.Query("department")
	out := make([]trainingResponse, 0, len(items))
	for i := range items {
		if dept != "" && !containsString(items[i].Departments, dept) {
			continue
		}
		out = append(out, toTrainingResponse(&items[i]))
	}
	c.JSON(http.StatusOK, gin.H{"trainings": out, "total": len(out)})
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

func (h *TrainingHandler) Get(c *gin.Context) {
	t, ok := h.loadTraining(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toTrainingResponse(t))
}

type updateTrainingRequest struct {
	Topic   *string `json:"topic"`
	Date    *string `json:"date"`
	Time    *string `json:"time"`
	Venue   *string `json:"venue"`
	Trainer *string `json:"trainer"`
}

// Update 修改基本字段。改期会清掉两个提醒标志，让轮询器按新时间重发。
func (h *TrainingHandler) Update(c *gin.Context) {
	t, ok := h.loadTraining(c)
	if !ok {
		return
	}

	var req updateTrainingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	updates := map[string]any{}
	if req.Topic != nil {
		updates["topic"] = *req.Topic
	}
	if req.Date != nil {
		if _, err := time.Parse("2006-01-02", *req.Date); err != nil {
			BadRequest(c, "date must be YYYY-MM-DD")
			return
		}
		updates["date"] = *req.Date
	}
	if req.Time != nil {
		if _, _, err := training.ParseStartTime(*req.Time); err != nil {
			BadRequest(c, "time must start with HH:mm")
			return
		}
		updates["time"] = *req.Time
	}
	if req.Venue != nil {
		updates["venue"] = *req.Venue
	}
	if req.Trainer != nil {
		updates["trainer"] = *req.Trainer
	}
	if len(updates) == 0 {
		BadRequest(c, "nothing to update")
		return
	}
	if req.Date != nil || req.Time != nil {
		updates["mail_sent1_day_before"] = false
		updates["mail_sent1_hour_before"] = false
	}

	if err := h.db.WithContext(c.Request.Context()).Model(t).Updates(updates).Error; err != nil {
		middleware.LoggerFromContext(c).Error("update training failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	c.JSON(http.StatusOK, toTrainingResponse(t))
}

type statusChangeRequest struct {
	Reason string `json:"reason"`
}

// Postpone 把培训标记为延期，必须给出原因。
func (h *TrainingHandler) Postpone(c *gin.Context) {
	var req statusChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Reason == "" {
		BadRequest(c, "reason is required")
		return
	}
	h.transition(c, database.TrainingPostponed, map[string]any{
		"status":          database.TrainingPostponed,
		"postpone_reason": req.Reason,
		// 延期后的新时间另行编辑，提醒标志复位
		"mail_sent1_day_before":  false,
		"mail_sent1_hour_before": false,
	})
}

func (h *TrainingHandler) Cancel(c *gin.Context) {
	h.transition(c, database.TrainingCancelled, map[string]any{"status": database.TrainingCancelled})
}

func (h *TrainingHandler) Complete(c *gin.Context) {
	h.transition(c, database.TrainingCompleted, map[string]any{"status": database.TrainingCompleted})
}

func (h *TrainingHandler) transition(c *gin.Context, target string, updates map[string]any) {
	t, ok := h.loadTraining(c)
	if !ok {
		return
	}
	if t.Status == database.TrainingCancelled || t.Status == database.TrainingCompleted {
		Conflict(c, "training is already "+t.Status)
		return
	}
	if err := h.db.WithContext(c.Request.Context()).Model(t).Updates(updates).Error; err != nil {
		middleware.LoggerFromContext(c).Error("training transition failed",
			slog.String("target", target), slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	c.JSON(http.StatusOK, toTrainingResponse(t))
}

type attendanceRequest struct {
	Attendees []struct {
		EmpID  string `json:"empId" binding:"required"`
		Status string `json:"status" binding:"required,oneof=ATTENDED ABSENT"`
	} `json:"attendees" binding:"required,min=1"`
}

// UpdateAttendance 登记出勤。开课日期未到之前锁定。
func (h *TrainingHandler) UpdateAttendance(c *gin.Context) {
	t, ok := h.loadTraining(c)
	if !ok {
		return
	}

	today := h.clock.Now().Format("2006-01-02")
	if training.AttendanceLocked(t.Date, today) {
		BadRequest(c, "attendance can only be recorded on or after the training date")
		return
	}

	var req attendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	byEmp := map[string]string{}
	for _, a := range req.Attendees {
		byEmp[a.EmpID] = a.Status
	}

	attendees := []database.TrainingAttendee(t.Attendees)
	known := map[string]bool{}
	for i := range attendees {
		known[attendees[i].EmpID] = true
		if s, ok := byEmp[attendees[i].EmpID]; ok {
			attendees[i].Status = s
		}
	}
	for emp := range byEmp {
		if !known[emp] {
			BadRequest(c, "employee "+emp+" is not assigned to this training")
			return
		}
	}

	err := h.db.WithContext(c.Request.Context()).Model(t).
		Update("attendees", datatypes.NewJSONSlice(attendees)).Error
	if err != nil {
		middleware.LoggerFromContext(c).Error("update attendance failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	t.Attendees = datatypes.NewJSONSlice(attendees)
	c.JSON(http.StatusOK, toTrainingResponse(t))
}

// ListSkills 返回该培训关联的技能与提升等级。
func (h *TrainingHandler) ListSkills(c *gin.Context) {
	t, ok := h.loadTraining(c)
	if !ok {
		return
	}

	var links []database.TrainingSkill
	err := h.db.WithContext(c.Request.Context()).
		Preload("Skill").
		Where("training_id = ?", t.ID).
		Find(&links).Error
	if err != nil {
		middleware.LoggerFromContext(c).Error("list training skills failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	type skillLink struct {
		SkillID          uint   `json:"skillId"`
		Name             string `json:"name"`
		ImprovementLevel int    `json:"improvementLevel"`
	}
	out := make([]skillLink, 0, len(links))
	for _, l := range links {
		if l.Skill.ID == 0 {
			continue // 技能已被软删
		}
		out = append(out, skillLink{SkillID: l.SkillID, Name: l.Skill.Name, ImprovementLevel: l.ImprovementLevel})
	}
	c.JSON(http.StatusOK, gin.H{"skills": out, "total": len(out)})
}

type trainingEvent struct {
	ID     uint   `json:"id"`
	Topic  string `json:"topic"`
	Status string `json:"status"`
	Venue  string `json:"venue"`
	Start  string `json:"start"`
	End    string `json:"end"`
}

// Events 把排期投影成日历事件（ISO 起止时刻），供前端日历视图使用。
func (h *TrainingHandler) Events(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Model(&database.Training{}).
		Where("status <> ?", database.TrainingCancelled)
	if from := c.Query("from"); from != "" {
		q = q.Where("date >= ?", from)
	}
	if to := c.Query("to"); to != "" {
		q = q.Where("date <= ?", to)
	}

	var items []database.Training
	if err := q.Order("date ASC").Find(&items).Error; err != nil {
		middleware.LoggerFromContext(c).Error("list training events failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	out := make([]trainingEvent, 0, len(items))
	for i := range items {
		start, err := training.StartAt(items[i].Date, items[i].Time, time.UTC)
		if err != nil {
			continue // 日期字段损坏的行不进日历
		}
		end, err := training.EndAt(items[i].Date, items[i].Time, time.UTC)
		if err != nil {
			end = start.Add(time.Hour)
		}
		out = append(out, trainingEvent{
			ID:     items[i].ID,
			Topic:  items[i].Topic,
			Status: items[i].Status,
			Venue:  items[i].Venue,
			Start:  start.Format(time.RFC3339),
			End:    end.Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, gin.H{"events": out, "total": len(out)})
}

func (h *TrainingHandler) loadTraining(c *gin.Context) (*database.Training, bool) {
	id, err := parseIDParam(c)
	if err != nil {
		BadRequest(c, "invalid training id")
		return nil, false
	}
	var t database.Training
	if err := h.db.WithContext(c.Request.Context()).First(&t, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "training not found")
			return nil, false
		}
		middleware.LoggerFromContext(c).Error("load training failed", slog.Any("error", err))
		Internal(c, "internal error")
		return nil, false
	}
	return &t, true
}
