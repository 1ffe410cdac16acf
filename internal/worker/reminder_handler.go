package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"traincomp/internal/clock"
	"traincomp/internal/database"
	"traincomp/internal/mailer"
	"traincomp/internal/training"
)

// ReminderHandler 处理周期性的培训提醒轮询。
// 幂等性依赖持久化的 MailSent 标志；并发轮询下标志为 last-write-wins，
// 极端情况下同一档提醒可能重复发送，属可接受的取舍。
type ReminderHandler struct {
	db     *gorm.DB
	mail   mailer.Mailer
	clock  clock.Clock
	logger *slog.Logger
}

func NewReminderHandler(db *gorm.DB, mail mailer.Mailer, clk clock.Clock, logger *slog.Logger) *ReminderHandler {
	return &ReminderHandler{db: db, mail: mail, clock: clk, logger: logger}
}

// ProcessTask 实现 asynq.Handler。扫描今天及以后的未完成培训，
// 按开训时间距离发送 24 小时档或 1 小时档提醒。
func (h *ReminderHandler) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	now := h.clock.Now()
	today := now.Format("2006-01-02")

	var trainings []database.Training
	err := h.db.WithContext(ctx).
		Where("date >= ? AND status = ? AND (mail_sent1_day_before = ? OR mail_sent1_hour_before = ?)",
			today, database.TrainingPending, false, false).
		Find(&trainings).Error
	if err != nil {
		return fmt.Errorf("query upcoming trainings: %w", err)
	}

	for _, t := range trainings {
		if err := h.remind(ctx, t, now); err != nil {
			// 单个培训失败不影响本轮其余培训。
			h.logger.Error("send training reminder failed",
				slog.Uint64("training_id", uint64(t.ID)),
				slog.Any("error", err),
			)
		}
	}
	return nil
}

func (h *ReminderHandler) remind(ctx context.Context, t database.Training, now time.Time) error {
	startAt, err := training.StartAt(t.Date, t.Time, now.Location())
	if err != nil {
		return err
	}

	due := training.DueReminder(startAt, now, t.MailSent1DayBefore, t.MailSent1HourBefore)
	if due == training.ReminderNone {
		return nil
	}

	window, flagColumn := "24 hours", "mail_sent1_day_before"
	if due == training.Reminder1Hour {
		window, flagColumn = "1 hour", "mail_sent1_hour_before"
	}

	if h.mail != nil {
		msg, err := h.buildReminderMail(ctx, t, window)
		if err != nil {
			return err
		}
		if err := h.mail.Send(ctx, msg); err != nil {
			return fmt.Errorf("send %s reminder: %w", window, err)
		}
	} else {
		h.logger.Info("mailer not configured, skipping reminder mail",
			slog.Uint64("training_id", uint64(t.ID)),
			slog.String("window", window),
		)
	}

	err = h.db.WithContext(ctx).
		Model(&database.Training{}).
		Where("id = ?", t.ID).
		Update(flagColumn, true).Error
	if err != nil {
		return fmt.Errorf("persist reminder flag: %w", err)
	}

	h.logger.Info("training reminder sent",
		slog.Uint64("training_id", uint64(t.ID)),
		slog.String("topic", t.Topic),
		slog.String("window", window),
	)
	return nil
}

// buildReminderMail 把受派员工解析成收件人列表并渲染正文。
func (h *ReminderHandler) buildReminderMail(ctx context.Context, t database.Training, window string) (mailer.Message, error) {
	empIDs := make([]string, 0, len(t.AssignedEmployees))
	for _, a := range t.AssignedEmployees {
		empIDs = append(empIDs, a.EmpID)
	}

	var recipients []mailer.Recipient
	if len(empIDs) > 0 {
		var users []database.User
		err := h.db.WithContext(ctx).
			Where("employee_id IN ? AND is_active = ?", empIDs, true).
			Find(&users).Error
		if err != nil {
			return mailer.Message{}, fmt.Errorf("resolve assignee emails: %w", err)
		}
		for _, u := range users {
			if u.Email == "" {
				continue
			}
			recipients = append(recipients, mailer.Recipient{Name: u.Name, Email: u.Email})
		}
	}

	details := mailer.TrainingDetails{
		Topic: t.Topic, Date: t.Date, Time: t.Time, Venue: t.Venue, Trainer: t.Trainer,
	}
	return mailer.Message{
		To:       recipients,
		Subject:  fmt.Sprintf("Reminder: %s (%s)", t.Topic, t.Date),
		HTMLBody: mailer.ReminderBody("Team Member", window, details),
	}, nil
}
