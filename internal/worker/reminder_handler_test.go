package worker

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"traincomp/internal/clock"
	"traincomp/internal/database"
	"traincomp/internal/mailer"
)

type fakeMailer struct {
	sent []mailer.Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg mailer.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func newReminderDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(database.AllModels()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedTraining(t *testing.T, db *gorm.DB, date, timeRange string) database.Training {
	t.Helper()
	tr := database.Training{
		Topic:  "Arc Welding Basics",
		Date:   date,
		Time:   timeRange,
		Venue:  "Hall A",
		Status: database.TrainingPending,
		AssignedEmployees: []database.TrainingAssignee{
			{EmpID: "E001", Name: "Asha"},
		},
	}
	if err := db.Create(&tr).Error; err != nil {
		t.Fatalf("seed training: %v", err)
	}
	user := database.User{
		Name: "Asha", Email: "asha@example.com", EmployeeID: "E001",
		Role: database.RoleEmployee, IsActive: true,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return tr
}

func TestReminderSends1DayMail(t *testing.T) {
	db := newReminderDB(t)
	// 开训时刻 2026-09-11 10:00；当前 2026-09-10 12:00 → Δ=22h。
	tr := seedTraining(t, db, "2026-09-11", "10:00 - 12:00")
	now := time.Date(2026, 9, 10, 12, 0, 0, 0, time.UTC)

	mail := &fakeMailer{}
	h := NewReminderHandler(db, mail, clock.Fixed{T: now}, slog.Default())

	if err := h.ProcessTask(context.Background(), nil); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}

	if len(mail.sent) != 1 {
		t.Fatalf("mails sent = %d, want 1", len(mail.sent))
	}
	msg := mail.sent[0]
	if len(msg.To) != 1 || msg.To[0].Email != "asha@example.com" {
		t.Errorf("recipients = %+v", msg.To)
	}

	var got database.Training
	if err := db.First(&got, tr.ID).Error; err != nil {
		t.Fatalf("reload training: %v", err)
	}
	if !got.MailSent1DayBefore {
		t.Errorf("1-day flag not persisted")
	}
	if got.MailSent1HourBefore {
		t.Errorf("1-hour flag must stay false")
	}

	// 同一时刻再跑一轮：标志已置位，不得重复发送。
	if err := h.ProcessTask(context.Background(), nil); err != nil {
		t.Fatalf("second ProcessTask: %v", err)
	}
	if len(mail.sent) != 1 {
		t.Errorf("reminder re-sent despite persisted flag")
	}
}

func TestReminderSends1HourMail(t *testing.T) {
	db := newReminderDB(t)
	tr := seedTraining(t, db, "2026-09-10", "10:00 - 12:00")
	now := time.Date(2026, 9, 10, 9, 30, 0, 0, time.UTC)

	mail := &fakeMailer{}
	h := NewReminderHandler(db, mail, clock.Fixed{T: now}, slog.Default())

	if err := h.ProcessTask(context.Background(), nil); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}
	if len(mail.sent) != 1 {
		t.Fatalf("mails sent = %d, want 1", len(mail.sent))
	}

	var got database.Training
	if err := db.First(&got, tr.ID).Error; err != nil {
		t.Fatalf("reload training: %v", err)
	}
	if !got.MailSent1HourBefore {
		t.Errorf("1-hour flag not persisted")
	}
}

func TestReminderOutsideWindows(t *testing.T) {
	db := newReminderDB(t)
	seedTraining(t, db, "2026-09-20", "10:00 - 12:00") // 远在未来
	now := time.Date(2026, 9, 10, 9, 0, 0, 0, time.UTC)

	mail := &fakeMailer{}
	h := NewReminderHandler(db, mail, clock.Fixed{T: now}, slog.Default())

	if err := h.ProcessTask(context.Background(), nil); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}
	if len(mail.sent) != 0 {
		t.Errorf("mails sent = %d, want 0", len(mail.sent))
	}
}

func TestReminderMailFailureKeepsFlagUnset(t *testing.T) {
	db := newReminderDB(t)
	tr := seedTraining(t, db, "2026-09-10", "10:00 - 12:00")
	now := time.Date(2026, 9, 10, 9, 30, 0, 0, time.UTC)

	mail := &fakeMailer{err: context.DeadlineExceeded}
	h := NewReminderHandler(db, mail, clock.Fixed{T: now}, slog.Default())

	// 发送失败只记日志，下一轮还会重试。
	if err := h.ProcessTask(context.Background(), nil); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}

	var got database.Training
	if err := db.First(&got, tr.ID).Error; err != nil {
		t.Fatalf("reload training: %v", err)
	}
	if got.MailSent1HourBefore {
		t.Errorf("flag must stay unset when mail fails")
	}
}
