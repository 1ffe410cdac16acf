package training

import (
	"errors"
	"testing"
	"time"
)

func TestParseStartTime(t *testing.T) {
	cases := []struct {
		in           string
		hour, minute int
	}{
		{"09:00 - 11:00", 9, 0},
		{"9:30-10:30", 9, 30},
		{"02:00 PM - 04:00 PM", 14, 0},
		{"12:15 am - 01:00 am", 0, 15},
		{"12:00 PM - 01:00 PM", 12, 0},
		{"23:45 - 23:59", 23, 45},
	}
	for _, tc := range cases {
		h, m, err := ParseStartTime(tc.in)
		if err != nil {
			t.Errorf("ParseStartTime(%q): %v", tc.in, err)
			continue
		}
		if h != tc.hour || m != tc.minute {
			t.Errorf("ParseStartTime(%q) = %02d:%02d, want %02d:%02d", tc.in, h, m, tc.hour, tc.minute)
		}
	}

	for _, bad := range []string{"", "morning", "25:00 - 26:00", "10:75 - 11:00"} {
		if _, _, err := ParseStartTime(bad); !errors.Is(err, ErrBadTimeRange) {
			t.Errorf("ParseStartTime(%q) err = %v, want ErrBadTimeRange", bad, err)
		}
	}
}

func TestStartAt(t *testing.T) {
	loc := time.UTC

	at, err := StartAt("2026-09-10", "09:30 - 11:00", loc)
	if err != nil {
		t.Fatalf("StartAt: %v", err)
	}
	want := time.Date(2026, 9, 10, 9, 30, 0, 0, loc)
	if !at.Equal(want) {
		t.Errorf("StartAt = %v, want %v", at, want)
	}

	// 脏时间段退化为当天零点，而不是报错。
	at, err = StartAt("2026-09-10", "tbd", loc)
	if err != nil {
		t.Fatalf("StartAt with bad range: %v", err)
	}
	if !at.Equal(time.Date(2026, 9, 10, 0, 0, 0, 0, loc)) {
		t.Errorf("StartAt with bad range = %v, want midnight", at)
	}

	if _, err := StartAt("10/09/2026", "09:00 - 10:00", loc); err == nil {
		t.Errorf("bad date accepted")
	}
}

func TestDueReminder(t *testing.T) {
	start := time.Date(2026, 9, 10, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		name      string
		now       time.Time
		sent1Day  bool
		sent1Hour bool
		want      Reminder
	}{
		{"23h out", start.Add(-23 * time.Hour), false, false, Reminder1Day},
		{"exactly 24h out", start.Add(-24 * time.Hour), false, false, Reminder1Day},
		{"25h out, too early", start.Add(-25 * time.Hour), false, false, ReminderNone},
		{"dead zone 70min", start.Add(-70 * time.Minute), false, false, ReminderNone},
		{"30min out", start.Add(-30 * time.Minute), false, false, Reminder1Hour},
		{"exactly 1h out", start.Add(-time.Hour), false, false, Reminder1Hour},
		{"already started", start.Add(time.Minute), false, false, ReminderNone},
		{"1day already sent", start.Add(-23 * time.Hour), true, false, ReminderNone},
		{"1hour already sent", start.Add(-30 * time.Minute), false, true, ReminderNone},
		{"1hour wins even if 1day unsent", start.Add(-30 * time.Minute), false, false, Reminder1Hour},
	}
	for _, tc := range cases {
		if got := DueReminder(start, tc.now, tc.sent1Day, tc.sent1Hour); got != tc.want {
			t.Errorf("%s: DueReminder = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestAttendanceLocked(t *testing.T) {
	today := "2026-08-28"
	if !AttendanceLocked("2026-08-29", today) {
		t.Errorf("tomorrow must be locked")
	}
	if AttendanceLocked("2026-08-28", today) {
		t.Errorf("today must be open")
	}
	if AttendanceLocked("2026-08-27", today) {
		t.Errorf("yesterday must be open")
	}
}

func TestEndAt(t *testing.T) {
	cases := []struct {
		name      string
		timeRange string
		wantHour  int
		wantMin   int
	}{
		{"plain range", "09:00 - 11:30", 11, 30},
		{"pm suffix", "01:00 PM - 03:15 PM", 15, 15},
		{"missing tail falls back to start+1h", "09:00", 10, 0},
		{"end before start falls back", "09:00 - 08:00", 10, 0},
	}
	for _, tc := range cases {
		got, err := EndAt("2026-03-12", tc.timeRange, time.UTC)
		if err != nil {
			t.Fatalf("%s: EndAt: %v", tc.name, err)
		}
		if got.Hour() != tc.wantHour || got.Minute() != tc.wantMin {
			t.Errorf("%s: EndAt = %02d:%02d, want %02d:%02d",
				tc.name, got.Hour(), got.Minute(), tc.wantHour, tc.wantMin)
		}
	}

	if _, err := EndAt("not-a-date", "09:00 - 11:00", time.UTC); err == nil {
		t.Errorf("bad date must error")
	}
}
