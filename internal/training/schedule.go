// Package training 封装培训排期的时间语义：
// 开始时间解析、提醒窗口判定与出勤锁定规则。
package training

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// 提醒窗口边界。24 小时提醒不与 1 小时提醒窗口重叠。
const (
	reminder24hUpper = 24 * time.Hour
	reminder24hLower = 75 * time.Minute
	reminder1hUpper  = time.Hour
)

var ErrBadTimeRange = errors.New("training: unparseable time range")

// 兼容 "09:00 - 11:00"、"9:00-11:00"、"09:00 AM - 11:00 AM" 几种历史写法。
var timeRangePattern = regexp.MustCompile(`^\s*(\d{1,2}):(\d{2})\s*(AM|PM|am|pm)?`)

// ParseStartTime 从 "HH:mm - HH:mm" 取开始时刻（只认破折号前半段）。
func ParseStartTime(timeRange string) (hour, minute int, err error) {
	m := timeRangePattern.FindStringSubmatch(timeRange)
	if m == nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadTimeRange, timeRange)
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	switch strings.ToUpper(m[3]) {
	case "PM":
		if hour < 12 {
			hour += 12
		}
	case "AM":
		if hour == 12 {
			hour = 0
		}
	}
	if hour > 23 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadTimeRange, timeRange)
	}
	return hour, minute, nil
}

// StartAt 把 "YYYY-MM-DD" 与时间段组合成该时区下的开始时刻。
// 时间段缺失或无法解析时按当天 00:00 处理，排期数据不因脏格式而丢提醒。
func StartAt(date, timeRange string, loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse training date %q: %w", date, err)
	}
	hour, minute, err := ParseStartTime(timeRange)
	if err != nil {
		return day, nil
	}
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute), nil
}

// EndAt 取时间段破折号后半段作为结束时刻。
// 后半段缺失或无法解析时按开始时刻加 1 小时兜底。
func EndAt(date, timeRange string, loc *time.Location) (time.Time, error) {
	start, err := StartAt(date, timeRange, loc)
	if err != nil {
		return time.Time{}, err
	}
	if _, tail, found := strings.Cut(timeRange, "-"); found {
		if hour, minute, err := ParseStartTime(tail); err == nil {
			day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
			end := day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
			if end.After(start) {
				return end, nil
			}
		}
	}
	return start.Add(time.Hour), nil
}

// Reminder 标识一次到期的提醒档位。
type Reminder int

const (
	ReminderNone Reminder = iota
	Reminder1Day
	Reminder1Hour
)

// DueReminder 判定当前时刻应发哪一档提醒。
// Δ = 开始时刻 - now：(75min, 24h] 发 1 天档，(0, 1h] 发 1 小时档。
// 中间的空档 (1h, 75min] 不发，避免两档在边界上同轮齐发。
// 已发送标志由调用方持久化，本函数只看时间窗口。
func DueReminder(startAt, now time.Time, sent1Day, sent1Hour bool) Reminder {
	delta := startAt.Sub(now)
	if delta <= 0 {
		return ReminderNone
	}
	if !sent1Hour && delta <= reminder1hUpper {
		return Reminder1Hour
	}
	if !sent1Day && delta > reminder24hLower && delta <= reminder24hUpper {
		return Reminder1Day
	}
	return ReminderNone
}

// AttendanceLocked 报告某日期的培训是否还不允许录入出勤。
// 两个参数都是 "YYYY-MM-DD"，字典序即时间序：未来日期锁定。
func AttendanceLocked(trainingDate, today string) bool {
	return trainingDate > today
}
