package clock

import "time"

// Clock 抽象"当前时间"，让提醒窗口与考勤锁定逻辑可在测试中注入固定时间。
type Clock interface {
	Now() time.Time
}

// System 使用真实的墙钟。
type System struct{}

func (System) Now() time.Time { return time.Now() }

// Fixed 返回固定时间点，仅用于测试。
type Fixed struct {
	T time.Time
}

func (f Fixed) Now() time.Time { return f.T }
