// Package competency 实现技能差距、技能矩阵与培训推荐三类只读聚合计算。
// 所有计算都是给定输入下的纯函数：读取快照、内存归并、返回结果，不写任何状态。
package competency

import (
	"errors"
	"math"
)

// 等级取值范围。CurrentLevel 与 RequiredLevel（设定时）都必须落在其中。
const (
	MinLevel = 0
	MaxLevel = 4
)

// ValidLevel 判断等级是否在 [0,4] 内。
func ValidLevel(n int) bool {
	return n >= MinLevel && n <= MaxLevel
}

// Priority 表示差距条目的优先级档位。
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// PriorityForLevel 按员工"当前等级"归档优先级，全系统只用这一条规则：
// 当前等级 <=1 为 HIGH，==2 为 MEDIUM，>=3 为 LOW。
func PriorityForLevel(currentLevel int) Priority {
	switch {
	case currentLevel <= 1:
		return PriorityHigh
	case currentLevel == 2:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// DepartmentPriority 由受影响员工的平均当前等级推导部门级优先级。
func DepartmentPriority(avgCurrentLevel float64) Priority {
	switch {
	case avgCurrentLevel < 2:
		return PriorityHigh
	case avgCurrentLevel < 3:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	default:
		return 1
	}
}

// Higher 返回两个优先级中更紧急的一个。
func Higher(a, b Priority) Priority {
	if a.rank() >= b.rank() {
		return a
	}
	return b
}

// 领域错误。调用方用 errors.Is 区分 "请求无效" 与 "系统不可用"：
// 这里的哨兵都是终态业务错误；Store 返回的其它错误视为基础设施故障，
// 原样向上传递（包装后仍可 Unwrap）。
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrDepartmentNoUsers   = errors.New("no active users in department")
	ErrRequirementNotFound = errors.New("training requirement not found")
)

// UserInfo 是聚合结果头部的员工摘要。
type UserInfo struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	EmployeeID  string `json:"employeeId"`
	Email       string `json:"email,omitempty"`
	Department  string `json:"department,omitempty"`
	Designation string `json:"designation,omitempty"`
}

// SkillRef 是去除软删行之后的技能引用。能出现在这里的技能一定仍然存在。
type SkillRef struct {
	ID   uint
	Name string
}

// LevelRecord 表示某员工在某技能上的等级快照。
// Required 为 nil 表示 HR 尚未设定目标等级，该技能不参与差距/矩阵计算。
type LevelRecord struct {
	Current  int
	Required *int
}

// TrainingRef 是推荐结果里引用的培训。
type TrainingRef struct {
	ID    uint
	Topic string
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
