package database

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 角色常量。JWT 中携带角色与部门，RBAC 中间件据此放行。
const (
	RoleAdmin    = "ADMIN"
	RoleHR       = "HR"
	RoleHOD      = "HOD"
	RoleEmployee = "EMPLOYEE"
)

// 培训状态常量。
const (
	TrainingPending   = "PENDING"
	TrainingCompleted = "COMPLETED"
	TrainingPostponed = "POSTPONED"
	TrainingCancelled = "CANCELLED"
)

// 出勤状态常量。
const (
	AttendanceAttended = "ATTENDED"
	AttendanceAbsent   = "ABSENT"
)

// 报表导出状态常量。
const (
	ExportPending   = "PENDING"
	ExportCompleted = "COMPLETED"
	ExportFailed    = "FAILED"
)

// 培训需求状态常量。
const (
	RequirementOpen       = "OPEN"
	RequirementInProgress = "IN_PROGRESS"
	RequirementClosed     = "CLOSED"
)

// User 表示一名员工账号。部门与岗位为多对一关系。
type User struct {
	gorm.Model
	Name          string `gorm:"size:128"`
	Email         string `gorm:"uniqueIndex;size:255"`
	EmployeeID    string `gorm:"uniqueIndex;size:64"`
	Mobile        string `gorm:"size:32"`
	PasswordHash  string `gorm:"size:255"`
	Role          string `gorm:"size:16;default:EMPLOYEE"`
	EmployeeType  string `gorm:"size:16"`
	DateOfJoining string `gorm:"size:10"` // YYYY-MM-DD
	IsActive      bool   `gorm:"default:true"`

	DepartmentID  uint        `gorm:"index"`
	Department    Department  `gorm:"constraint:OnDelete:RESTRICT"`
	DesignationID uint        `gorm:"index"`
	Designation   Designation `gorm:"constraint:OnDelete:RESTRICT"`
}

// Department 支持软删除：删除后通过 DeletedAt 过滤，不再出现在任何查询中。
type Department struct {
	gorm.Model
	Name     string `gorm:"uniqueIndex;size:128"`
	IsActive bool   `gorm:"default:true"`
}

// Designation 表示岗位（职级）。岗位关联的技能集决定员工的候选技能列表。
type Designation struct {
	gorm.Model
	Name     string `gorm:"uniqueIndex;size:128"`
	IsActive bool   `gorm:"default:true"`
}

// Skill 表示一项独立的技能/胜任力，支持软删除。
type Skill struct {
	gorm.Model
	Name     string `gorm:"uniqueIndex;size:128"`
	IsActive bool   `gorm:"default:true"`
}

// DesignationSkill 把技能挂到岗位上，只用于圈定候选技能集；
// 实际的目标等级以 UserSkillLevel.RequiredLevel 为准（按人设定）。
type DesignationSkill struct {
	gorm.Model
	DesignationID uint        `gorm:"uniqueIndex:idx_designation_skill"`
	Designation   Designation `gorm:"constraint:OnDelete:CASCADE"`
	SkillID       uint        `gorm:"uniqueIndex:idx_designation_skill"`
	Skill         Skill       `gorm:"constraint:OnDelete:CASCADE"`
}

// UserSkillLevel 是 (员工, 技能) 的权威等级记录。
// CurrentLevel 始终存在（0–4）；RequiredLevel 可空，未设定表示该技能
// 尚未纳入差距评估，绝不默认为 0。
type UserSkillLevel struct {
	gorm.Model
	UserID        uint  `gorm:"uniqueIndex:idx_user_skill"`
	User          User  `gorm:"constraint:OnDelete:CASCADE"`
	SkillID       uint  `gorm:"uniqueIndex:idx_user_skill"`
	Skill         Skill `gorm:"constraint:OnDelete:CASCADE"`
	CurrentLevel  int
	RequiredLevel *int
}

// TrainingAssignee 描述被指派参训的员工（冗余姓名/部门便于展示）。
type TrainingAssignee struct {
	EmpID string `json:"empId"`
	Name  string `json:"name"`
	Dept  string `json:"dept"`
}

// TrainingAttendee 在 Assignee 基础上追加出勤状态。
type TrainingAttendee struct {
	EmpID  string `json:"empId"`
	Name   string `json:"name"`
	Dept   string `json:"dept"`
	Status string `json:"status"` // ATTENDED / ABSENT
}

// Training 表示一次培训排期。
// 三个 MailSent 标志保证创建通知与提醒各只发送一次（跨轮询幂等）。
type Training struct {
	gorm.Model
	Topic          string `gorm:"size:255"`
	TrainingType   string `gorm:"size:16;default:INTERNAL"`
	Date           string `gorm:"size:10;index"` // YYYY-MM-DD，字典序即时间序
	Time           string `gorm:"size:32"`       // "HH:mm - HH:mm"
	Venue          string `gorm:"size:255"`
	Trainer        string `gorm:"size:128"`
	Status         string `gorm:"size:16;default:PENDING"`
	PostponeReason string `gorm:"size:512"`

	Departments       datatypes.JSONSlice[string]
	SkillNames        datatypes.JSONSlice[string]
	AssignedEmployees datatypes.JSONSlice[TrainingAssignee]
	Attendees         datatypes.JSONSlice[TrainingAttendee]

	MailSentOnCreate    bool `gorm:"default:false"`
	MailSent1DayBefore  bool `gorm:"default:false"`
	MailSent1HourBefore bool `gorm:"default:false"`
}

// TrainingSkill 记录一次培训能提升哪些技能（多对多）。
type TrainingSkill struct {
	gorm.Model
	TrainingID       uint     `gorm:"uniqueIndex:idx_training_skill"`
	Training         Training `gorm:"constraint:OnDelete:CASCADE"`
	SkillID          uint     `gorm:"uniqueIndex:idx_training_skill"`
	Skill            Skill    `gorm:"constraint:OnDelete:CASCADE"`
	ImprovementLevel int      // 1–4
}

// TrainingRequirement 是由差距分析物化出来的一条培训需求。
// 同一 (user, skill) 最多存在一条活跃行（OPEN/IN_PROGRESS），
// 差距消失后转为 CLOSED，由同步器维护，不靠数据库约束。
type TrainingRequirement struct {
	gorm.Model
	UserID  uint  `gorm:"index"`
	User    User  `gorm:"constraint:OnDelete:CASCADE"`
	SkillID uint  `gorm:"index"`
	Skill   Skill `gorm:"constraint:OnDelete:CASCADE"`

	RequiredLevel int
	CurrentLevel  int
	Gap           int
	Priority      string `gorm:"size:10"`
	Status        string `gorm:"size:20;default:OPEN;index"`

	SuggestedTrainingID *uint
	SuggestedTraining   *Training `gorm:"constraint:OnDelete:SET NULL"`
	SuggestedTopic      string    `gorm:"size:255"`
}

// ReportExport 跟踪异步生成的报表文件。Worker 完成后回填 ObjectKey 与状态。
type ReportExport struct {
	gorm.Model
	UserID    uint   `gorm:"index"`
	Kind      string `gorm:"size:64"`
	Format    string `gorm:"size:8"` // xlsx / pdf
	Status    string `gorm:"size:16;default:PENDING"`
	ObjectKey string `gorm:"size:512"`
	ErrorMsg  string `gorm:"size:512"`
}

// AuditLog 记录有副作用的请求（谁、做了什么、结果如何）。
type AuditLog struct {
	gorm.Model
	ActorID      *uint  `gorm:"index"`
	ActorName    string `gorm:"size:128"`
	DepartmentID *uint  `gorm:"index"`
	Action       string `gorm:"size:120"`
	Entity       string `gorm:"size:120"`
	EntityID     string `gorm:"size:64"`
	Method       string `gorm:"size:10"`
	Path         string `gorm:"size:512"`
	StatusCode   int
	IP           string `gorm:"size:64"`
	UserAgent    string `gorm:"size:512"`
	Meta         datatypes.JSON
}

// CalendarEntry 表示年度培训计划中的一行：某主题在 12 个月份上的排期打点。
// 月份从学年首月（4 月）起算，Ticks 固定长度 12。
type CalendarEntry struct {
	gorm.Model
	AcademicYear string `gorm:"size:16;uniqueIndex:idx_calendar_year_srno"`
	SrNo         int    `gorm:"uniqueIndex:idx_calendar_year_srno"`
	Topic        string `gorm:"size:255"`
	Department   string `gorm:"size:128"`
	Ticks        datatypes.JSONSlice[int]
}

// AllModels 列出需要 AutoMigrate 的全部模型，供 api 与 worker 共用。
func AllModels() []any {
	return []any{
		&User{},
		&Department{},
		&Designation{},
		&Skill{},
		&DesignationSkill{},
		&UserSkillLevel{},
		&Training{},
		&TrainingSkill{},
		&TrainingRequirement{},
		&ReportExport{},
		&AuditLog{},
		&CalendarEntry{},
	}
}
