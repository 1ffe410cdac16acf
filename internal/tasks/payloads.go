package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypeReportGenerate   = "report:generate"
	TypeTrainingReminder = "training:reminder"
)

// 报表种类。worker 按 Kind 选择构建器。
const (
	ReportUserMatrix         = "user_matrix"
	ReportDepartmentGap      = "department_gap"
	ReportRecommendations    = "recommendations"
	ReportTrainingCompletion = "training_completion"
)

// ReportGeneratePayload 描述生成一份报表所需的最小信息。
// SubjectID 依 Kind 解释：员工报表为用户 ID，部门报表为部门 ID。
type ReportGeneratePayload struct {
	ExportID      uint   `json:"export_id"`
	Kind          string `json:"kind"`
	Format        string `json:"format"` // xlsx / pdf
	RequestedBy   uint   `json:"requested_by"`
	SubjectID     uint   `json:"subject_id"`
	CorrelationID string `json:"correlation_id"`
}

// NewReportGenerateTask 构造一个报表生成任务。
func NewReportGenerateTask(p ReportGeneratePayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeReportGenerate, payload), nil
}

// NewTrainingReminderTask 构造提醒轮询任务；由调度器周期性投递，无负载。
func NewTrainingReminderTask() *asynq.Task {
	return asynq.NewTask(TypeTrainingReminder, nil)
}
