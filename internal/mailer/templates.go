package mailer

import (
	"fmt"
	"html/template"
	"strings"
)

// 邮件正文模板。与原版一致只做内联样式的简单 HTML，不依赖外部资源。
var bodyTmpl = template.Must(template.New("mail").Parse(`
<div style="font-family:Arial,sans-serif;max-width:560px;margin:0 auto">
  <h2 style="color:#1a56db">{{.Heading}}</h2>
  <p>Dear {{.Name}},</p>
  <p>{{.Lead}}</p>
  <table style="border-collapse:collapse;width:100%">
    <tr><td style="padding:4px 8px;color:#555">Topic</td><td style="padding:4px 8px"><b>{{.Topic}}</b></td></tr>
    <tr><td style="padding:4px 8px;color:#555">Date</td><td style="padding:4px 8px">{{.Date}}</td></tr>
    <tr><td style="padding:4px 8px;color:#555">Time</td><td style="padding:4px 8px">{{.Time}}</td></tr>
    <tr><td style="padding:4px 8px;color:#555">Venue</td><td style="padding:4px 8px">{{.Venue}}</td></tr>
    <tr><td style="padding:4px 8px;color:#555">Trainer</td><td style="padding:4px 8px">{{.Trainer}}</td></tr>
  </table>
  <p style="color:#888;font-size:12px">This is an automated notification. Please do not reply.</p>
</div>`))

type bodyData struct {
	Heading string
	Name    string
	Lead    string
	Topic   string
	Date    string
	Time    string
	Venue   string
	Trainer string
}

// TrainingDetails 是渲染通知正文所需的排期字段。
type TrainingDetails struct {
	Topic   string
	Date    string
	Time    string
	Venue   string
	Trainer string
}

func render(data bodyData) string {
	var sb strings.Builder
	if err := bodyTmpl.Execute(&sb, data); err != nil {
		// 模板是静态的，Execute 只会因数据类型不符失败。
		return fmt.Sprintf("<p>%s: %s on %s</p>", data.Heading, data.Topic, data.Date)
	}
	return sb.String()
}

// AssignmentBody 渲染培训指派通知正文。
func AssignmentBody(name string, t TrainingDetails) string {
	return render(bodyData{
		Heading: "Training Assigned",
		Name:    name,
		Lead:    "You have been nominated for the following training session.",
		Topic:   t.Topic, Date: t.Date, Time: t.Time, Venue: t.Venue, Trainer: t.Trainer,
	})
}

// ReminderBody 渲染开训前提醒正文，window 形如 "24 hours" / "1 hour"。
func ReminderBody(name, window string, t TrainingDetails) string {
	return render(bodyData{
		Heading: "Training Reminder",
		Name:    name,
		Lead:    fmt.Sprintf("Your training starts in less than %s.", window),
		Topic:   t.Topic, Date: t.Date, Time: t.Time, Venue: t.Venue, Trainer: t.Trainer,
	})
}
