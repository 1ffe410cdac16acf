package report

import (
	"fmt"
	"html/template"
	"strings"

	"traincomp/internal/competency"
)

// 个人技能矩阵的打印模板。A4 纵向，样式全部内联。
var matrixPDFTmpl = template.Must(template.New("matrix_pdf").Funcs(template.FuncMap{
	"deref": func(p *int) int {
		if p == nil {
			return 0
		}
		return *p
	},
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
  @page { size: A4 portrait; margin: 18mm 14mm; }
  body { font-family: Arial, Helvetica, sans-serif; color: #1f2937; font-size: 12px; }
  h1 { font-size: 20px; margin-bottom: 2px; }
  .meta { color: #6b7280; margin-bottom: 16px; }
  table { width: 100%; border-collapse: collapse; }
  th, td { border: 1px solid #d1d5db; padding: 6px 8px; text-align: left; }
  th { background: #1a56db; color: #fff; }
  tr:nth-child(even) td { background: #f3f4f6; }
  .gap { color: #b91c1c; font-weight: bold; }
  .met { color: #047857; }
  .summary { margin-top: 16px; font-size: 13px; }
</style>
</head>
<body>
  <h1>Skill Matrix</h1>
  <div class="meta">{{.User.Name}} ({{.User.EmployeeID}}) — {{.User.Designation}}, {{.User.Department}}</div>
  <table>
    <tr><th>Skill</th><th>Required</th><th>Current</th><th>Gap</th></tr>
    {{range .Skills}}
    <tr>
      <td>{{.SkillName}}</td>
      <td>{{if .RequiredLevel}}{{.RequiredLevel}}{{else}}&mdash;{{end}}</td>
      <td>{{.CurrentLevel}}</td>
      <td>{{if .Gap}}{{if gt (deref .Gap) 0}}<span class="gap">{{.Gap}}</span>{{else}}<span class="met">0</span>{{end}}{{else}}&mdash;{{end}}</td>
    </tr>
    {{end}}
  </table>
  <div class="summary">
    Completion: <b>{{.Summary.CompletionPercentage}}%</b>
    ({{.Summary.TotalCurrentScore}} / {{.Summary.TotalRequiredScore}})
  </div>
</body>
</html>`))

// UserMatrixPDF 把个人技能矩阵渲染为 PDF。
func UserMatrixPDF(m *competency.UserMatrix) (*Artifact, error) {
	var sb strings.Builder
	if err := matrixPDFTmpl.Execute(&sb, m); err != nil {
		return nil, fmt.Errorf("render matrix html: %w", err)
	}
	data, err := renderPDF(sb.String())
	if err != nil {
		return nil, err
	}
	return &Artifact{
		Filename:    fmt.Sprintf("skill-matrix-%s.pdf", sanitize(m.User.EmployeeID)),
		ContentType: ContentTypePDF,
		Data:        data,
	}, nil
}
