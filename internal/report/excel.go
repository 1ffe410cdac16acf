package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"traincomp/internal/competency"
	"traincomp/internal/database"
)

// setHeaderRow 写入表头并加粗。
func setHeaderRow(f *excelize.File, sheet string, headers []string) error {
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DDEBF7"}},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return fmt.Errorf("header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("header value: %w", err)
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return fmt.Errorf("header style apply: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, rowIdx int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, rowIdx)
	if err != nil {
		return fmt.Errorf("row cell: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("set row %d: %w", rowIdx, err)
	}
	return nil
}

func finish(f *excelize.File, sheet, filename string) (*Artifact, error) {
	idx, err := f.GetSheetIndex(sheet)
	if err != nil {
		return nil, fmt.Errorf("sheet index: %w", err)
	}
	f.SetActiveSheet(idx)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return &Artifact{
		Filename:    filename,
		ContentType: ContentTypeXLSX,
		Data:        buf.Bytes(),
	}, nil
}

// UserMatrixXLSX 渲染单个员工的技能矩阵工作簿。
func UserMatrixXLSX(m *competency.UserMatrix) (*Artifact, error) {
	const sheet = "Skill Matrix"
	f := excelize.NewFile()
	defer f.Close()
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Skill", "Required Level", "Current Level", "Gap", "Status"}
	if err := setHeaderRow(f, sheet, headers); err != nil {
		return nil, err
	}

	row := 2
	for _, s := range m.Skills {
		required, gap, status := "-", "-", "Not set"
		if s.RequiredLevel != nil {
			required = fmt.Sprintf("%d", *s.RequiredLevel)
			gap = fmt.Sprintf("%d", *s.Gap)
			if *s.Gap > 0 {
				status = "Gap"
			} else {
				status = "Met"
			}
		}
		if err := setRow(f, sheet, row, []any{s.SkillName, required, s.CurrentLevel, gap, status}); err != nil {
			return nil, err
		}
		row++
	}

	// 汇总区块。
	row++
	if err := setRow(f, sheet, row, []any{"Employee", m.User.Name}); err != nil {
		return nil, err
	}
	if err := setRow(f, sheet, row+1, []any{"Completion %", m.Summary.CompletionPercentage}); err != nil {
		return nil, err
	}

	_ = f.SetColWidth(sheet, "A", "A", 32)
	_ = f.SetColWidth(sheet, "B", "E", 16)

	name := fmt.Sprintf("skill-matrix-%s.xlsx", sanitize(m.User.EmployeeID))
	return finish(f, sheet, name)
}

// DepartmentGapXLSX 渲染部门技能差距工作簿。
func DepartmentGapXLSX(r *competency.DepartmentGapReport, departmentName string) (*Artifact, error) {
	const sheet = "Skill Gaps"
	f := excelize.NewFile()
	defer f.Close()
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Skill", "Employees Affected", "Total Gap", "Average Gap", "Average Current Level", "Priority"}
	if err := setHeaderRow(f, sheet, headers); err != nil {
		return nil, err
	}

	row := 2
	for _, e := range r.SkillGaps {
		values := []any{e.SkillName, e.EmployeesAffected, e.TotalGap, e.AverageGap, e.AverageCurrentLevel, string(e.Priority)}
		if err := setRow(f, sheet, row, values); err != nil {
			return nil, err
		}
		row++
	}

	row++
	if err := setRow(f, sheet, row, []any{"Department", departmentName}); err != nil {
		return nil, err
	}
	if err := setRow(f, sheet, row+1, []any{"Employees", r.Summary.TotalEmployees}); err != nil {
		return nil, err
	}

	_ = f.SetColWidth(sheet, "A", "A", 32)
	_ = f.SetColWidth(sheet, "B", "F", 20)

	name := fmt.Sprintf("skill-gap-%s.xlsx", sanitize(departmentName))
	return finish(f, sheet, name)
}

// RecommendationsXLSX 渲染员工培训推荐工作簿。
func RecommendationsXLSX(r *competency.RecommendationReport) (*Artifact, error) {
	const sheet = "Recommendations"
	f := excelize.NewFile()
	defer f.Close()
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Training", "Priority", "Skills Covered"}
	if err := setHeaderRow(f, sheet, headers); err != nil {
		return nil, err
	}

	row := 2
	for _, rec := range r.Recommendations {
		values := []any{rec.Title, string(rec.Priority), strings.Join(rec.SkillsCovered, ", ")}
		if err := setRow(f, sheet, row, values); err != nil {
			return nil, err
		}
		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 40)
	_ = f.SetColWidth(sheet, "B", "C", 24)

	name := fmt.Sprintf("training-recommendations-%s.xlsx", sanitize(r.User.EmployeeID))
	return finish(f, sheet, name)
}

// TrainingCompletionXLSX 渲染培训完成情况工作簿（含出勤统计）。
func TrainingCompletionXLSX(trainings []database.Training) (*Artifact, error) {
	const sheet = "Training Completion"
	f := excelize.NewFile()
	defer f.Close()
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Topic", "Date", "Status", "Assigned", "Attended", "Absent", "Attendance %"}
	if err := setHeaderRow(f, sheet, headers); err != nil {
		return nil, err
	}

	row := 2
	for _, t := range trainings {
		attended, absent := 0, 0
		for _, a := range t.Attendees {
			switch a.Status {
			case database.AttendanceAttended:
				attended++
			case database.AttendanceAbsent:
				absent++
			}
		}
		pct := 0
		if assigned := len(t.AssignedEmployees); assigned > 0 {
			pct = attended * 100 / assigned
		}
		values := []any{t.Topic, t.Date, t.Status, len(t.AssignedEmployees), attended, absent, pct}
		if err := setRow(f, sheet, row, values); err != nil {
			return nil, err
		}
		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 40)
	_ = f.SetColWidth(sheet, "B", "G", 14)

	return finish(f, sheet, "training-completion.xlsx")
}

// sanitize 把任意展示名变成安全的文件名片段。
func sanitize(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return "report"
	}
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		default:
			sb.WriteRune('-')
		}
	}
	out := strings.Trim(sb.String(), "-")
	if out == "" {
		return "report"
	}
	return out
}
