package report

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"traincomp/internal/competency"
	"traincomp/internal/database"
)

func intPtr(n int) *int { return &n }

func TestUserMatrixXLSX(t *testing.T) {
	matrix := &competency.UserMatrix{
		User: competency.UserInfo{ID: 1, Name: "Asha", EmployeeID: "E001"},
		Summary: competency.MatrixSummary{
			TotalSkills:          2,
			TotalRequiredScore:   3,
			TotalCurrentScore:    1,
			CompletionPercentage: 33,
		},
		Skills: []competency.MatrixSkill{
			{SkillID: 100, SkillName: "Welding", RequiredLevel: intPtr(3), CurrentLevel: 1, Gap: intPtr(2)},
			{SkillID: 101, SkillName: "Forklift", CurrentLevel: 2},
		},
	}

	artifact, err := UserMatrixXLSX(matrix)
	if err != nil {
		t.Fatalf("UserMatrixXLSX: %v", err)
	}
	if artifact.Filename != "skill-matrix-e001.xlsx" {
		t.Errorf("filename = %q", artifact.Filename)
	}
	if artifact.ContentType != ContentTypeXLSX {
		t.Errorf("content type = %q", artifact.ContentType)
	}

	f, err := excelize.OpenReader(bytes.NewReader(artifact.Data))
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()

	got, err := f.GetCellValue("Skill Matrix", "A2")
	if err != nil {
		t.Fatalf("read cell: %v", err)
	}
	if got != "Welding" {
		t.Errorf("A2 = %q, want Welding", got)
	}

	// 未设目标的技能以占位符出现，不报错也不写 0。
	got, err = f.GetCellValue("Skill Matrix", "B3")
	if err != nil {
		t.Fatalf("read cell: %v", err)
	}
	if got != "-" {
		t.Errorf("B3 = %q, want placeholder", got)
	}
}

func TestTrainingCompletionXLSX(t *testing.T) {
	trainings := []database.Training{
		{
			Topic:  "Arc Welding Basics",
			Date:   "2026-07-01",
			Status: database.TrainingCompleted,
			AssignedEmployees: []database.TrainingAssignee{
				{EmpID: "E001"}, {EmpID: "E002"},
			},
			Attendees: []database.TrainingAttendee{
				{EmpID: "E001", Status: database.AttendanceAttended},
				{EmpID: "E002", Status: database.AttendanceAbsent},
			},
		},
	}

	artifact, err := TrainingCompletionXLSX(trainings)
	if err != nil {
		t.Fatalf("TrainingCompletionXLSX: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(artifact.Data))
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Training Completion")
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header + 1", len(rows))
	}
	// Assigned 2, Attended 1, Absent 1, 50%.
	if rows[1][3] != "2" || rows[1][4] != "1" || rows[1][5] != "1" || rows[1][6] != "50" {
		t.Errorf("completion row = %v", rows[1])
	}
}
