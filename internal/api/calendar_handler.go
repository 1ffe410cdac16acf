package api

import (
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/dutchcoders/go-clamd"
	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"traincomp/internal/api/middleware"
	"traincomp/internal/database"
)

// CalendarHandler 管理年度培训计划：查询与 xlsx 批量导入。
// 导入文件先过 clamd 扫描再解析，按 (学年, 序号) 幂等覆盖。
type CalendarHandler struct {
	db        *gorm.DB
	clamdAddr string
	logger    *slog.Logger
}

func NewCalendarHandler(db *gorm.DB, clamdAddr string, logger *slog.Logger) *CalendarHandler {
	return &CalendarHandler{db: db, clamdAddr: clamdAddr, logger: logger}
}

type calendarEntryResponse struct {
	ID           uint   `json:"id"`
	AcademicYear string `json:"academicYear"`
	SrNo         int    `json:"srNo"`
	Topic        string `json:"topic"`
	Department   string `json:"department"`
	Ticks        []int  `json:"ticks"`
}

// List GET /calendar?year=2026-27
func (h *CalendarHandler) List(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Model(&database.CalendarEntry{})
	if year := c.Query("year"); year != "" {
		q = q.Where("academic_year = ?", year)
	}

	var items []database.CalendarEntry
	if err := q.Order("academic_year DESC, sr_no ASC").Find(&items).Error; err != nil {
		middleware.LoggerFromContext(c).Error("list calendar failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	out := make([]calendarEntryResponse, 0, len(items))
	for _, e := range items {
		out = append(out, calendarEntryResponse{
			ID:           e.ID,
			AcademicYear: e.AcademicYear,
			SrNo:         e.SrNo,
			Topic:        e.Topic,
			Department:   e.Department,
			Ticks:        e.Ticks,
		})
	}
	c.JSON(http.StatusOK, gin.H{"entries": out, "total": len(out)})
}

type importRowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// Import POST /calendar/import — multipart 表单：file（xlsx）+ academic_year。
// 工作表第一行是表头，之后每行：序号、主题、部门、12 个月份列（4 月起）。
// 月份格里任何非空值都算打点。坏行跳过并逐行报告，不整体回滚。
func (h *CalendarHandler) Import(c *gin.Context) {
	year := c.PostForm("academic_year")
	if year == "" {
		BadRequest(c, "academic_year is required")
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "missing file")
		return
	}

	logger := middleware.LoggerFromContext(c)

	if h.clamdAddr != "" {
		if ok := h.scanUpload(c, file); !ok {
			return // scanUpload 已写响应
		}
	}

	reader, err := file.Open()
	if err != nil {
		Internal(c, "failed to open file")
		return
	}
	defer reader.Close()

	wb, err := excelize.OpenReader(reader)
	if err != nil {
		BadRequest(c, "file is not a valid xlsx workbook")
		return
	}
	defer wb.Close()

	sheet := wb.GetSheetName(0)
	rows, err := wb.GetRows(sheet)
	if err != nil {
		BadRequest(c, "failed to read worksheet")
		return
	}
	if len(rows) < 2 {
		BadRequest(c, "worksheet has no data rows")
		return
	}

	ctx := c.Request.Context()
	imported := 0
	var rowErrors []importRowError

	for i, row := range rows[1:] {
		rowNum := i + 2 // 1-based，含表头
		entry, err := parseCalendarRow(row, year)
		if err != nil {
			rowErrors = append(rowErrors, importRowError{Row: rowNum, Message: err.Error()})
			continue
		}

		err = h.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "academic_year"}, {Name: "sr_no"}},
				DoUpdates: clause.AssignmentColumns([]string{"topic", "department", "ticks"}),
			}).
			Create(entry).Error
		if err != nil {
			logger.Error("upsert calendar entry failed",
				slog.Int("row", rowNum), slog.Any("error", err))
			rowErrors = append(rowErrors, importRowError{Row: rowNum, Message: "database error"})
			continue
		}
		imported++
	}

	c.JSON(http.StatusOK, gin.H{
		"imported": imported,
		"skipped":  len(rowErrors),
		"errors":   rowErrors,
	})
}

func parseCalendarRow(row []string, year string) (*database.CalendarEntry, error) {
	if len(row) < 2 {
		return nil, fmt.Errorf("too few columns")
	}

	srNo, err := strconv.Atoi(strings.TrimSpace(row[0]))
	if err != nil || srNo < 1 {
		return nil, fmt.Errorf("sr_no must be a positive integer")
	}
	topic := strings.TrimSpace(row[1])
	if topic == "" {
		return nil, fmt.Errorf("topic is empty")
	}
	department := ""
	if len(row) > 2 {
		department = strings.TrimSpace(row[2])
	}

	ticks := make([]int, 12)
	for m := 0; m < 12; m++ {
		col := 3 + m
		if col < len(row) && strings.TrimSpace(row[col]) != "" {
			ticks[m] = 1
		}
	}

	return &database.CalendarEntry{
		AcademicYear: year,
		SrNo:         srNo,
		Topic:        topic,
		Department:   department,
		Ticks:        datatypes.NewJSONSlice(ticks),
	}, nil
}

// scanUpload 把上传内容送 clamd 扫描；命中病毒或扫描失败都会拒绝。
func (h *CalendarHandler) scanUpload(c *gin.Context, file *multipart.FileHeader) bool {
	clamdClient := clamd.NewClamd(h.clamdAddr)

	reader, err := file.Open()
	if err != nil {
		Internal(c, "failed to open file")
		return false
	}

	abortChan := make(chan bool)
	scanChan, err := clamdClient.ScanStream(reader, abortChan)
	reader.Close()
	if err != nil {
		middleware.LoggerFromContext(c).Error("scan upload failed", slog.Any("error", err))
		Internal(c, "failed to scan file")
		return false
	}
	defer close(abortChan)

	for result := range scanChan {
		if result.Status != clamd.RES_OK {
			BadRequest(c, "malicious file detected")
			return false
		}
	}
	return true
}
