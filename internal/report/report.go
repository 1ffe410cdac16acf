// Package report 把胜任力计算结果渲染成可下载的文件（xlsx / pdf）。
package report

// Artifact 是一份渲染完成的报表文件。
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
}

const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypePDF  = "application/pdf"
)
