package model

import "time"

// UploadStatus 上传任务状态
type UploadStatus string

const (
	UploadStatusPending        UploadStatus = "PENDING"
	UploadStatusInProgress     UploadStatus = "IN_PROGRESS"
	UploadStatusSuccess        UploadStatus = "SUCCESS"
	UploadStatusFailed         UploadStatus = "FAILED"
	UploadStatusPartialSuccess UploadStatus = "PARTIAL_SUCCESS"
)

// UploadRecord 预测上传记录
// Months 保存报告期对应的 6 个窗口日历月名（month1..month6），
// 上传成功后即不可变，是月份标签解析的数据来源
type UploadRecord struct {
	ID           int64                `json:"id"`
	ReportMonth  string               `json:"report_month"`
	ReportYear   int                  `json:"report_year"`
	Months       [WindowSize]string   `json:"months"`
	UploadedBy   string               `json:"uploaded_by"`
	Filename     string               `json:"filename"`
	Status       UploadStatus         `json:"status"`
	ErrorMessage string               `json:"error_message,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	CompletedAt  *time.Time           `json:"completed_at,omitempty"`
}
