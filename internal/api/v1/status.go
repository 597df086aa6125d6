package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"crewplan/internal/store"
)

// StatusResponse 系统状态响应
type StatusResponse struct {
	Initialized  bool   `json:"initialized"`   // 是否已有预测数据
	ReportMonth  string `json:"report_month"`  // 当前报告月
	ReportYear   int    `json:"report_year"`   // 当前报告年
	RecordCount  int    `json:"record_count"`  // 当前报告期记录数
	LastUploadAt string `json:"last_upload_at"` // 最后一次成功导入时间
	LastUploader string `json:"last_uploader"`
}

// GetStatus 获取系统状态
// GET /api/status
func (h *Handler) GetStatus(c *gin.Context) {
	month, year, err := h.store.GetCurrentPeriod()
	if err != nil {
		c.JSON(http.StatusOK, StatusResponse{Initialized: false})
		return
	}

	count, err := h.store.CountForecast(month, year, "", "")
	if err != nil {
		count = 0
	}

	resp := StatusResponse{
		Initialized: count > 0,
		ReportMonth: month,
		ReportYear:  year,
		RecordCount: count,
	}

	upload, err := h.store.GetLatestUpload(month, year)
	if err == nil {
		resp.LastUploadAt = upload.CreatedAt.Format("2006-01-02 15:04:05")
		resp.LastUploader = upload.UploadedBy
	} else if !errors.Is(err, store.ErrNotFound) {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
