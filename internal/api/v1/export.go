package v1

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"crewplan/internal/exporter"
)

const downloadTTL = 10 * time.Minute

type exportRequest struct {
	ReportMonth string `json:"report_month"`
	ReportYear  int    `json:"report_year"`
}

// Export 导出预测工作簿，返回一次性下载 token
// POST /api/export
func (h *Handler) Export(c *gin.Context) {
	// 空请求体表示导出当前报告期
	var req exportRequest
	_ = c.ShouldBindJSON(&req)
	if req.ReportMonth == "" || req.ReportYear == 0 {
		month, year, err := h.store.GetCurrentPeriod()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "未指定报告期且当前报告期未设置"})
			return
		}
		req.ReportMonth, req.ReportYear = month, year
	}

	exp := exporter.NewExporter(h.store, h.resolver, h.templatePath)
	f, err := exp.Export(exporter.ExportOptions{
		ReportMonth: req.ReportMonth,
		ReportYear:  req.ReportYear,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()

	exportDir := filepath.Join(h.dataDir, "exports")
	if err := os.MkdirAll(exportDir, 0755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建导出目录失败"})
		return
	}
	filePath := filepath.Join(exportDir, fmt.Sprintf("%s.xlsx", uuid.NewString()))
	if err := f.SaveAs(filePath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "保存导出文件失败"})
		return
	}

	token := h.downloads.put(filePath, req.ReportMonth, req.ReportYear, downloadTTL)
	c.JSON(http.StatusOK, gin.H{
		"token":    token,
		"filename": exporter.Filename(req.ReportMonth, req.ReportYear),
		"url":      fmt.Sprintf("/api/export/download/%s", token),
	})
}

// DownloadExport 下载导出的 Excel 文件（一次性）
// GET /api/export/download/:token
func (h *Handler) DownloadExport(c *gin.Context) {
	token := c.Param("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 token"})
		return
	}

	item, ok := h.downloads.get(token)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "下载链接已失效"})
		return
	}

	if _, err := os.Stat(item.filePath); err != nil {
		h.downloads.delete(token)
		c.JSON(http.StatusNotFound, gin.H{"error": "导出文件不存在"})
		return
	}

	filename := exporter.SanitizeFilename(exporter.Filename(item.reportMonth, item.reportYear))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.File(item.filePath)

	h.downloads.delete(token)
	_ = os.Remove(item.filePath)
}
