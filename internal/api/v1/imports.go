package v1

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"crewplan/internal/importer"
	"crewplan/internal/window"
)

// Import 导入预测 Excel (SSE 流式响应)
// POST /api/import
func (h *Handler) Import(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的表单数据"})
		return
	}

	files := form.File["file"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "未找到上传文件"})
		return
	}
	uploadedFile := files[0]

	reportMonth := strings.TrimSpace(c.PostForm("report_month"))
	reportYear, _ := strconv.Atoi(strings.TrimSpace(c.PostForm("report_year")))
	if _, ok := window.MonthIndex(reportMonth); !ok || reportYear <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "非法报告期"})
		return
	}
	uploadedBy := strings.TrimSpace(c.PostForm("uploaded_by"))
	setCurrent := c.DefaultPostForm("set_current", "true") == "true"

	// 保存到上传目录，落盘文件名用 UUID 避免冲突
	uploadDir := filepath.Join(h.dataDir, "uploads")
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建上传目录失败"})
		return
	}
	tempFilePath := filepath.Join(uploadDir, fmt.Sprintf("%s.xlsx", uuid.NewString()))
	if err := c.SaveUploadedFile(uploadedFile, tempFilePath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "保存文件失败"})
		return
	}
	defer os.Remove(tempFilePath)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "不支持流式响应"})
		return
	}

	coordinator := importer.NewCoordinator(h.store, h.resolver)
	progressChan := coordinator.Import(importer.ImportOptions{
		FilePath:         tempFilePath,
		OriginalFilename: uploadedFile.Filename,
		ReportMonth:      reportMonth,
		ReportYear:       reportYear,
		UploadedBy:       uploadedBy,
		SetCurrentPeriod: setCurrent,
	})

	// SSE 格式: data: {json}\n\n
	for event := range progressChan {
		eventData, err := json.Marshal(event)
		if err != nil {
			continue
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", eventData)
		flusher.Flush()
	}
}

// ListUploads 上传记录列表
// GET /api/uploads?limit=
func (h *Handler) ListUploads(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	items, err := h.store.ListUploads(limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
