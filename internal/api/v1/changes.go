package v1

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"crewplan/internal/engine"
	"crewplan/internal/model"
)

// ChangeSetRequest 变更集请求体，预览与提交共用
type ChangeSetRequest struct {
	ReportMonth string                `json:"report_month"`
	ReportYear  int                   `json:"report_year"`
	ChangedBy   string                `json:"changed_by"`
	Changes     []model.ChangeRequest `json:"changes"`
}

func (h *Handler) bindChangeSet(c *gin.Context) (*ChangeSetRequest, bool) {
	var req ChangeSetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误"})
		return nil, false
	}
	if req.ReportMonth == "" || req.ReportYear == 0 {
		month, year, err := h.store.GetCurrentPeriod()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "未指定报告期且当前报告期未设置"})
			return nil, false
		}
		req.ReportMonth, req.ReportYear = month, year
	}
	return &req, true
}

// PreviewChanges 预览一批变更的影响，不落库
// POST /api/forecast/preview
func (h *Handler) PreviewChanges(c *gin.Context) {
	req, ok := h.bindChangeSet(c)
	if !ok {
		return
	}

	result, err := h.engine.Preview(req.ReportMonth, req.ReportYear, req.Changes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type applyResponse struct {
	model.ApplyResult
	AuditRows int `json:"audit_rows"`
}

// ApplyChanges 提交一批变更：落库并记录字段级审计
// POST /api/forecast/apply
func (h *Handler) ApplyChanges(c *gin.Context) {
	req, ok := h.bindChangeSet(c)
	if !ok {
		return
	}

	outcome, err := h.engine.Apply(req.ReportMonth, req.ReportYear, req.Changes)
	if err != nil {
		respondError(c, err)
		return
	}

	auditRows := 0
	if len(outcome.ModifiedRecords) > 0 {
		rows, err := extractAuditRows(outcome.ModifiedRecords)
		if err != nil {
			respondError(c, err)
			return
		}
		if err := h.store.BatchInsertChangeRecords(req.ReportMonth, req.ReportYear, req.ChangedBy, rows); err != nil {
			respondError(c, err)
			return
		}
		auditRows = len(rows)
	}

	c.JSON(http.StatusOK, applyResponse{ApplyResult: outcome.Result, AuditRows: auditRows})
}

// extractAuditRows 把提交产生的修改记录序列化再走审计提取，
// 与外部系统回传 JSON 的提取路径完全一致
func extractAuditRows(records []model.ModifiedRecord) ([]model.ChangeRecord, error) {
	raw, err := json.Marshal(records)
	if err != nil {
		return nil, err
	}
	var decoded []map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}
	return engine.ExtractChanges(decoded)
}

// ListHistory 查询报告期的变更历史
// GET /api/history?report_month=&report_year=&limit=&offset=
func (h *Handler) ListHistory(c *gin.Context) {
	month, year, ok := h.resolvePeriod(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(strings.TrimSpace(c.DefaultQuery("limit", "200")))
	offset, _ := strconv.Atoi(strings.TrimSpace(c.DefaultQuery("offset", "0")))

	items, err := h.store.ListChangeRecords(month, year, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	total, err := h.store.CountChangeRecords(month, year)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"report_month": month,
		"report_year":  year,
		"items":        items,
		"total":        total,
	})
}
