package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"crewplan/internal/store"
	"crewplan/internal/window"
)

type monthsResponse struct {
	ReportMonth string            `json:"report_month"`
	ReportYear  int               `json:"report_year"`
	Items       []store.PeriodStat `json:"items"`
}

// ListMonths 获取可用报告期列表
// GET /api/months
func (h *Handler) ListMonths(c *gin.Context) {
	items, err := h.store.ListAvailablePeriods()
	if err != nil {
		respondError(c, err)
		return
	}

	month, year, err := h.store.GetCurrentPeriod()
	if err != nil {
		month = ""
		year = 0
	}

	c.JSON(http.StatusOK, monthsResponse{
		ReportMonth: month,
		ReportYear:  year,
		Items:       items,
	})
}

type selectMonthRequest struct {
	ReportMonth string `json:"report_month"`
	ReportYear  int    `json:"report_year"`
}

// SelectMonth 切换当前报告期
// POST /api/months/select
func (h *Handler) SelectMonth(c *gin.Context) {
	var req selectMonthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误"})
		return
	}
	if _, ok := window.MonthIndex(req.ReportMonth); !ok || req.ReportYear <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "非法报告期"})
		return
	}

	// 校验该报告期是否有数据，避免切到空报告期
	items, err := h.store.ListAvailablePeriods()
	if err != nil {
		respondError(c, err)
		return
	}
	ok := false
	for _, it := range items {
		if it.ReportMonth == req.ReportMonth && it.ReportYear == req.ReportYear && it.Records > 0 {
			ok = true
			break
		}
	}
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "该报告期无可用数据"})
		return
	}

	if err := h.store.SetCurrentPeriod(req.ReportMonth, req.ReportYear); err != nil {
		respondError(c, err)
		return
	}

	w, err := h.resolver.ResolveLabels(req.ReportMonth, req.ReportYear)
	if err != nil {
		respondError(c, err)
		return
	}

	count, _ := h.store.CountForecast(req.ReportMonth, req.ReportYear, "", "")
	c.JSON(http.StatusOK, gin.H{
		"report_month": req.ReportMonth,
		"report_year":  req.ReportYear,
		"months":       w.PositionMap(),
		"record_count": count,
	})
}
