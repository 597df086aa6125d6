package v1

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"crewplan/internal/model"
)

type forecastListResponse struct {
	ReportMonth string                  `json:"report_month"`
	ReportYear  int                     `json:"report_year"`
	Months      map[string]string       `json:"months"`
	Items       []*model.ForecastRecord `json:"items"`
	Total       int                     `json:"total"`
	Page        int                     `json:"page"`
	PageSize    int                     `json:"page_size"`
}

// ListForecast 查询当前或指定报告期的预测明细
// GET /api/forecast?report_month=&report_year=&main_lob=&state=&case_type=&keyword=&page=&page_size=
func (h *Handler) ListForecast(c *gin.Context) {
	month, year, ok := h.resolvePeriod(c)
	if !ok {
		return
	}

	w, err := h.resolver.ResolveLabels(month, year)
	if err != nil {
		respondError(c, err)
		return
	}

	records, err := h.store.GetForecastByPeriod(month, year)
	if err != nil {
		respondError(c, err)
		return
	}

	mainLOB := strings.TrimSpace(c.Query("main_lob"))
	state := strings.TrimSpace(c.Query("state"))
	caseType := strings.TrimSpace(c.Query("case_type"))
	keyword := strings.TrimSpace(c.Query("keyword"))
	filtered := records[:0:0]
	for _, r := range records {
		if mainLOB != "" && r.Key.MainLOB != mainLOB {
			continue
		}
		if state != "" && r.Key.State != state {
			continue
		}
		if caseType != "" && r.Key.CaseType != caseType {
			continue
		}
		if keyword != "" && !matchKeyword(r, keyword) {
			continue
		}
		filtered = append(filtered, r)
	}

	// 单报告期记录量在千级，分页在内存完成
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 500 {
		pageSize = 50
	}
	total := len(filtered)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	c.JSON(http.StatusOK, forecastListResponse{
		ReportMonth: month,
		ReportYear:  year,
		Months:      w.PositionMap(),
		Items:       filtered[start:end],
		Total:       total,
		Page:        page,
		PageSize:    pageSize,
	})
}

// GetForecastRecord 查询单条预测记录
// GET /api/forecast/:id
func (h *Handler) GetForecastRecord(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "非法记录 ID"})
		return
	}
	r, err := h.store.GetForecastRecord(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// resolvePeriod 取查询参数指定的报告期，缺省回落到当前报告期
func (h *Handler) resolvePeriod(c *gin.Context) (string, int, bool) {
	month := strings.TrimSpace(c.Query("report_month"))
	yearStr := strings.TrimSpace(c.Query("report_year"))
	if month != "" && yearStr != "" {
		year, err := strconv.Atoi(yearStr)
		if err != nil || year <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "非法报告年"})
			return "", 0, false
		}
		return month, year, true
	}

	month, year, err := h.store.GetCurrentPeriod()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "当前报告期未设置"})
		return "", 0, false
	}
	return month, year, true
}

func matchKeyword(r *model.ForecastRecord, keyword string) bool {
	kw := strings.ToLower(keyword)
	for _, s := range []string{r.Key.MainLOB, r.Key.State, r.Key.CaseType, r.Key.CaseID} {
		if strings.Contains(strings.ToLower(s), kw) {
			return true
		}
	}
	return false
}
