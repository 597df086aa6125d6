package v1

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"crewplan/internal/model"
)

type configResponse struct {
	Year     int                 `json:"year"`
	Items    []model.MonthConfig `json:"items"`
	Defaults model.MonthConfig   `json:"defaults"`
}

// GetConfig 获取某年的月度配置列表
// GET /api/config?year=
func (h *Handler) GetConfig(c *gin.Context) {
	year, err := strconv.Atoi(strings.TrimSpace(c.Query("year")))
	if err != nil || year <= 0 {
		_, cur, perr := h.store.GetCurrentPeriod()
		if perr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "未指定年份且当前报告期未设置"})
			return
		}
		year = cur
	}

	items, err := h.store.ListMonthConfigs(year)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, configResponse{
		Year:     year,
		Items:    items,
		Defaults: h.defaults,
	})
}

type updateConfigRequest struct {
	Configs []model.MonthConfig `json:"configs"`
}

// UpdateConfig 批量更新月度配置
// PATCH /api/config
func (h *Handler) UpdateConfig(c *gin.Context) {
	var req updateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误"})
		return
	}
	if len(req.Configs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "配置列表为空"})
		return
	}

	for i, cfg := range req.Configs {
		if cfg.WorkType == "" {
			req.Configs[i].WorkType = model.WorkTypeDomestic
			cfg.WorkType = model.WorkTypeDomestic
		}
		if err := cfg.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	for _, cfg := range req.Configs {
		if err := h.store.UpsertMonthConfig(cfg); err != nil {
			respondError(c, err)
			return
		}
	}

	// 配置缓存最长 5 分钟过期，这里主动失效当前报告期
	if month, year, err := h.store.GetCurrentPeriod(); err == nil {
		h.resolver.Invalidate(month, year)
	}

	c.JSON(http.StatusOK, gin.H{"updated": len(req.Configs)})
}
