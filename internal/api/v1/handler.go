package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"crewplan/internal/engine"
	"crewplan/internal/model"
	"crewplan/internal/store"
	"crewplan/internal/window"
)

// Handler V1 API 处理器
type Handler struct {
	store     *store.Store
	resolver  *window.Resolver
	engine       *engine.Engine
	dataDir      string
	templatePath string
	defaults     model.MonthConfig
	downloads    *exportDownloadStore
}

// HandlerOptions 处理器依赖与配置
type HandlerOptions struct {
	DataDir      string
	TemplatePath string            // 导出模板路径，留空时导出为新建工作簿
	Defaults     model.MonthConfig // 配置接口回显的月度配置缺省值
}

// NewHandler 创建 V1 API 处理器
func NewHandler(st *store.Store, resolver *window.Resolver, opts HandlerOptions) *Handler {
	return &Handler{
		store:        st,
		resolver:     resolver,
		engine:       engine.New(st, resolver),
		dataDir:      opts.DataDir,
		templatePath: opts.TemplatePath,
		defaults:     opts.Defaults,
		downloads:    newExportDownloadStore(),
	}
}

// RegisterRoutes 注册 V1 API 路由
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	// 系统状态
	router.GET("/status", h.GetStatus)

	// 报告期管理
	router.GET("/months", h.ListMonths)
	router.POST("/months/select", h.SelectMonth)

	// 月度配置
	router.GET("/config", h.GetConfig)
	router.PATCH("/config", h.UpdateConfig)

	// 预测数据查询
	router.GET("/forecast", h.ListForecast)
	router.GET("/forecast/:id", h.GetForecastRecord)

	// 变更预览与提交
	router.POST("/forecast/preview", h.PreviewChanges)
	router.POST("/forecast/apply", h.ApplyChanges)

	// 变更历史
	router.GET("/history", h.ListHistory)

	// 数据导入
	router.POST("/import", h.Import)
	router.GET("/uploads", h.ListUploads)

	// 数据导出
	router.POST("/export", h.Export)
	router.GET("/export/download/:token", h.DownloadExport)
}

// respondError 按错误类别映射 HTTP 状态码
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, window.ErrPeriodNotFound), errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
