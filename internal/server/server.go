package server

import (
	"log"
	"path/filepath"

	"github.com/gin-gonic/gin"

	v1 "crewplan/internal/api/v1"
	"crewplan/internal/cache"
	"crewplan/internal/config"
	"crewplan/internal/model"
	"crewplan/internal/store"
	"crewplan/internal/window"
)

// Server HTTP 服务器
type Server struct {
	router *gin.Engine
	store  *store.Store
	v1     *v1.Handler
}

// NewServer 创建服务器
func NewServer(cfg *config.AppConfig) *Server {
	if !cfg.Server.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}

	dataDir, err := config.EnsureDataDir(cfg)
	if err != nil {
		dataDir = cfg.Data.DataDir
	}
	dbPath := filepath.Join(dataDir, "crewplan.db")

	sqliteStore, err := store.New(dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	resolver := window.NewResolver(sqliteStore, cache.New(256))
	defaults := model.MonthConfig{
		WorkType:    model.WorkTypeDomestic,
		WorkingDays: cfg.Business.DefaultWorkingDays,
		WorkHours:   cfg.Business.DefaultWorkHours,
		Shrinkage:   cfg.Business.DefaultShrinkage,
		Occupancy:   cfg.Business.DefaultOccupancy,
	}
	handler := v1.NewHandler(sqliteStore, resolver, v1.HandlerOptions{
		DataDir:      dataDir,
		TemplatePath: cfg.Excel.TemplatePath,
		Defaults:     defaults,
	})

	s := &Server{
		router: gin.Default(),
		store:  sqliteStore,
		v1:     handler,
	}

	s.setupRoutes()

	return s
}

// setupRoutes 设置路由
func (s *Server) setupRoutes() {
	// CORS
	s.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	api := s.router.Group("/api")
	{
		s.v1.RegisterRoutes(api)
	}
}

// Run 启动服务器
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

// Close 关闭底层存储
func (s *Server) Close() error {
	return s.store.Close()
}

// GetStore 获取存储（用于测试）
func (s *Server) GetStore() *store.Store {
	return s.store
}
