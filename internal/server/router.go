package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/GIGOpenSource/Collide-sub009/docs/swagger"
	"github.com/GIGOpenSource/Collide-sub009/internal/handler"
	"github.com/GIGOpenSource/Collide-sub009/internal/service"
	"github.com/GIGOpenSource/Collide-sub009/pkg/monitor"
)

// Deps 路由依赖的业务服务
type Deps struct {
	Boxes      service.BlindBoxService
	Reconciler service.Reconciler
}

// NewHTTPRouter 初始化并返回一个 Gin Engine
func NewHTTPRouter(deps Deps) *gin.Engine {
	// 0. 初始化监控指标
	monitor.Init()

	// 1. 创建 Engine (使用默认中间件: Logger, Recovery)
	r := gin.Default()

	// 2. 注册通用中间件
	r.Use(monitor.PrometheusMiddleware())

	// 3. 注册基础路由
	r.GET("/health", handler.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	boxes := handler.NewBoxHandler(deps.Boxes)
	admin := handler.NewAdminHandler(deps.Boxes, deps.Reconciler)

	// 4. 注册 API 路由组
	api := r.Group("/api/v1")
	{
		api.POST("/box-items/:id/open", boxes.OpenBoxItem)
		api.GET("/box-items/:id", boxes.GetBoxItem)
		api.GET("/collectibles/:id", boxes.GetCollectible)
		api.GET("/collectibles/:id/operations", boxes.ListOperations)
		api.GET("/users/:uid/collectibles", boxes.ListUserCollectibles)
		api.GET("/users/:uid/box-items", boxes.ListUserBoxItems)
	}

	// 可以在这里添加 AdminAuth 中间件
	adminGroup := r.Group("/admin")
	{
		adminGroup.POST("/box-items", admin.AllocateBoxItem)
		adminGroup.POST("/box-items/:id/assign", admin.AssignBoxItem)
		adminGroup.POST("/reconcile", admin.TriggerReconcile)
		adminGroup.GET("/reconcile/stats", admin.ReconcileStats)
	}

	return r
}
