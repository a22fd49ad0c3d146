// Package https_server 提供 HTTP/HTTPS 服务器的初始化和配置
// 负责创建 Gin 引擎实例并配置中间件和路由
package https_server

import (
	"agrilink_server/internal/config"
	"agrilink_server/internal/handler"
	"agrilink_server/internal/infrastructure/logger"
	"agrilink_server/internal/infrastructure/middleware"
	"agrilink_server/internal/router"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Init 初始化 HTTP 服务器并返回 Gin 引擎实例
// 配置顺序：
//  1. 创建 Gin 引擎（空白，不含默认中间件）
//  2. 注册日志和恢复中间件
//  3. 配置 CORS 跨域规则和安全响应头
//  4. 注册业务路由
func Init(handlers *handler.Handlers, cfg *config.Config) *gin.Engine {
	engine := gin.New()

	engine.Use(logger.GinLogger())
	engine.Use(logger.GinRecovery(true))

	// 前端通过 Cookie 携带 Token，需要允许凭证；未配置来源白名单时放行所有来源
	corsConfig := cors.DefaultConfig()
	if origins := cfg.RealtimeConfig.AllowedOrigins; len(origins) > 0 {
		corsConfig.AllowOrigins = origins
		corsConfig.AllowCredentials = true
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	engine.Use(cors.New(corsConfig))

	// HTTPS 通常由 Nginx 终结，这里只加安全头不做重定向
	engine.Use(middleware.SecureHeaders(cfg.MainConfig.Mode != "release", ""))

	rt := router.NewRouter(handlers)
	rt.RegisterRoutes(engine)

	return engine
}
