package api

import (
	"time"

	_ "photodup/api/docs"
	"photodup/api/handler"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title Photodup API
// @version 1.0
// @description Finds groups of visually similar images using perceptual hashes
// @BasePath /
func Router(hand *handler.Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST"},
		AllowHeaders:  []string{"Origin", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))
	r.MaxMultipartMemory = 32 << 20

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.POST("/search", hand.SearchHandler)
	r.POST("/compare", hand.CompareHandler)

	admin := r.Group("/admin")
	{
		admin.GET("/hello", hand.Hello)
		admin.GET("/cache/stats", hand.CacheStatsHandler)
		admin.POST("/cache/clear", hand.CacheClearHandler)
	}
	return r
}
