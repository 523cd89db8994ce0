// Package main is the entry point for the photodup HTTP server
package main

import (
	"log"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/patrickmn/go-cache"

	"photodup/api"
	"photodup/api/handler"
	imagehelper "photodup/helper/image"
	"photodup/internal/config"
	"photodup/internal/database"
)

func main() {
	// Configure logging
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("Application starting...")

	// .env file is optional
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Set up hash cache
	var hashCache *database.TieredCache
	if cfg.Search.UseCache {
		path, err := cfg.CachePath()
		if err != nil {
			log.Fatalf("Could not resolve cache path: %v", err)
		}
		store, err := database.OpenSQLiteStore(path)
		if err != nil {
			log.Printf("Warning: Could not open hash cache %s: %v", path, err)
			log.Printf("Continuing with an in-memory cache only")
		}
		ttl := cfg.Cache.MemoryTTL
		if ttl <= 0 {
			ttl = cache.NoExpiration
		}
		hashCache = database.NewTieredCache(database.NewMemoryCache(cfg.Cache.MemoryShards, ttl, 10*ttl), store)
		defer hashCache.Close()
		if store != nil {
			log.Printf("Hash cache: %s", path)
		}
	}

	h := &handler.Handler{
		Config:  cfg,
		Cache:   hashCache,
		Decoder: imagehelper.NewDecoder(cfg.Scan.AutoOrient),
	}

	gin.SetMode(gin.ReleaseMode)
	r := api.Router(h)

	// Start server
	port := ":" + strconv.Itoa(cfg.Server.Port)
	log.Printf("Server started on port %s...", port)
	if err := r.Run(port); err != nil {
		log.Fatalf("Could not start server: %v", err)
	}
}
