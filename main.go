package main

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/Kirthidass/Neural-Cortex/agents"
	"github.com/Kirthidass/Neural-Cortex/authorization"
	"github.com/Kirthidass/Neural-Cortex/graph"
	"github.com/Kirthidass/Neural-Cortex/knowledge"
)

func mustLoadEnv() {
	_ = godotenv.Load()
}

func corsConfig() cors.Config {
	config := cors.DefaultConfig()
	config.AllowHeaders = append(config.AllowHeaders, "Authorization")
	config.MaxAge = 12 * time.Hour

	origins := strings.TrimSpace(os.Getenv("CORS_ALLOW_ORIGINS"))
	if origins == "" {
		config.AllowAllOrigins = true
		return config
	}
	config.AllowOrigins = strings.Split(origins, ",")
	return config
}

func main() {
	mustLoadEnv()

	r := gin.Default()
	r.Use(cors.New(corsConfig()))

	authModule, err := authorization.RegisterRoutes(r)
	if err != nil {
		log.Fatalf("register auth routes: %v", err)
	}
	guard := authModule.Guard()

	graphStore, err := graph.NewStoreFromEnv()
	if err != nil {
		log.Fatalf("open graph store: %v", err)
	}

	knowledgeModule, err := knowledge.RegisterRoutes(r, guard, graphStore)
	if err != nil {
		log.Fatalf("register knowledge routes: %v", err)
	}

	graphModule, err := graph.RegisterRoutes(r, guard, graphStore, knowledgeModule.Service(), knowledgeModule.Extractor())
	if err != nil {
		log.Fatalf("register graph routes: %v", err)
	}
	knowledgeModule.SetGraphInvalidator(graphModule)

	if _, err := agents.RegisterRoutes(r, guard, knowledgeModule.Service()); err != nil {
		log.Fatalf("register agent routes: %v", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	if err := r.Run(":" + port); err != nil {
		log.Fatalf("start server: %v", err)
	}
}
