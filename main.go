package main

import (
	"log"
	"net/http"
	"os"
	"strings"

	"thumbzilla_back/authorization"
	"thumbzilla_back/thumbnails"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

var defaultAllowedOrigins = []string{
	"http://localhost:5173",
	"http://127.0.0.1:5173",
}

func mustLoadEnv() {
	_ = godotenv.Load()
}

// allowedOrigins returns the fixed list of cross-origin callers permitted to
// send credentialed requests. ALLOWED_ORIGINS is a comma separated list.
func allowedOrigins() []string {
	raw := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS"))
	if raw == "" {
		return defaultAllowedOrigins
	}
	origins := make([]string, 0)
	for _, origin := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if len(origins) == 0 {
		return defaultAllowedOrigins
	}
	return origins
}

func main() {
	mustLoadEnv()

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins(),
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: true,
	}))

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Server is Live!")
	})

	authModule, err := authorization.RegisterRoutes(r)
	if err != nil {
		log.Fatalf("register auth routes: %v", err)
	}

	if _, err := thumbnails.RegisterRoutes(r, authModule.Guard()); err != nil {
		log.Fatalf("register thumbnail routes: %v", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	if err := r.Run(":" + port); err != nil {
		log.Fatalf("start server: %v", err)
	}
}
