package httpapi

import (
	"net/http"
	"slices"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/chat-relay/internal/config"
	"github.com/suPer8Hu/chat-relay/internal/httpapi/handlers"
	"github.com/suPer8Hu/chat-relay/internal/httpapi/middleware"
	"go.uber.org/zap"
)

var postOnly = map[string]bool{
	"/api/chat":     true,
	"/create-chat":  true,
	"/log-inputs":   true,
	"/log-message":  true,
	"/generate-doc": true,
}

func NewRouter(h *handlers.Handler, cfg config.ServerConfig, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))
	r.Use(cors.New(corsConfig(cfg.AllowOrigins)))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})
	r.NoMethod(func(c *gin.Context) {
		msg := "Method not allowed"
		if postOnly[c.Request.URL.Path] {
			msg = "Method not allowed. Use POST."
		}
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": msg})
	})

	r.GET("/ping", h.Ping)

	r.POST("/api/chat", h.Chat)
	r.GET("/api/diagnostics/interactions/:request_id", h.InteractionOutcome)

	// logging endpoints
	r.POST("/create-chat", h.CreateChat)
	r.POST("/log-message", h.LogMessage)
	r.POST("/log-inputs", h.LogInputs)
	r.GET("/chats/:chat_id/messages", h.ListMessages)

	r.POST("/generate-doc", h.GenerateDoc)
	return r
}

func corsConfig(origins []string) cors.Config {
	cc := cors.DefaultConfig()
	cc.AllowHeaders = append(cc.AllowHeaders, middleware.RequestIDHeader)
	cc.ExposeHeaders = []string{middleware.RequestIDHeader}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = origins
	}
	return cc
}
