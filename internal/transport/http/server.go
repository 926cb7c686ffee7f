package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat-server/internal/config"
	"github.com/vovakirdan/roomchat-server/internal/core"
)

// NewServer builds the HTTP server: websocket endpoint, health check, and a
// static asset fallback for the chat UI.
func NewServer(registry *core.Registry, dispatcher *core.Dispatcher, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(LoggerMiddleware(logger), gin.Recovery())

	router.GET("/healthz", healthHandler)
	router.GET("/ws", gin.WrapH(NewWSHandler(registry, dispatcher, cfg.DeliveryBuffer, logger)))

	if cfg.StaticDir != "" {
		// FileServer appends index.html on directory requests.
		router.NoRoute(gin.WrapH(stdhttp.FileServer(stdhttp.Dir(cfg.StaticDir))))
	}

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
