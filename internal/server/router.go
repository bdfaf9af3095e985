package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"rag-chatbot/internal/config"
)

const shutdownTimeout = 10 * time.Second

type RouterConfig struct {
	Server    config.ServerConfig
	JWTSecret string
	MaxBytes  int64
	Handlers  *Handlers
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	router.MaxMultipartMemory = cfg.MaxBytes

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/health", Health)

	// ===============
	// || Protected ||
	// ===============
	protected := router.Group("/")
	protected.Use(RequireAuth(cfg.JWTSecret), RateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst))

	h := cfg.Handlers
	files := protected.Group("/files")
	files.POST("/upload", h.Upload)
	files.POST("/upload-multiple", h.UploadMultiple)
	files.GET("/list", h.ListFiles)
	files.DELETE("/:id", h.DeleteFile)

	protected.POST("/api/chat", h.Chat)
	protected.POST("/api/chat/stream", h.ChatStream)
	protected.GET("/api/chat/stream", h.ChatStream)

	history := protected.Group("/chat-history")
	history.GET("", h.ListHistory)
	history.DELETE("", h.ClearHistory)
	history.GET("/stats/summary", h.HistoryStats)
	history.GET("/:id", h.GetHistory)
	history.DELETE("/:id", h.DeleteHistory)

	return router
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("owner_id", OwnerID(c)).
			Msg("Request")
	}
}

// Run serves router on addr until ctx is cancelled, then shuts down.
func Run(ctx context.Context, addr string, router http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	log.Info().Msg("Shutting down server")
	return srv.Shutdown(shutdownCtx)
}
