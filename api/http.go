package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/siherrmann/wikigraph/model"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const serviceName = "wikigraph"

// Service is the answer flow exposed by the HTTP and MCP surfaces
type Service interface {
	Converse(ctx context.Context, conversationID string, query string) (*model.Answer, error)
	Clarify(ctx context.Context, conversationID string, clarification string) (*model.Answer, error)
	Conversation(ctx context.Context, conversationID string) (*model.Conversation, error)
	DeleteConversation(ctx context.Context, conversationID string) error
	SubmitFeedback(ctx context.Context, conversationID string, helpful bool, text string) (*model.Feedback, error)
	PageTree(ctx context.Context, spaceID string, highlight ...string) (string, error)
}

// AskRequest is the body of POST /ask. Without a conversation id a new
// conversation is started.
type AskRequest struct {
	Query          string `json:"query" binding:"required"`
	ConversationID string `json:"conversation_id"`
}

// ClarifyRequest is the body of POST /clarify/:id
type ClarifyRequest struct {
	Clarification string `json:"clarification" binding:"required"`
}

// FeedbackRequest is the body of POST /feedback
type FeedbackRequest struct {
	ConversationID string `json:"conversation_id" binding:"required"`
	Helpful        *bool  `json:"helpful" binding:"required"`
	Text           string `json:"feedback_text"`
}

// NewRouter creates the gin router with the answer, conversation, /tree,
// /healthz and /metrics routes. A nil registry leaves /metrics out.
func NewRouter(service Service, registry *prometheus.Registry, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(requestLogger(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})
	if registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	router.POST("/ask", func(c *gin.Context) {
		var request AskRequest
		if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Query) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
			return
		}

		answer, err := service.Converse(c.Request.Context(), request.ConversationID, request.Query)
		if err != nil {
			logger.Error("Error answering question", slog.String("error", err.Error()))
			c.JSON(statusOf(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, answer)
	})

	router.POST("/clarify/:id", func(c *gin.Context) {
		var request ClarifyRequest
		if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Clarification) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "clarification is required"})
			return
		}

		answer, err := service.Clarify(c.Request.Context(), c.Param("id"), request.Clarification)
		if err != nil {
			logger.Error("Error answering clarification", slog.String("conversation", c.Param("id")), slog.String("error", err.Error()))
			c.JSON(statusOf(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, answer)
	})

	router.GET("/conversation/:id", func(c *gin.Context) {
		conversation, err := service.Conversation(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(statusOf(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, conversation)
	})

	router.DELETE("/conversation/:id", func(c *gin.Context) {
		if err := service.DeleteConversation(c.Request.Context(), c.Param("id")); err != nil {
			c.JSON(statusOf(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "conversation deleted"})
	})

	router.POST("/feedback", func(c *gin.Context) {
		var request FeedbackRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "conversation_id and helpful are required"})
			return
		}

		feedback, err := service.SubmitFeedback(c.Request.Context(), request.ConversationID, *request.Helpful, request.Text)
		if err != nil {
			c.JSON(statusOf(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "feedback received", "feedback_id": feedback.ID})
	})

	router.GET("/tree", func(c *gin.Context) {
		tree, err := service.PageTree(c.Request.Context(), c.Query("space"), c.QueryArray("highlight")...)
		if err != nil {
			c.JSON(statusOf(err), gin.H{"error": err.Error()})
			return
		}
		c.String(http.StatusOK, tree)
	})

	return router
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, model.ErrCapabilityUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("Handled request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	}
}

// Serve runs the handler on addr until ctx is cancelled and then shuts down gracefully
func Serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		logger.Info("Server starting", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
