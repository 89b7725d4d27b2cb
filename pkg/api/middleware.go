package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"reservas_api/pkg/apperr"
	"reservas_api/pkg/events"
	"reservas_api/pkg/metrics"
)

const (
	headerRequestID = "X-Request-ID"
	msgNotFound     = "Recurso no encontrado"
	msgBadJSON      = "Cuerpo JSON inválido"
)

// requestID propagates or assigns X-Request-ID and carries it on the request
// context so published events share it as their correlation id.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("request_id", id)
		c.Header(headerRequestID, id)
		c.Request = c.Request.WithContext(events.WithCorrelationID(c.Request.Context(), id))
		c.Next()
	}
}

func accessLog(log *zap.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)
		status := c.Writer.Status()

		m.ObserveRequest(c.Request.Method, c.FullPath(), status, elapsed)
		log.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", elapsed),
			zap.String("request_id", c.GetString("request_id")),
		)
	}
}

func recovery(log *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.Error("Panic recovered", zap.Any("panic", recovered), zap.String("path", c.Request.URL.Path))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Error interno del servidor"})
	})
}

// errorHandler renders the last error attached with c.Error as {"error": msg}.
// Unexpected errors are logged with their cause and answered generically.
func errorHandler(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		appErr := apperr.As(c.Errors.Last().Err)
		message := appErr.Message
		if appErr.Kind == apperr.KindUnexpected {
			log.Error("Request failed",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", c.GetString("request_id")),
				zap.Error(appErr),
			)
			message = "Error interno del servidor"
		}
		c.JSON(appErr.Kind.Status(), gin.H{"error": message})
	}
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": msgNotFound})
}

// pathID parses the :id parameter. A non-numeric id does not name any
// resource, so it is answered like an unknown route.
func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 0)
	if err != nil {
		notFound(c)
		return 0, false
	}
	return uint(id), true
}

// bindJSON decodes the body into dst. An empty body decodes as an empty object.
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		_ = c.Error(apperr.Validation(msgBadJSON))
		return false
	}
	return true
}
