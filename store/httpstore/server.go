package httpstore

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/landofcash/aptoosh-sub000/store"
)

// MaxRecordBytes bounds the size of a PUT body.
const MaxRecordBytes = 1 << 20

// HandlerOption configures NewHandler.
type HandlerOption func(*handler)

// WithHandlerLogger sets the request logger.
func WithHandlerLogger(logger *zap.Logger) HandlerOption {
	return func(h *handler) { h.logger = logger }
}

// WithAPIKey requires every request to carry key in the X-API-Key header.
func WithAPIKey(key string) HandlerOption {
	return func(h *handler) { h.apiKey = key }
}

type handler struct {
	backend store.Store
	logger  *zap.Logger
	apiKey  string
}

type errorBody struct {
	Error string `json:"error"`
}

// NewHandler serves backend over HTTP at /orders/:seed/:slot, the layout
// Store expects. GET /healthz reports liveness.
func NewHandler(backend store.Store, opts ...HandlerOption) http.Handler {
	h := &handler{backend: backend, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(h)
	}

	r := gin.New()
	r.Use(gin.Recovery(), h.logRequests())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	orders := r.Group("/orders", h.authenticate())
	orders.GET("/:seed/:slot", h.read)
	orders.PUT("/:seed/:slot", h.write)
	return r
}

func (h *handler) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}

func (h *handler) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.apiKey != "" && c.GetHeader("X-API-Key") != h.apiKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Error: "invalid API key"})
			return
		}
		c.Next()
	}
}

func (h *handler) read(c *gin.Context) {
	rec, err := h.backend.Read(c.Request.Context(), c.Param("seed"), store.Slot(c.Param("slot")))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *handler) write(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxRecordBytes)

	var rec store.Record
	if err := c.ShouldBindJSON(&rec); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: "malformed record: " + err.Error()})
		return
	}

	if err := h.backend.Write(c.Request.Context(), c.Param("seed"), store.Slot(c.Param("slot")), &rec); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrAlreadyPublished):
		status = http.StatusConflict
	case errors.Is(err, store.ErrInvalidRecord),
		errors.Is(err, store.ErrInvalidSlot),
		errors.Is(err, store.ErrInvalidSeed):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("store backend failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.JSON(status, errorBody{Error: "internal error"})
		return
	}
	c.JSON(status, errorBody{Error: err.Error()})
}
