// Package api exposes detection and classification over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/product-detector/internal/domain"
	"github.com/jonesrussell/north-cloud/product-detector/internal/fetcher"
	"github.com/jonesrussell/north-cloud/product-detector/internal/logger"
	"github.com/jonesrussell/north-cloud/product-detector/internal/service"
)

// Detector is the part of service.Service the handlers use.
type Detector interface {
	Detect(page string) ([]domain.Segment, error)
	Classify(url, page string) (*domain.PageResult, error)
	Ready() bool
	Classifiers() []string
}

// PageRequest carries either inline HTML or a URL to fetch.
type PageRequest struct {
	HTML string `json:"html"`
	URL  string `json:"url"`
}

type DetectResponse struct {
	URL      string           `json:"url,omitempty"`
	Count    int              `json:"count"`
	Segments []domain.Segment `json:"segments"`
}

type ErrorResponse struct {
	Error  string             `json:"error"`
	Result *domain.PageResult `json:"result,omitempty"`
}

type HealthResponse struct {
	Status      string   `json:"status"`
	Service     string   `json:"service"`
	Version     string   `json:"version"`
	Uptime      string   `json:"uptime"`
	Ready       bool     `json:"ready"`
	Classifiers []string `json:"classifiers"`
}

// Handler serves the API. fetch may be nil, in which case requests must
// carry inline HTML.
type Handler struct {
	svc       Detector
	fetch     fetcher.Fetcher
	metrics   http.Handler
	name      string
	version   string
	startTime time.Time
}

func NewHandler(svc Detector, fetch fetcher.Fetcher, metrics http.Handler, name, version string) *Handler {
	return &Handler{
		svc:       svc,
		fetch:     fetch,
		metrics:   metrics,
		name:      name,
		version:   version,
		startTime: time.Now(),
	}
}

// Register adds every route to r.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/health", h.Health)
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics))
	}

	v1 := r.Group("/api/v1")
	v1.POST("/detect", h.Detect)
	v1.POST("/classify", h.Classify)
}

// Health reports degraded until classifiers are loaded; detection still works.
func (h *Handler) Health(c *gin.Context) {
	status := "healthy"
	if !h.svc.Ready() {
		status = "degraded"
	}
	classifiers := h.svc.Classifiers()
	if classifiers == nil {
		classifiers = []string{}
	}
	c.JSON(http.StatusOK, HealthResponse{
		Status:      status,
		Service:     h.name,
		Version:     h.version,
		Uptime:      time.Since(h.startTime).Truncate(time.Second).String(),
		Ready:       h.svc.Ready(),
		Classifiers: classifiers,
	})
}

func (h *Handler) Detect(c *gin.Context) {
	url, page, ok := h.page(c)
	if !ok {
		return
	}

	segments, err := h.svc.Detect(page)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, err, nil)
		return
	}
	c.JSON(http.StatusOK, DetectResponse{URL: url, Count: len(segments), Segments: segments})
}

func (h *Handler) Classify(c *gin.Context) {
	if !h.svc.Ready() {
		h.fail(c, http.StatusServiceUnavailable, service.ErrNotInitialized, nil)
		return
	}

	url, page, ok := h.page(c)
	if !ok {
		return
	}

	res, err := h.svc.Classify(url, page)
	switch {
	case errors.Is(err, service.ErrNotInitialized):
		h.fail(c, http.StatusServiceUnavailable, err, nil)
	case err != nil:
		h.fail(c, http.StatusInternalServerError, err, res)
	default:
		c.JSON(http.StatusOK, res)
	}
}

// page resolves the request to (url, html), writing the error response
// itself when it cannot.
func (h *Handler) page(c *gin.Context) (string, string, bool) {
	var req PageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(c, http.StatusRequestEntityTooLarge, err, nil)
		} else {
			h.fail(c, http.StatusBadRequest, err, nil)
		}
		return "", "", false
	}

	req.URL = strings.TrimSpace(req.URL)
	switch {
	case req.HTML != "" && req.URL != "":
		// Inline HTML wins; the URL is kept for reporting.
		return req.URL, req.HTML, true
	case req.HTML != "":
		return "", req.HTML, true
	case req.URL == "":
		h.fail(c, http.StatusBadRequest, errors.New("one of html or url is required"), nil)
		return "", "", false
	case h.fetch == nil:
		h.fail(c, http.StatusBadRequest, errors.New("url fetching is disabled; send html"), nil)
		return "", "", false
	}

	page, err := h.fetch.Fetch(c.Request.Context(), req.URL)
	if err != nil {
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, fetcher.ErrInvalidURL):
			status = http.StatusBadRequest
		case errors.Is(err, context.DeadlineExceeded):
			status = http.StatusGatewayTimeout
		}
		h.fail(c, status, err, nil)
		return "", "", false
	}
	return req.URL, page, true
}

func (h *Handler) fail(c *gin.Context, status int, err error, res *domain.PageResult) {
	_ = c.Error(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(c.Request.Context()).Warn("Request failed",
			logger.Int("status", status), logger.Error(err))
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Result: res})
}
