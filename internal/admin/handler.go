package admin

import (
	"context"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"indexer/internal/constants"
	"indexer/internal/logger"
	"indexer/internal/mapping"
	"indexer/internal/runlog"
	"indexer/pkg/errors"
)

// RecordReader returns an archived document by token.
type RecordReader interface {
	Read(token string) ([]byte, error)
}

type MappingService interface {
	Get(ctx context.Context, id string) (*mapping.Mapping, error)
	Create(ctx context.Context, m mapping.Mapping) (*mapping.Mapping, error)
	Execute(ctx context.Context, mappingID, mappingType string, document io.Reader) ([]byte, error)
}

// Handler serves the admin API. Any dependency may be nil, in which case its
// routes answer 503.
type Handler struct {
	Records      RecordReader
	Latest       runlog.LatestReader
	History      runlog.HistoryReader
	Mappings     MappingService
	HistoryLimit int
	Logger       logger.Logger
}

type CreateMappingRequest struct {
	ID           string `json:"id" binding:"required"`
	Type         string `json:"type" binding:"required"`
	DocumentPath string `json:"document_path" binding:"required"`
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		v1.GET("/records/:token", h.GetRecord)

		runs := v1.Group("/runs")
		{
			runs.GET("/:token", h.GetLatestRun)
			runs.GET("/:token/history", h.GetRunHistory)
		}

		mappings := v1.Group("/mappings")
		{
			mappings.POST("", h.CreateMapping)
			mappings.POST("/execute", h.ExecuteMapping)
			mappings.GET("/:id", h.GetMapping)
		}
	}
}

func (h *Handler) handleError(c *gin.Context, err error) {
	status := errors.ToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	} else {
		h.Logger.DebugwCtx(c.Request.Context(), "Request rejected", "error", err, "path", c.Request.URL.Path)
	}
	c.JSON(status, errors.ToErrorResponse(err))
}

func unavailable(feature string) error {
	return errors.ErrUnavailable.WithDetail("feature", feature)
}

func (h *Handler) GetRecord(c *gin.Context) {
	if h.Records == nil {
		h.handleError(c, unavailable("records"))
		return
	}

	doc, err := h.Records.Read(c.Param("token"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", doc)
}

func (h *Handler) GetLatestRun(c *gin.Context) {
	if h.Latest == nil {
		h.handleError(c, unavailable("run_status"))
		return
	}

	run, err := h.Latest.Latest(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

func (h *Handler) GetRunHistory(c *gin.Context) {
	if h.History == nil {
		h.handleError(c, unavailable("run_history"))
		return
	}

	runs, err := h.History.History(c.Request.Context(), c.Param("token"), h.parseLimit(c.Query("limit")))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, runs)
}

func (h *Handler) parseLimit(limitStr string) int {
	fallback := h.HistoryLimit
	if fallback <= 0 {
		fallback = constants.DefaultHistoryLimit
	}
	if limitStr == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(limitStr)
	if err != nil || parsed <= 0 {
		return fallback
	}
	if parsed > constants.MaxHistoryLimit {
		return constants.MaxHistoryLimit
	}
	return parsed
}

func (h *Handler) GetMapping(c *gin.Context) {
	if h.Mappings == nil {
		h.handleError(c, unavailable("mappings"))
		return
	}

	m, err := h.Mappings.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handler) CreateMapping(c *gin.Context) {
	if h.Mappings == nil {
		h.handleError(c, unavailable("mappings"))
		return
	}

	var req CreateMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	m, err := h.Mappings.Create(c.Request.Context(), mapping.Mapping{
		ID:           req.ID,
		Type:         req.Type,
		DocumentPath: req.DocumentPath,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// ExecuteMapping takes a multipart form with a "document" file, a
// "mappingID" and an optional "mappingType".
func (h *Handler) ExecuteMapping(c *gin.Context) {
	if h.Mappings == nil {
		h.handleError(c, unavailable("mappings"))
		return
	}

	mappingID := c.PostForm("mappingID")
	if mappingID == "" {
		h.handleError(c, errors.ErrValidation.WithDetail("field", "mappingID"))
		return
	}

	header, err := c.FormFile("document")
	if err != nil {
		h.handleError(c, errors.ErrValidation.WithDetail("field", "document").WithCause(err))
		return
	}
	file, err := header.Open()
	if err != nil {
		h.handleError(c, errors.ErrValidation.WithDetail("field", "document").WithCause(err))
		return
	}
	defer file.Close()

	result, err := h.Mappings.Execute(c.Request.Context(), mappingID, c.PostForm("mappingType"), file)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": header.Filename}))
	c.Data(http.StatusOK, "application/octet-stream", result)
}
