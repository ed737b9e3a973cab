package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"web2json/internal/errs"
	"web2json/internal/models"
	"web2json/internal/service"
)

type Handler struct {
	service Servicer
	Log     *slog.Logger
}

type Servicer interface {
	CreateTask(ctx context.Context, req models.GenerateRequest) (*models.GenerateResponse, error)
	GetStatusTask(ctx context.Context, taskID string) (*models.StatusResponse, error)
	CancelTask(ctx context.Context, taskID string) (*models.CancelResponse, error)
	Download(ctx context.Context, taskID string, kind models.ArtifactKind) (*service.Download, error)
	Results(ctx context.Context, taskID string) (*models.ResultsResponse, error)
	PreliminarySchema(ctx context.Context, req models.GenerateRequest) (*models.SchemaResponse, error)
	GenerateXPath(ctx context.Context, req models.XPathRequest) (*models.XPathResponse, error)
	GetConfig(ctx context.Context) models.APIConfig
	UpdateConfig(ctx context.Context, upd models.APIConfigUpdate) (*models.UpdateConfigResponse, error)
}

func NewHandler(srv Servicer, log *slog.Logger) *Handler {
	return &Handler{
		service: srv,
		Log:     log,
	}
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrServerBusy):
		return http.StatusServiceUnavailable
	}

	switch errs.KindOf(err) {
	case errs.KindValidation, errs.KindState:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (h *Handler) fail(c *gin.Context, err error) {
	code := statusCode(err)
	if code >= http.StatusInternalServerError {
		h.Log.Error("request failed", slog.String("path", c.Request.URL.Path), slog.String("error", err.Error()))
	}

	c.JSON(code, models.ErrorResponse{
		Request: c.Request.URL.Path,
		Detail:  err.Error(),
	})
}

func (h *Handler) bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		h.Log.Warn("invalid request", slog.String("path", c.Request.URL.Path), slog.String("error", err.Error()))

		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Request: c.Request.URL.Path,
			Detail:  err.Error(),
		})
		return false
	}
	return true
}

func (h *Handler) CreateTask(c *gin.Context) {
	var req models.GenerateRequest
	if !h.bind(c, &req) {
		return
	}

	res, err := h.service.CreateTask(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *Handler) GetStatusTask(c *gin.Context) {
	res, err := h.service.GetStatusTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *Handler) CancelTask(c *gin.Context) {
	res, err := h.service.CancelTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *Handler) Download(c *gin.Context) {
	kind := models.ArtifactKind(c.DefaultQuery("type", string(models.ArtifactZIP)))

	d, err := h.service.Download(c.Request.Context(), c.Param("id"), kind)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+d.FileName)
	c.Data(http.StatusOK, d.ContentType, d.Data)
}

func (h *Handler) Results(c *gin.Context) {
	res, err := h.service.Results(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *Handler) PreliminarySchema(c *gin.Context) {
	var req models.GenerateRequest
	if !h.bind(c, &req) {
		return
	}

	res, err := h.service.PreliminarySchema(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *Handler) GenerateXPath(c *gin.Context) {
	var req models.XPathRequest
	if !h.bind(c, &req) {
		return
	}

	res, err := h.service.GenerateXPath(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *Handler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.GetConfig(c.Request.Context()))
}

func (h *Handler) UpdateConfig(c *gin.Context) {
	var upd models.APIConfigUpdate
	if !h.bind(c, &upd) {
		return
	}

	res, err := h.service.UpdateConfig(c.Request.Context(), upd)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}
