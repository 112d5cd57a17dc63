package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/akhilpenumudy/biodataahub/internal/dto"
	"github.com/akhilpenumudy/biodataahub/internal/models"
	appErrors "github.com/akhilpenumudy/biodataahub/pkg/errors"
	"github.com/akhilpenumudy/biodataahub/pkg/response"
)

type datasetService interface {
	Upload(ctx context.Context, userID string, req dto.UploadDatasetRequest, filename string, size int64, file io.Reader) (*models.Dataset, error)
	Preview(r io.Reader) (*dto.DatasetPreview, error)
	Owned(ctx context.Context, userID string) (*dto.DashboardResponse, error)
	Browse(ctx context.Context, query, tag string) (*dto.BrowseResponse, error)
	RecordDownload(ctx context.Context, id string, claims *models.SessionClaims) (*dto.DownloadResponse, error)
	Export(ctx context.Context, userID, format string) ([]byte, string, string, error)
}

// DatasetHandler wires HTTP endpoints to the dataset service.
type DatasetHandler struct {
	service datasetService
}

// NewDatasetHandler creates a new handler.
func NewDatasetHandler(svc datasetService) *DatasetHandler {
	return &DatasetHandler{service: svc}
}

// Dashboard godoc
// @Summary List own datasets
// @Description Returns the caller's datasets with stat totals
// @Tags Datasets
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /dashboard [get]
func (h *DatasetHandler) Dashboard(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	res, err := h.service.Owned(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// Export godoc
// @Summary Export own datasets
// @Description Renders the caller's datasets as CSV or PDF
// @Tags Datasets
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /dashboard/export [get]
func (h *DatasetHandler) Export(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	payload, contentType, filename, err := h.service.Export(c.Request.Context(), claims.UserID, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}

// Upload godoc
// @Summary Upload a dataset
// @Description Stores a CSV file plus its metadata
// @Tags Datasets
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV file"
// @Param title formData string true "Title"
// @Param description formData string true "Description"
// @Param curation formData string true "Curation notes"
// @Param accessType formData string true "opensource or paid"
// @Param price formData string false "Price, required for paid datasets"
// @Param tags formData []string false "Tags"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /uploaddata [post]
func (h *DatasetHandler) Upload(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.UploadDatasetRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid upload form"))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "dataset file is required"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to open uploaded file"))
		return
	}
	defer file.Close()

	dataset, err := h.service.Upload(c.Request.Context(), claims.UserID, req, fileHeader.Filename, fileHeader.Size, file)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dataset)
}

// Preview godoc
// @Summary Preview a CSV file
// @Description Returns the header plus the first rows of the uploaded file
// @Tags Datasets
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV file"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /uploaddata/preview [post]
func (h *DatasetHandler) Preview(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "dataset file is required"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to open uploaded file"))
		return
	}
	defer file.Close()

	preview, err := h.service.Preview(file)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, preview, nil)
}

// Browse godoc
// @Summary Browse all datasets
// @Description Lists every dataset with author names, searchable by query and tag
// @Tags Datasets
// @Produce json
// @Param q query string false "Search query"
// @Param tag query string false "Tag filter"
// @Success 200 {object} response.Envelope
// @Router /browseDataSets [get]
func (h *DatasetHandler) Browse(c *gin.Context) {
	res, err := h.service.Browse(c.Request.Context(), c.Query("q"), c.Query("tag"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// Download godoc
// @Summary Download a dataset
// @Description Resolves the file URL and bumps the download counter
// @Tags Datasets
// @Produce json
// @Param id path string true "Dataset ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /browseDataSets/{id}/download [post]
func (h *DatasetHandler) Download(c *gin.Context) {
	res, err := h.service.RecordDownload(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}
