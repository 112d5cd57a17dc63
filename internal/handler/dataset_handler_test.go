package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akhilpenumudy/biodataahub/internal/dto"
	"github.com/akhilpenumudy/biodataahub/internal/middleware"
	"github.com/akhilpenumudy/biodataahub/internal/models"
	appErrors "github.com/akhilpenumudy/biodataahub/pkg/errors"
)

type fakeDatasetSrv struct {
	uploadResp   *models.Dataset
	uploadErr    error
	previewResp  *dto.DatasetPreview
	ownedResp    *dto.DashboardResponse
	browseResp   *dto.BrowseResponse
	downloadResp *dto.DownloadResponse
	downloadErr  error
	exportBytes  []byte

	lastUpload struct {
		userID   string
		req      dto.UploadDatasetRequest
		filename string
		size     int64
	}
	lastBrowse struct {
		query string
		tag   string
	}
	lastDownload struct {
		id     string
		claims *models.SessionClaims
	}
	lastExportFormat string
}

func (f *fakeDatasetSrv) Upload(_ context.Context, userID string, req dto.UploadDatasetRequest, filename string, size int64, file io.Reader) (*models.Dataset, error) {
	f.lastUpload.userID = userID
	f.lastUpload.req = req
	f.lastUpload.filename = filename
	f.lastUpload.size = size
	return f.uploadResp, f.uploadErr
}

func (f *fakeDatasetSrv) Preview(r io.Reader) (*dto.DatasetPreview, error) {
	return f.previewResp, nil
}

func (f *fakeDatasetSrv) Owned(_ context.Context, userID string) (*dto.DashboardResponse, error) {
	return f.ownedResp, nil
}

func (f *fakeDatasetSrv) Browse(_ context.Context, query, tag string) (*dto.BrowseResponse, error) {
	f.lastBrowse.query = query
	f.lastBrowse.tag = tag
	return f.browseResp, nil
}

func (f *fakeDatasetSrv) RecordDownload(_ context.Context, id string, claims *models.SessionClaims) (*dto.DownloadResponse, error) {
	f.lastDownload.id = id
	f.lastDownload.claims = claims
	return f.downloadResp, f.downloadErr
}

func (f *fakeDatasetSrv) Export(_ context.Context, userID, format string) ([]byte, string, string, error) {
	f.lastExportFormat = format
	return f.exportBytes, "text/csv", "datasets.csv", nil
}

func multipartUpload(t *testing.T, fields map[string]string, tags []string, filename, body string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	for _, tag := range tags {
		require.NoError(t, writer.WriteField("tags", tag))
	}
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return buf, writer.FormDataContentType()
}

func TestDatasetHandlerUpload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeDatasetSrv{uploadResp: &models.Dataset{ID: "ds-1", Title: "EEG"}}
	handler := NewDatasetHandler(srv)

	body, contentType := multipartUpload(t, map[string]string{
		"title":       "EEG",
		"description": "desc",
		"curation":    "notes",
		"accessType":  "paid",
		"price":       "9.99",
	}, []string{"eeg", "sleep"}, "data.csv", "a,b\n1,2\n")

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/uploaddata", body)
	c.Request.Header.Set("Content-Type", contentType)
	c.Set(middleware.ContextUserKey, &models.SessionClaims{UserID: "user-1"})

	handler.Upload(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "user-1", srv.lastUpload.userID)
	assert.Equal(t, "EEG", srv.lastUpload.req.Title)
	assert.Equal(t, "notes", srv.lastUpload.req.CurationNotes)
	assert.Equal(t, "paid", srv.lastUpload.req.AccessType)
	assert.Equal(t, "9.99", srv.lastUpload.req.Price)
	assert.Equal(t, []string{"eeg", "sleep"}, srv.lastUpload.req.Tags)
	assert.Equal(t, "data.csv", srv.lastUpload.filename)
}

func TestDatasetHandlerUploadRequiresSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDatasetHandler(&fakeDatasetSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/uploaddata", nil)

	handler.Upload(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDatasetHandlerUploadRequiresFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDatasetHandler(&fakeDatasetSrv{})

	body, contentType := multipartUpload(t, map[string]string{"title": "EEG"}, nil, "", "")

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/uploaddata", body)
	c.Request.Header.Set("Content-Type", contentType)
	c.Set(middleware.ContextUserKey, &models.SessionClaims{UserID: "user-1"})

	handler.Upload(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDatasetHandlerUploadServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDatasetHandler(&fakeDatasetSrv{uploadErr: appErrors.ErrValidation})

	body, contentType := multipartUpload(t, map[string]string{"title": "EEG"}, nil, "data.csv", "a,b\n")

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/uploaddata", body)
	c.Request.Header.Set("Content-Type", contentType)
	c.Set(middleware.ContextUserKey, &models.SessionClaims{UserID: "user-1"})

	handler.Upload(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDatasetHandlerDashboard(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDatasetHandler(&fakeDatasetSrv{ownedResp: &dto.DashboardResponse{
		Stats: dto.DashboardStats{TotalDatasets: 2, TotalDownloads: 10},
	}})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	c.Set(middleware.ContextUserKey, &models.SessionClaims{UserID: "user-1"})

	handler.Dashboard(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	stats := envelope.Data["stats"].(map[string]interface{})
	assert.Equal(t, float64(2), stats["total_datasets"])
}

func TestDatasetHandlerDashboardRequiresSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDatasetHandler(&fakeDatasetSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard", nil)

	handler.Dashboard(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDatasetHandlerBrowsePassesFilters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeDatasetSrv{browseResp: &dto.BrowseResponse{Tags: []string{"eeg"}}}
	handler := NewDatasetHandler(srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/browseDataSets?q=sleep&tag=eeg", nil)

	handler.Browse(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sleep", srv.lastBrowse.query)
	assert.Equal(t, "eeg", srv.lastBrowse.tag)
}

func TestDatasetHandlerDownload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeDatasetSrv{downloadResp: &dto.DownloadResponse{ID: "ds-1", FileURL: "http://x/files/a.csv", Downloads: 5}}
	handler := NewDatasetHandler(srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/browseDataSets/ds-1/download", nil)
	c.Params = gin.Params{{Key: "id", Value: "ds-1"}}
	c.Set(middleware.ContextUserKey, &models.SessionClaims{UserID: "visitor"})

	handler.Download(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ds-1", srv.lastDownload.id)
	require.NotNil(t, srv.lastDownload.claims)
	assert.Equal(t, "visitor", srv.lastDownload.claims.UserID)
}

func TestDatasetHandlerDownloadAnonymous(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeDatasetSrv{downloadResp: &dto.DownloadResponse{ID: "ds-1"}}
	handler := NewDatasetHandler(srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/browseDataSets/ds-1/download", nil)
	c.Params = gin.Params{{Key: "id", Value: "ds-1"}}

	handler.Download(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, srv.lastDownload.claims)
}

func TestDatasetHandlerDownloadNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDatasetHandler(&fakeDatasetSrv{downloadErr: appErrors.ErrNotFound})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/browseDataSets/missing/download", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	handler.Download(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDatasetHandlerExport(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeDatasetSrv{exportBytes: []byte("Title\nEEG\n")}
	handler := NewDatasetHandler(srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/export?format=csv", nil)
	c.Set(middleware.ContextUserKey, &models.SessionClaims{UserID: "user-1"})

	handler.Export(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "csv", srv.lastExportFormat)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "datasets.csv")
	assert.Equal(t, "Title\nEEG\n", rec.Body.String())
}

type responseEnvelope struct {
	Data map[string]interface{} `json:"data"`
	Meta map[string]interface{} `json:"meta"`
}
