package dto

import "github.com/akhilpenumudy/biodataahub/internal/models"

// UploadDatasetRequest carries the multipart form fields of the upload flow.
// Price stays a raw string so a non-numeric value surfaces as a
// validation error before any store is contacted.
type UploadDatasetRequest struct {
	Title         string   `form:"title"`
	Description   string   `form:"description"`
	CurationNotes string   `form:"curation"`
	AccessType    string   `form:"accessType"`
	Price         string   `form:"price"`
	Tags          []string `form:"tags"`
}

// DatasetPreview is the approximate tabular preview of an uploaded CSV:
// a header row plus up to five data rows, split on bare commas.
type DatasetPreview struct {
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// DatasetCard is a dataset joined with its author's display name.
type DatasetCard struct {
	models.Dataset
	AuthorName string `json:"author_name"`
}

// DashboardStats mirrors the dashboard stat cards.
type DashboardStats struct {
	TotalDatasets  int   `json:"total_datasets"`
	TotalDownloads int64 `json:"total_downloads"`
}

// DashboardResponse is the owned-datasets view.
type DashboardResponse struct {
	Stats    DashboardStats   `json:"stats"`
	Datasets []models.Dataset `json:"datasets"`
}

// BrowseResponse is the public-datasets view.
type BrowseResponse struct {
	Datasets []DatasetCard `json:"datasets"`
	Tags     []string      `json:"tags"`
}

// DownloadResponse reports the download target and the current counter.
type DownloadResponse struct {
	ID        string `json:"id"`
	FileURL   string `json:"file_url"`
	Downloads int64  `json:"downloads"`
}
