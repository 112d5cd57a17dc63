package service

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akhilpenumudy/biodataahub/internal/dto"
	"github.com/akhilpenumudy/biodataahub/internal/models"
	appErrors "github.com/akhilpenumudy/biodataahub/pkg/errors"
	"github.com/akhilpenumudy/biodataahub/pkg/export"
)

const (
	browseCacheKey     = "datasets:browse"
	datasetCachePrefix = "datasets:*"

	previewMaxRows      = 5
	previewMaxLineBytes = 1 << 20
)

type datasetRepository interface {
	Create(ctx context.Context, d *models.Dataset) error
	GetByID(ctx context.Context, id string) (*models.Dataset, error)
	ListByOwner(ctx context.Context, userID string) ([]models.Dataset, error)
	ListAll(ctx context.Context) ([]models.Dataset, error)
	IncrementDownloads(ctx context.Context, id string) (int64, error)
}

type authorProfileRepository interface {
	ProfilesByIDs(ctx context.Context, ids []string) (map[string]models.AuthorProfile, error)
}

type datasetObjectStore interface {
	Upload(key string, r io.Reader) (string, error)
	Delete(key string) error
	PublicURL(key string) string
}

// DatasetConfig bounds upload and caching behaviour.
type DatasetConfig struct {
	MaxFileSizeBytes int64
	BrowseCacheTTL   time.Duration
}

// DatasetService implements dataset upload, browsing, downloads and
// dashboard exports.
type DatasetService struct {
	repo     datasetRepository
	profiles authorProfileRepository
	store    datasetObjectStore
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
	config   DatasetConfig

	csvExporter *export.CSVExporter
	pdfExporter *export.PDFExporter
}

// NewDatasetService constructs a DatasetService.
func NewDatasetService(repo datasetRepository, profiles authorProfileRepository, store datasetObjectStore, cache *CacheService, metrics *MetricsService, logger *zap.Logger, config DatasetConfig) *DatasetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxFileSizeBytes <= 0 {
		config.MaxFileSizeBytes = 50 << 20
	}
	return &DatasetService{
		repo:        repo,
		profiles:    profiles,
		store:       store,
		cache:       cache,
		metrics:     metrics,
		logger:      logger,
		config:      config,
		csvExporter: export.NewCSVExporter(),
		pdfExporter: export.NewPDFExporter(),
	}
}

// Upload validates the form fields, persists the file and then the
// metadata row. The stored object is removed again when the metadata
// insert fails so no orphaned files accumulate.
func (s *DatasetService) Upload(ctx context.Context, userID string, req dto.UploadDatasetRequest, filename string, size int64, file io.Reader) (*models.Dataset, error) {
	if userID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "not authenticated")
	}

	title := strings.TrimSpace(req.Title)
	description := strings.TrimSpace(req.Description)
	curation := strings.TrimSpace(req.CurationNotes)
	if title == "" || description == "" || curation == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "title, description and curation notes are required")
	}

	accessType := models.AccessType(req.AccessType)
	if !accessType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "access type must be opensource or paid")
	}

	var price float64
	if accessType == models.AccessPaid {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(req.Price), 64)
		if err != nil || parsed < 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "price must be a non-negative number")
		}
		price = parsed
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext != ".csv" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only .csv files are accepted")
	}
	if size <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "uploaded file is empty")
	}
	if size > s.config.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds the %d byte limit", s.config.MaxFileSizeBytes))
	}

	key := fmt.Sprintf("%s/%s%s", userID, uuid.NewString(), ext)
	storedPath, err := s.store.Upload(key, file)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store dataset file")
	}

	dataset := &models.Dataset{
		ID:            uuid.NewString(),
		Title:         title,
		Description:   description,
		CurationNotes: curation,
		FilePath:      storedPath,
		FileURL:       s.store.PublicURL(key),
		FileSize:      size,
		AccessType:    accessType,
		Price:         price,
		Tags:          normalizeTags(req.Tags),
		UserID:        userID,
	}

	if err := s.repo.Create(ctx, dataset); err != nil {
		if delErr := s.store.Delete(key); delErr != nil {
			s.logger.Warn("failed to remove orphaned dataset file", zap.String("key", key), zap.Error(delErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save dataset metadata")
	}

	if s.metrics != nil {
		s.metrics.RecordDatasetUpload()
	}
	if err := s.cache.Invalidate(ctx, datasetCachePrefix); err != nil {
		s.logger.Warn("failed to invalidate dataset cache", zap.Error(err))
	}

	return dataset, nil
}

// Preview splits the head of a CSV stream into a header row plus up to
// five data rows. Lines are split on bare commas; quoted fields that
// contain commas come out misaligned, which is acceptable for a rough
// pre-upload glance at the data.
func (s *DatasetService) Preview(r io.Reader) (*dto.DatasetPreview, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), previewMaxLineBytes)

	preview := &dto.DatasetPreview{Rows: make([][]string, 0, previewMaxRows)}
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if preview.Header == nil {
			preview.Header = strings.Split(line, ",")
			continue
		}
		preview.Rows = append(preview.Rows, strings.Split(line, ","))
		if len(preview.Rows) == previewMaxRows {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read csv preview")
	}
	if preview.Header == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file contains no rows")
	}
	return preview, nil
}

// Owned returns the caller's datasets newest first plus the dashboard
// stat totals.
func (s *DatasetService) Owned(ctx context.Context, userID string) (*dto.DashboardResponse, error) {
	if userID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "not authenticated")
	}
	datasets, err := s.repo.ListByOwner(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list datasets")
	}

	stats := dto.DashboardStats{TotalDatasets: len(datasets)}
	for _, d := range datasets {
		stats.TotalDownloads += d.Downloads
	}
	return &dto.DashboardResponse{Stats: stats, Datasets: datasets}, nil
}

// Browse returns every dataset with resolved author names, filtered by
// the optional search query and tag. The unfiltered listing is cached;
// filters always run in memory against the full set.
func (s *DatasetService) Browse(ctx context.Context, query, tag string) (*dto.BrowseResponse, error) {
	cards, err := s.browseListing(ctx)
	if err != nil {
		return nil, err
	}

	tags := collectTags(cards)
	filtered := filterCards(cards, query, tag)
	return &dto.BrowseResponse{Datasets: filtered, Tags: tags}, nil
}

func (s *DatasetService) browseListing(ctx context.Context) ([]dto.DatasetCard, error) {
	var cached []dto.DatasetCard
	if hit, err := s.cache.Get(ctx, browseCacheKey, &cached); err == nil && hit {
		return cached, nil
	}

	datasets, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list datasets")
	}

	ownerIDs := make([]string, 0, len(datasets))
	seen := make(map[string]struct{}, len(datasets))
	for _, d := range datasets {
		if _, ok := seen[d.UserID]; ok {
			continue
		}
		seen[d.UserID] = struct{}{}
		ownerIDs = append(ownerIDs, d.UserID)
	}

	profiles, err := s.profiles.ProfilesByIDs(ctx, ownerIDs)
	if err != nil {
		// Author names degrade to "Anonymous" rather than failing the page.
		s.logger.Warn("failed to load author profiles", zap.Error(err))
		profiles = map[string]models.AuthorProfile{}
	}

	cards := make([]dto.DatasetCard, 0, len(datasets))
	for _, d := range datasets {
		name := "Anonymous"
		if profile, ok := profiles[d.UserID]; ok {
			name = profile.DisplayName()
		}
		cards = append(cards, dto.DatasetCard{Dataset: d, AuthorName: name})
	}

	if err := s.cache.Set(ctx, browseCacheKey, cards, s.config.BrowseCacheTTL); err != nil {
		s.logger.Warn("failed to cache dataset listing", zap.Error(err))
	}
	return cards, nil
}

// RecordDownload resolves the download target and bumps the counter.
// Owners downloading their own dataset do not move the counter, and a
// failed increment still returns the file so the download goes through.
func (s *DatasetService) RecordDownload(ctx context.Context, datasetID string, claims *models.SessionClaims) (*dto.DownloadResponse, error) {
	dataset, err := s.repo.GetByID(ctx, datasetID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "dataset not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load dataset")
	}

	resp := &dto.DownloadResponse{ID: dataset.ID, FileURL: dataset.FileURL, Downloads: dataset.Downloads}

	if claims != nil && claims.UserID == dataset.UserID {
		return resp, nil
	}

	count, err := s.repo.IncrementDownloads(ctx, dataset.ID)
	if err != nil {
		s.logger.Warn("failed to increment download counter", zap.String("dataset_id", dataset.ID), zap.Error(err))
		return resp, nil
	}
	resp.Downloads = count

	if s.metrics != nil {
		s.metrics.RecordDatasetDownload(string(dataset.AccessType))
	}
	if err := s.cache.Invalidate(ctx, datasetCachePrefix); err != nil {
		s.logger.Warn("failed to invalidate dataset cache", zap.Error(err))
	}
	return resp, nil
}

// Export renders the caller's datasets as a CSV or PDF document.
func (s *DatasetService) Export(ctx context.Context, userID, format string) ([]byte, string, string, error) {
	if userID == "" {
		return nil, "", "", appErrors.Clone(appErrors.ErrUnauthorized, "not authenticated")
	}

	datasets, err := s.repo.ListByOwner(ctx, userID)
	if err != nil {
		return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list datasets")
	}

	table := export.Table{
		Headers: []string{"Title", "Access", "Price", "Tags", "Size", "Downloads", "Uploaded"},
		Rows:    make([]map[string]string, 0, len(datasets)),
	}
	for _, d := range datasets {
		table.Rows = append(table.Rows, map[string]string{
			"Title":     d.Title,
			"Access":    string(d.AccessType),
			"Price":     strconv.FormatFloat(d.Price, 'f', 2, 64),
			"Tags":      strings.Join(d.Tags, ", "),
			"Size":      strconv.FormatInt(d.FileSize, 10),
			"Downloads": strconv.FormatInt(d.Downloads, 10),
			"Uploaded":  d.CreatedAt.UTC().Format("2006-01-02"),
		})
	}

	switch strings.ToLower(format) {
	case "csv", "":
		payload, err := s.csvExporter.Render(table)
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		return payload, "text/csv", "datasets.csv", nil
	case "pdf":
		payload, err := s.pdfExporter.Render(table, "My Datasets")
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		return payload, "application/pdf", "datasets.pdf", nil
	default:
		return nil, "", "", appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

func normalizeTags(raw []string) []string {
	tags := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, t := range raw {
		tag := strings.TrimSpace(t)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}

func collectTags(cards []dto.DatasetCard) []string {
	seen := make(map[string]struct{})
	tags := make([]string, 0)
	for _, c := range cards {
		for _, t := range c.Tags {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			tags = append(tags, t)
		}
	}
	sort.Strings(tags)
	return tags
}

func filterCards(cards []dto.DatasetCard, query, tag string) []dto.DatasetCard {
	query = strings.ToLower(strings.TrimSpace(query))
	tag = strings.TrimSpace(tag)
	filterTag := tag != "" && !strings.EqualFold(tag, "all")

	if query == "" && !filterTag {
		return cards
	}

	filtered := make([]dto.DatasetCard, 0, len(cards))
	for _, c := range cards {
		if query != "" &&
			!strings.Contains(strings.ToLower(c.Title), query) &&
			!strings.Contains(strings.ToLower(c.Description), query) &&
			!strings.Contains(strings.ToLower(c.AuthorName), query) {
			continue
		}
		if filterTag && !c.HasTag(tag) {
			continue
		}
		filtered = append(filtered, c)
	}
	return filtered
}
