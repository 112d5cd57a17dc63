package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/akhilpenumudy/biodataahub/internal/models"
)

// DatasetRepository handles dataset metadata persistence.
type DatasetRepository struct {
	db *sqlx.DB
}

// NewDatasetRepository constructs the repository.
func NewDatasetRepository(db *sqlx.DB) *DatasetRepository {
	return &DatasetRepository{db: db}
}

const datasetColumns = `id, title, description, curation_notes, file_path, file_url,
       file_size, access_type, price, tags, downloads, user_id, created_at`

// Create stores metadata for an uploaded dataset.
func (r *DatasetRepository) Create(ctx context.Context, d *models.Dataset) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO datasets
	(id, title, description, curation_notes, file_path, file_url, file_size, access_type, price, tags, downloads, user_id, created_at)
	VALUES (:id, :title, :description, :curation_notes, :file_path, :file_url, :file_size, :access_type, :price, :tags, :downloads, :user_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, d); err != nil {
		return fmt.Errorf("create dataset: %w", err)
	}
	return nil
}

// GetByID retrieves one dataset row.
func (r *DatasetRepository) GetByID(ctx context.Context, id string) (*models.Dataset, error) {
	query := `SELECT ` + datasetColumns + ` FROM datasets WHERE id = $1`
	var d models.Dataset
	if err := r.db.GetContext(ctx, &d, query, id); err != nil {
		return nil, err
	}
	return &d, nil
}

// ListByOwner returns all datasets owned by the user, newest first.
func (r *DatasetRepository) ListByOwner(ctx context.Context, userID string) ([]models.Dataset, error) {
	query := `SELECT ` + datasetColumns + ` FROM datasets WHERE user_id = $1 ORDER BY created_at DESC`
	records := make([]models.Dataset, 0)
	if err := r.db.SelectContext(ctx, &records, query, userID); err != nil {
		return nil, fmt.Errorf("list datasets by owner: %w", err)
	}
	return records, nil
}

// ListAll returns every dataset, newest first.
func (r *DatasetRepository) ListAll(ctx context.Context) ([]models.Dataset, error) {
	query := `SELECT ` + datasetColumns + ` FROM datasets ORDER BY created_at DESC`
	records := make([]models.Dataset, 0)
	if err := r.db.SelectContext(ctx, &records, query); err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	return records, nil
}

// IncrementDownloads bumps the download counter atomically and returns
// the new value. The counter never decreases.
func (r *DatasetRepository) IncrementDownloads(ctx context.Context, id string) (int64, error) {
	const query = `UPDATE datasets SET downloads = downloads + 1 WHERE id = $1 RETURNING downloads`
	var downloads int64
	if err := r.db.GetContext(ctx, &downloads, query, id); err != nil {
		if err == sql.ErrNoRows {
			return 0, err
		}
		return 0, fmt.Errorf("increment downloads: %w", err)
	}
	return downloads, nil
}
