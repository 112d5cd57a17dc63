package models

import (
	"time"

	"github.com/lib/pq"
)

// AccessType controls whether a dataset is free or paid.
type AccessType string

const (
	AccessOpenSource AccessType = "opensource"
	AccessPaid       AccessType = "paid"
)

// Valid reports whether the access type is one of the known values.
func (a AccessType) Valid() bool {
	return a == AccessOpenSource || a == AccessPaid
}

// Dataset represents one uploaded dataset's metadata row.
// Price is meaningful only when AccessType is "paid"; Downloads only
// ever increases and UserID is immutable after creation.
type Dataset struct {
	ID            string         `db:"id" json:"id"`
	Title         string         `db:"title" json:"title"`
	Description   string         `db:"description" json:"description"`
	CurationNotes string         `db:"curation_notes" json:"curation_notes"`
	FilePath      string         `db:"file_path" json:"file_path"`
	FileURL       string         `db:"file_url" json:"file_url"`
	FileSize      int64          `db:"file_size" json:"file_size"`
	AccessType    AccessType     `db:"access_type" json:"access_type"`
	Price         float64        `db:"price" json:"price"`
	Tags          pq.StringArray `db:"tags" json:"tags"`
	Downloads     int64          `db:"downloads" json:"downloads"`
	UserID        string         `db:"user_id" json:"user_id"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
}

// HasTag reports exact membership of tag in the record's tag list.
func (d *Dataset) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
