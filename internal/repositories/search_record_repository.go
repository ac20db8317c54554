package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"

	"bank_panel_backend/internal/models"

	"github.com/google/uuid"
)

// SearchRecordRepository stores the append-only audit log of client searches.
type SearchRecordRepository interface {
	InsertSearchRecord(ctx context.Context, record *models.SearchRecord) error
	// GetLastSearchRecords returns at most n records of adminID, newest first.
	GetLastSearchRecords(ctx context.Context, adminID string, n int) ([]models.SearchRecord, error)
}

type searchRecordRepository struct {
	db *sql.DB
}

// NewSearchRecordRepository creates a new PostgreSQL backed SearchRecordRepository.
func NewSearchRecordRepository(db *sql.DB) SearchRecordRepository {
	return &searchRecordRepository{db: db}
}

// InsertSearchRecord stores record. admin_id references users (id), so the
// owner must be an existing user.
func (r *searchRecordRepository) InsertSearchRecord(ctx context.Context, record *models.SearchRecord) error {
	if _, err := uuid.Parse(record.AdminID); err != nil {
		return fmt.Errorf("%w: admin id %q is not a user id", ErrReferenced, record.AdminID)
	}
	query := `INSERT INTO search_records (admin_id, search_criteria, search_timestamp)
	          VALUES ($1, $2, $3)
	          RETURNING id`
	err := r.db.QueryRowContext(ctx, query, record.AdminID, record.SearchCriteria, record.SearchTimestamp).Scan(&record.ID)
	if err != nil {
		return wrapWriteError(err, "inserting search record for admin "+record.AdminID)
	}
	return nil
}

func (r *searchRecordRepository) GetLastSearchRecords(ctx context.Context, adminID string, n int) ([]models.SearchRecord, error) {
	if _, err := uuid.Parse(adminID); err != nil {
		return []models.SearchRecord{}, nil
	}
	query := `SELECT id, admin_id, search_criteria, search_timestamp
	            FROM search_records
	           WHERE admin_id = $1
	           ORDER BY search_timestamp DESC, id DESC
	           LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, adminID, n)
	if err != nil {
		return nil, fmt.Errorf("%w: querying search records for admin %s: %v", ErrDatabaseError, adminID, err)
	}
	defer rows.Close()

	records := []models.SearchRecord{}
	for rows.Next() {
		var rec models.SearchRecord
		if err := rows.Scan(&rec.ID, &rec.AdminID, &rec.SearchCriteria, &rec.SearchTimestamp); err != nil {
			return nil, fmt.Errorf("%w: scanning search record: %v", ErrDatabaseError, err)
		}
		rec.SearchTimestamp = rec.SearchTimestamp.UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating search record rows: %v", ErrDatabaseError, err)
	}
	return records, nil
}

type memorySearchRecordRepository struct {
	mu      sync.Mutex
	records []models.SearchRecord
	nextID  int64
}

// NewMemorySearchRecordRepository creates an in-process SearchRecordRepository.
func NewMemorySearchRecordRepository() SearchRecordRepository {
	return &memorySearchRecordRepository{}
}

func (r *memorySearchRecordRepository) InsertSearchRecord(ctx context.Context, record *models.SearchRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	record.ID = r.nextID
	r.records = append(r.records, *record)
	return nil
}

func (r *memorySearchRecordRepository) GetLastSearchRecords(ctx context.Context, adminID string, n int) ([]models.SearchRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	owned := []models.SearchRecord{}
	for _, rec := range r.records {
		if rec.AdminID == adminID {
			owned = append(owned, rec)
		}
	}
	r.mu.Unlock()

	sort.SliceStable(owned, func(i, j int) bool {
		if !owned[i].SearchTimestamp.Equal(owned[j].SearchTimestamp) {
			return owned[i].SearchTimestamp.After(owned[j].SearchTimestamp)
		}
		return owned[i].ID > owned[j].ID
	})
	if n >= 0 && len(owned) > n {
		owned = owned[:n]
	}
	return owned, nil
}
