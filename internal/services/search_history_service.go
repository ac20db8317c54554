package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bank_panel_backend/internal/models"
	"bank_panel_backend/internal/repositories"

	"github.com/rs/zerolog/log"
)

// RecentSearchLimit is how many past searches are shown to an admin.
const RecentSearchLimit = 3

var (
	ErrSearchHistoryCorrupt = errors.New("stored search criteria could not be decoded")
	ErrInvalidSearchLimit   = errors.New("search history limit must be positive")
)

// SearchHistoryService is the append-only audit log of client searches per admin.
type SearchHistoryService interface {
	Record(ctx context.Context, adminID string, criteria models.FilterCriteria) error
	LastN(ctx context.Context, adminID string, n int) ([]models.FilterCriteria, error)
}

type searchHistoryService struct {
	repo repositories.SearchRecordRepository
	now  func() time.Time
}

func NewSearchHistoryService(repo repositories.SearchRecordRepository) SearchHistoryService {
	return &searchHistoryService{repo: repo, now: time.Now}
}

// EncodeCriteria renders criteria as the JSON blob kept in SearchRecord.SearchCriteria.
func EncodeCriteria(criteria models.FilterCriteria) (string, error) {
	b, err := json.Marshal(criteria)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeCriteria is the inverse of EncodeCriteria.
func DecodeCriteria(blob string) (models.FilterCriteria, error) {
	var criteria models.FilterCriteria
	if err := json.Unmarshal([]byte(blob), &criteria); err != nil {
		return models.FilterCriteria{}, fmt.Errorf("%w: %v", ErrSearchHistoryCorrupt, err)
	}
	return criteria, nil
}

func (s *searchHistoryService) Record(ctx context.Context, adminID string, criteria models.FilterCriteria) error {
	blob, err := EncodeCriteria(criteria)
	if err != nil {
		return fmt.Errorf("encoding search criteria: %w", err)
	}
	record := &models.SearchRecord{
		AdminID:         adminID,
		SearchCriteria:  blob,
		SearchTimestamp: s.now().UTC(),
	}
	if err := s.repo.InsertSearchRecord(ctx, record); err != nil {
		return fmt.Errorf("failed to record search: %w", err)
	}
	return nil
}

func (s *searchHistoryService) LastN(ctx context.Context, adminID string, n int) ([]models.FilterCriteria, error) {
	if n <= 0 {
		return nil, ErrInvalidSearchLimit
	}
	records, err := s.repo.GetLastSearchRecords(ctx, adminID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to load search history: %w", err)
	}

	out := make([]models.FilterCriteria, 0, len(records))
	for _, rec := range records {
		criteria, err := DecodeCriteria(rec.SearchCriteria)
		if err != nil {
			log.Error().Err(err).Int64("search_record_id", rec.ID).Str("admin_id", adminID).Msg("Corrupt search history entry")
			return nil, err
		}
		out = append(out, criteria)
	}
	return out, nil
}
