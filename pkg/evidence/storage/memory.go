package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"gatekeeper-hq/gatekeeper/pkg/evidence"
)

// MemoryStorage implements evidence.Storage with a map.
type MemoryStorage struct {
	records map[string]*evidence.EvaluationRecord
	mu      sync.RWMutex
}

var _ evidence.Storage = (*MemoryStorage)(nil)

// NewMemoryStorage creates an empty in-memory backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		records: make(map[string]*evidence.EvaluationRecord),
	}
}

// Store persists a copy of record.
func (s *MemoryStorage) Store(ctx context.Context, record *evidence.EvaluationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.ID]; exists {
		return evidence.NewStorageError(BackendMemory, "store",
			fmt.Errorf("duplicate record id %s", record.ID))
	}
	s.records[record.ID] = copyRecord(record)
	return nil
}

// Get returns a copy of one record.
func (s *MemoryStorage) Get(ctx context.Context, id string) (*evidence.EvaluationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok {
		return nil, evidence.ErrNotFound
	}
	return copyRecord(record), nil
}

// Query retrieves matching records, sorted and paginated.
func (s *MemoryStorage) Query(ctx context.Context, query *evidence.Query) ([]*evidence.EvaluationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.selectRecords(query), nil
}

// QueryStream delivers the result of Query on a channel.
func (s *MemoryStorage) QueryStream(ctx context.Context, query *evidence.Query) (<-chan *evidence.EvaluationRecord, <-chan error, error) {
	s.mu.RLock()
	records := s.selectRecords(query)
	s.mu.RUnlock()

	recordsCh := make(chan *evidence.EvaluationRecord, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(recordsCh)
		defer close(errCh)

		for _, record := range records {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case recordsCh <- record:
			}
		}
	}()

	return recordsCh, errCh, nil
}

// Count returns the number of matching records. Pagination is ignored.
func (s *MemoryStorage) Count(ctx context.Context, query *evidence.Query) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, record := range s.records {
		if matchesQuery(record, query) {
			count++
		}
	}
	return count, nil
}

// Delete removes matching records. Pagination is ignored.
func (s *MemoryStorage) Delete(ctx context.Context, query *evidence.Query) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, record := range s.records {
		if matchesQuery(record, query) {
			delete(s.records, id)
			deleted++
		}
	}
	return deleted, nil
}

// Close drops every record.
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]*evidence.EvaluationRecord)
	return nil
}

// Size returns the number of stored records.
func (s *MemoryStorage) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// selectRecords must be called with the read lock held.
func (s *MemoryStorage) selectRecords(query *evidence.Query) []*evidence.EvaluationRecord {
	results := []*evidence.EvaluationRecord{}
	for _, record := range s.records {
		if matchesQuery(record, query) {
			results = append(results, copyRecord(record))
		}
	}

	sortRecords(results, query.SortBy, query.SortOrder)

	start := query.Offset
	if start > len(results) {
		return []*evidence.EvaluationRecord{}
	}
	results = results[start:]
	if query.Limit > 0 && query.Limit < len(results) {
		results = results[:query.Limit]
	}
	return results
}

func sortRecords(records []*evidence.EvaluationRecord, sortBy, order string) {
	less := func(a, b *evidence.EvaluationRecord) int {
		switch sortBy {
		case "recorded_at":
			return a.RecordedAt.Compare(b.RecordedAt)
		case "risk_score":
			return a.RiskScore - b.RiskScore
		default:
			return a.EvaluatedAt.Compare(b.EvaluatedAt)
		}
	}
	desc := order != "asc"
	sort.SliceStable(records, func(i, j int) bool {
		c := less(records[i], records[j])
		if c == 0 {
			return records[i].ID < records[j].ID
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
}

func matchesQuery(record *evidence.EvaluationRecord, query *evidence.Query) bool {
	if len(query.IDs) > 0 {
		found := false
		for _, id := range query.IDs {
			if id == record.ID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if query.StartTime != nil && record.EvaluatedAt.Before(*query.StartTime) {
		return false
	}
	if query.EndTime != nil && record.EvaluatedAt.After(*query.EndTime) {
		return false
	}

	if query.Repository != "" && record.Repository != query.Repository {
		return false
	}
	if query.ChangeID != "" && record.ChangeID != query.ChangeID {
		return false
	}
	if query.OverallStatus != "" && record.OverallStatus != query.OverallStatus {
		return false
	}
	if query.Overridden != nil && record.Overridden != *query.Overridden {
		return false
	}
	if query.MinRiskScore != nil && record.RiskScore < *query.MinRiskScore {
		return false
	}

	if query.RuleID != "" {
		hit := false
		for _, t := range record.Triggered {
			if t.RuleID == query.RuleID {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}

	return true
}

func copyRecord(r *evidence.EvaluationRecord) *evidence.EvaluationRecord {
	c := *r
	c.Triggered = append([]evidence.RuleOutcome(nil), r.Triggered...)
	c.Payload = append([]byte(nil), r.Payload...)
	return &c
}
