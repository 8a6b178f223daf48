package directory

import (
	"strings"

	"authentik-admin/internal/domain"
)

// snapshot is an immutable view of the directory. Writers build a new one and
// swap it in; readers never see a partially updated table.
type snapshot struct {
	records []domain.UserRecord
	index   map[string]int
}

// Key folds a username into the form used for existence checks.
func Key(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func newSnapshot(records []domain.UserRecord) *snapshot {
	s := &snapshot{
		records: make([]domain.UserRecord, 0, len(records)),
		index:   make(map[string]int, len(records)),
	}
	for _, r := range records {
		k := Key(r.Username)
		if k == "" {
			continue
		}
		if i, ok := s.index[k]; ok {
			s.records[i] = r
			continue
		}
		s.index[k] = len(s.records)
		s.records = append(s.records, r)
	}
	return s
}

func (s *snapshot) get(username string) (domain.UserRecord, bool) {
	i, ok := s.index[Key(username)]
	if !ok {
		return domain.UserRecord{}, false
	}
	return s.records[i], true
}

func (s *snapshot) withUpsert(record domain.UserRecord) *snapshot {
	records := make([]domain.UserRecord, len(s.records), len(s.records)+1)
	copy(records, s.records)
	if i, ok := s.index[Key(record.Username)]; ok {
		records[i] = record
		return &snapshot{records: records, index: s.index}
	}
	index := make(map[string]int, len(s.index)+1)
	for k, v := range s.index {
		index[k] = v
	}
	index[Key(record.Username)] = len(records)
	records = append(records, record)
	return &snapshot{records: records, index: index}
}

func (s *snapshot) without(username string) *snapshot {
	i, ok := s.index[Key(username)]
	if !ok {
		return s
	}
	records := make([]domain.UserRecord, 0, len(s.records)-1)
	records = append(records, s.records[:i]...)
	records = append(records, s.records[i+1:]...)
	return newSnapshot(records)
}

func (s *snapshot) find(query string) []domain.UserRecord {
	q := strings.ToLower(strings.TrimSpace(query))
	out := []domain.UserRecord{}
	if q == "" {
		return out
	}
	for _, r := range s.records {
		if strings.Contains(strings.ToLower(r.Username), q) ||
			strings.Contains(strings.ToLower(r.FullName), q) ||
			strings.Contains(strings.ToLower(r.Email), q) {
			out = append(out, r)
		}
	}
	return out
}

func (s *snapshot) all() []domain.UserRecord {
	out := make([]domain.UserRecord, len(s.records))
	copy(out, s.records)
	return out
}
