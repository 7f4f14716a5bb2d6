package state

import (
	"github.com/crmkit/genwatch/internal/common/cnst"
	"github.com/crmkit/genwatch/internal/common/dto"
)

// Typed accessors over the generic Get. Each falls back to the key's
// declared default when the stored value has an unexpected shape.

func (s *Store) GetBool(key cnst.StateKey) bool {
	v, _ := s.Get(key).(bool)
	return v
}

func (s *Store) GetString(key cnst.StateKey) string {
	v, _ := s.Get(key).(string)
	return v
}

func (s *Store) GetInt(key cnst.StateKey) int {
	v, _ := s.Get(key).(int)
	return v
}

// Companies returns the current company list.
func (s *Store) Companies() []dto.Company {
	v, _ := s.Get(cnst.KeyCompanies).([]dto.Company)
	return v
}

// Progress returns the current job progress.
func (s *Store) Progress() dto.JobProgress {
	v, _ := s.Get(cnst.KeyProgress).(dto.JobProgress)
	return v
}

// SetStatus updates the status line and its classification together.
func (s *Store) SetStatus(status, statusType string) {
	s.Set(cnst.KeyStatus, status)
	s.Set(cnst.KeyStatusType, statusType)
}

// SetLoading updates the loading flag.
func (s *Store) SetLoading(loading bool) {
	s.Set(cnst.KeyLoading, loading)
}
