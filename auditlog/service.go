package auditlog

import (
	"context"
	"fmt"
)

// Service validates and records audit entries.
type Service struct {
	repo Repository
}

// NewService creates the audit log service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Record appends one audit entry. Callers that treat auditing as a side
// effect may ignore the returned error; a failed audit write must never break
// the lookup it describes.
func (s *Service) Record(ctx context.Context, entry Entry) error {
	if entry.Action == "" {
		return fmt.Errorf("auditlog: action required")
	}
	if entry.Actor.AdminID == "" {
		return fmt.Errorf("auditlog: actor admin id required")
	}
	return s.repo.Insert(ctx, entry)
}
