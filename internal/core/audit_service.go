package core

import (
	"context"
	"fmt"

	"github.com/shamar-morrison/showseek-backend/internal/db"
	"github.com/shamar-morrison/showseek-backend/internal/models"
)

// auditService implements the AuditService interface.
type auditService struct {
	auditRepo db.AuditRepository
}

// NewAuditService creates a new AuditService instance.
func NewAuditService(auditRepo db.AuditRepository) AuditService {
	return &auditService{
		auditRepo: auditRepo,
	}
}

// RecordPremiumChange appends one premium audit entry. Callers treat failures
// as non-fatal: the audit trail supplements the structured log lines, it does
// not gate entitlement writes.
func (s *auditService) RecordPremiumChange(ctx context.Context, entry models.PremiumAuditEntry) error {
	if s.auditRepo == nil {
		return fmt.Errorf("AuditRepository not initialized in AuditService")
	}
	if err := s.auditRepo.Create(ctx, entry); err != nil {
		return fmt.Errorf("failed to create premium audit entry via repository: %w", err)
	}
	return nil
}
