package service

import (
	"context"
	"time"

	"example.com/backstage/services/solar/internal/models"
	"example.com/backstage/services/solar/internal/repository"
	"example.com/backstage/services/solar/internal/solarapi"
)

// IntegrationHealth returns the latest-known health for the tenant's
// vendor integration. A tenant that has never been polled gets a
// transient unknown row; nothing is persisted until an adapter call runs.
func (s *service) IntegrationHealth(ctx context.Context, tenantID uint) (*models.IntegrationHealth, error) {
	health, err := s.repo.FindIntegrationHealth(ctx, tenantID, models.ProviderSolarCloud)
	if err == nil {
		return health, nil
	}
	if !repository.IsNotFound(err) {
		return nil, err
	}

	return &models.IntegrationHealth{
		TenantID: tenantID,
		Provider: models.ProviderSolarCloud,
		Status:   models.HealthStatusUnknown,
	}, nil
}

// recordSuccess marks the integration healthy after a successful vendor call
func (s *service) recordSuccess(ctx context.Context, tenantID uint) {
	now := time.Now().UTC()
	health := &models.IntegrationHealth{
		TenantID:  tenantID,
		Provider:  models.ProviderSolarCloud,
		Status:    models.HealthStatusOK,
		LastOKAt:  &now,
		CheckedAt: now,
	}
	s.upsertHealth(ctx, health)
}

// recordFailure classifies a failed vendor call onto the health row.
// There is no automatic transition back out of a failure state; only a
// later successful call clears it.
func (s *service) recordFailure(ctx context.Context, tenantID uint, err error) {
	apiErr := solarapi.AsError(err)

	now := time.Now().UTC()
	code := apiErr.Code()
	health := &models.IntegrationHealth{
		TenantID:      tenantID,
		Provider:      models.ProviderSolarCloud,
		Status:        healthStatusFor(apiErr.Category),
		LastFailAt:    &now,
		LastErrorCode: &code,
		CheckedAt:     now,
	}
	if apiErr.HTTPStatus > 0 {
		status := apiErr.HTTPStatus
		health.LastHTTPStatus = &status
	}

	// Preserve the last success time across failures
	if previous, ferr := s.repo.FindIntegrationHealth(ctx, tenantID, models.ProviderSolarCloud); ferr == nil {
		health.LastOKAt = previous.LastOKAt
	}

	s.upsertHealth(ctx, health)
}

// upsertHealth writes the health row; a failing write is logged and
// swallowed so health bookkeeping never changes a call's outcome
func (s *service) upsertHealth(ctx context.Context, health *models.IntegrationHealth) {
	if err := s.repo.UpsertIntegrationHealth(ctx, health); err != nil {
		s.log.WithError(err).WithField("tenant_id", health.TenantID).Error("Failed to update integration health")
	}
}

// healthStatusFor maps an error category to a health state
func healthStatusFor(category solarapi.Category) models.HealthStatus {
	switch category {
	case solarapi.CategoryAuth:
		return models.HealthStatusAuth
	case solarapi.CategoryTimeout:
		return models.HealthStatusTimeout
	case solarapi.CategoryUpstream:
		return models.HealthStatusUpstream
	case solarapi.CategoryParse:
		return models.HealthStatusParse
	default:
		return models.HealthStatusUnknown
	}
}
