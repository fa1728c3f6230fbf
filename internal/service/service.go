package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"example.com/backstage/services/solar/internal/cache"
	"example.com/backstage/services/solar/internal/messaging"
	"example.com/backstage/services/solar/internal/models"
	"example.com/backstage/services/solar/internal/repository"
	"example.com/backstage/services/solar/internal/solarapi"
	"example.com/backstage/services/solar/internal/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Vendor endpoint paths, relative to the tenant's versioned base URL
const (
	pathRealtime      = "/device/realtime"
	pathBatchRealtime = "/device/realtime/batch"
	pathDeviceInfo    = "/device/info"
	pathDeviceList    = "/device/list"
)

// minTokenLength is the shortest credential the vendor issues
const minTokenLength = 16

// Service defines the adapter's business operations
type Service interface {
	// Integration configuration
	SaveConfig(ctx context.Context, tenantID uint, actor, baseURL, token string) (*models.IntegrationConfig, error)
	GetConfig(ctx context.Context, tenantID uint) (*models.IntegrationConfig, error)

	// Vendor polling
	TestConnection(ctx context.Context, tenantID uint) (*models.IntegrationHealth, error)
	Realtime(ctx context.Context, tenantID uint, deviceSerial string, includeRaw bool) (*models.DeviceSnapshot, error)
	BatchRealtime(ctx context.Context, tenantID uint, inverters []string, pageNum int, includeRaw bool) ([]*models.DeviceSnapshot, error)
	DeviceInfo(ctx context.Context, tenantID uint, deviceSerial string) (map[string]interface{}, error)

	// Integration health
	IntegrationHealth(ctx context.Context, tenantID uint) (*models.IntegrationHealth, error)
}

// service is an implementation of the Service interface
type service struct {
	repo            repository.Repository
	cache           cache.RedisClient
	messagingClient messaging.ServiceBusClient
	vendor          *solarapi.Client
	log             *logrus.Logger
	snapshotTTL     time.Duration
}

// ServiceConfig holds the configuration for the service
type ServiceConfig struct {
	Repository      repository.Repository
	Cache           cache.RedisClient
	MessagingClient messaging.ServiceBusClient
	VendorClient    *solarapi.Client
	Logger          *logrus.Logger
	SnapshotTTL     time.Duration
}

// NewService creates a new service instance
func NewService(config ServiceConfig) (Service, error) {
	if config.Repository == nil {
		return nil, errors.New("repository is required")
	}
	if config.Cache == nil {
		return nil, errors.New("cache is required")
	}
	if config.MessagingClient == nil {
		return nil, errors.New("messaging client is required")
	}
	if config.Logger == nil {
		config.Logger = logrus.New()
	}
	if config.VendorClient == nil {
		config.VendorClient = solarapi.NewClient(config.Logger, 0)
	}
	if config.SnapshotTTL <= 0 {
		config.SnapshotTTL = 24 * time.Hour
	}

	return &service{
		repo:            config.Repository,
		cache:           config.Cache,
		messagingClient: config.MessagingClient,
		vendor:          config.VendorClient,
		log:             config.Logger,
		snapshotTTL:     config.SnapshotTTL,
	}, nil
}

// loadConfig resolves the tenant's vendor credentials, falling back to the
// legacy provider record before declaring the tenant not configured
func (s *service) loadConfig(ctx context.Context, tenantID uint) (*models.IntegrationConfig, error) {
	cfg, err := s.repo.FindIntegrationConfig(ctx, tenantID, models.ProviderSolarCloud)
	if err == nil {
		return cfg, nil
	}
	if !repository.IsNotFound(err) {
		return nil, fmt.Errorf("failed to load integration config: %w", err)
	}

	cfg, err = s.repo.FindIntegrationConfig(ctx, tenantID, models.ProviderLegacyMonitor)
	if err == nil {
		return cfg, nil
	}
	if !repository.IsNotFound(err) {
		return nil, fmt.Errorf("failed to load integration config: %w", err)
	}

	return nil, solarapi.NewError(solarapi.CategoryNotConfigured, 0,
		"no vendor credentials on file for tenant %d", tenantID)
}

// SaveConfig validates and stores the tenant's vendor credentials, resets
// the integration health to unknown and records an audit entry. The token
// value itself never reaches the audit trail, only its length.
func (s *service) SaveConfig(ctx context.Context, tenantID uint, actor, baseURL, token string) (*models.IntegrationConfig, error) {
	if baseURL == "" {
		return nil, solarapi.NewError(solarapi.CategoryValidation, 0, "base_url is required")
	}
	if len(token) < minTokenLength {
		return nil, solarapi.NewError(solarapi.CategoryValidation, 0,
			"token must be at least %d characters", minTokenLength)
	}

	cfg := &models.IntegrationConfig{
		TenantID: tenantID,
		Provider: models.ProviderSolarCloud,
		BaseURL:  utils.NormalizeBaseURL(baseURL),
		Token:    token,
		Status:   models.ConfigStatusConnected,
	}
	if err := s.repo.UpsertIntegrationConfig(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to save integration config: %w", err)
	}

	// A fresh configuration has never been polled
	now := time.Now().UTC()
	reset := &models.IntegrationHealth{
		TenantID:  tenantID,
		Provider:  models.ProviderSolarCloud,
		Status:    models.HealthStatusUnknown,
		CheckedAt: now,
	}
	if err := s.repo.UpsertIntegrationHealth(ctx, reset); err != nil {
		s.log.WithError(err).WithField("tenant_id", tenantID).Error("Failed to reset integration health")
	}

	metadata, _ := json.Marshal(map[string]interface{}{
		"base_url":     cfg.BaseURL,
		"token_length": len(token),
	})
	audit := &models.AuditLog{
		TenantID:  tenantID,
		Actor:     actor,
		Action:    "solar.save_config",
		Metadata:  metadata,
		CreatedAt: now,
	}
	if err := s.repo.AppendAuditLog(ctx, audit); err != nil {
		s.log.WithError(err).WithField("tenant_id", tenantID).Error("Failed to append audit entry")
	}

	s.log.WithFields(logrus.Fields{
		"tenant_id":    tenantID,
		"base_url":     cfg.BaseURL,
		"token_length": len(token),
	}).Info("Integration config saved")

	return cfg, nil
}

// GetConfig returns the tenant's stored vendor configuration
func (s *service) GetConfig(ctx context.Context, tenantID uint) (*models.IntegrationConfig, error) {
	return s.loadConfig(ctx, tenantID)
}

// TestConnection exercises the vendor API with the stored credentials and
// updates the health row. It deliberately goes through the same call path
// as production polling so a failing check surfaces the same failure mode
// callers will see later.
func (s *service) TestConnection(ctx context.Context, tenantID uint) (*models.IntegrationHealth, error) {
	cfg, err := s.loadConfig(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	_, mode, err := s.vendor.Request(ctx, cfg.BaseURL, cfg.Token, http.MethodGet,
		pathDeviceList, map[string]string{"pageNum": "1"}, nil)
	if err != nil {
		s.recordFailure(ctx, tenantID, err)
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"tenant_id":   tenantID,
		"header_mode": mode,
	}).Info("Vendor connection test succeeded")
	s.recordSuccess(ctx, tenantID)

	return s.IntegrationHealth(ctx, tenantID)
}

// Realtime fetches and persists the current telemetry for one device
func (s *service) Realtime(ctx context.Context, tenantID uint, deviceSerial string, includeRaw bool) (*models.DeviceSnapshot, error) {
	cfg, err := s.loadConfig(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	raw, mode, err := s.vendor.Request(ctx, cfg.BaseURL, cfg.Token, http.MethodGet,
		pathRealtime, map[string]string{"sn": deviceSerial}, nil)
	if err != nil {
		s.recordFailure(ctx, tenantID, err)
		return nil, err
	}

	snapshot := solarapi.NormalizeSingle(deviceSerial, raw)
	snapshot.TenantID = tenantID
	snapshot.UpdatedAt = time.Now().UTC()

	s.log.WithFields(logrus.Fields{
		"tenant_id":   tenantID,
		"device_sn":   deviceSerial,
		"header_mode": mode,
	}).Debug("Realtime fetch succeeded")

	s.persistSnapshot(context.WithoutCancel(ctx), snapshot)
	s.recordSuccess(ctx, tenantID)

	if !includeRaw {
		snapshot.RawPayload = nil
	}
	return snapshot, nil
}

// BatchRealtime fetches telemetry for a set of devices in one vendor call
// and fans the results out to persistence. The persistence writes run
// concurrently but all complete before the call returns.
func (s *service) BatchRealtime(ctx context.Context, tenantID uint, inverters []string, pageNum int, includeRaw bool) ([]*models.DeviceSnapshot, error) {
	cfg, err := s.loadConfig(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if pageNum <= 0 {
		pageNum = 1
	}
	body := map[string]interface{}{
		"inverters": inverters,
		"pageNum":   pageNum,
	}

	raw, mode, err := s.vendor.Request(ctx, cfg.BaseURL, cfg.Token, http.MethodPost,
		pathBatchRealtime, nil, body)
	if err != nil {
		s.recordFailure(ctx, tenantID, err)
		return nil, err
	}

	snapshots := solarapi.NormalizeBatch(raw)
	now := time.Now().UTC()
	for _, snapshot := range snapshots {
		snapshot.TenantID = tenantID
		snapshot.UpdatedAt = now
	}

	s.log.WithFields(logrus.Fields{
		"tenant_id":   tenantID,
		"devices":     len(snapshots),
		"header_mode": mode,
	}).Debug("Batch realtime fetch succeeded")

	persistCtx := context.WithoutCancel(ctx)
	var wg sync.WaitGroup
	for _, snapshot := range snapshots {
		wg.Add(1)
		go func(snap *models.DeviceSnapshot) {
			defer wg.Done()
			s.persistSnapshot(persistCtx, snap)
		}(snapshot)
	}
	wg.Wait()

	s.recordSuccess(ctx, tenantID)

	if !includeRaw {
		for _, snapshot := range snapshots {
			snapshot.RawPayload = nil
		}
	}
	return snapshots, nil
}

// DeviceInfo fetches static device metadata from the vendor. No snapshot
// is written; only health is updated.
func (s *service) DeviceInfo(ctx context.Context, tenantID uint, deviceSerial string) (map[string]interface{}, error) {
	cfg, err := s.loadConfig(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	raw, _, err := s.vendor.Request(ctx, cfg.BaseURL, cfg.Token, http.MethodGet,
		pathDeviceInfo, map[string]string{"sn": deviceSerial}, nil)
	if err != nil {
		s.recordFailure(ctx, tenantID, err)
		return nil, err
	}

	s.recordSuccess(ctx, tenantID)

	if data, ok := raw["data"].(map[string]interface{}); ok {
		return data, nil
	}
	return raw, nil
}

// persistSnapshot writes one normalized snapshot to the event log, the
// latest-state table, the Redis mirror and the telemetry queue. Every
// write here is best-effort: the caller already holds the normalized data,
// so a failing write is logged and swallowed rather than failing the call.
func (s *service) persistSnapshot(ctx context.Context, snapshot *models.DeviceSnapshot) {
	entry := s.log.WithFields(logrus.Fields{
		"tenant_id": snapshot.TenantID,
		"device_sn": snapshot.DeviceSerial,
	})

	event := &models.RawEvent{
		EventUID:        uuid.NewString(),
		TenantID:        snapshot.TenantID,
		DeviceSerial:    snapshot.DeviceSerial,
		PayloadHash:     utils.PayloadHash(snapshot.TenantID, snapshot.DeviceSerial, snapshot.DeviceTimestamp, snapshot.RawPayload),
		DeviceTimestamp: snapshot.DeviceTimestamp,
		RawPayload:      snapshot.RawPayload,
	}
	if err := s.repo.InsertRawEvent(ctx, event); err != nil {
		entry.WithError(err).Error("Failed to record raw event")
	}

	if err := s.repo.UpsertSnapshot(ctx, snapshot); err != nil {
		entry.WithError(err).Error("Failed to upsert device snapshot")
	}

	if data, err := json.Marshal(snapshot); err == nil {
		key := cache.SnapshotKey(snapshot.TenantID, snapshot.DeviceSerial)
		if err := s.cache.Set(ctx, key, string(data), s.snapshotTTL); err != nil {
			entry.WithError(err).Warn("Failed to mirror snapshot to cache")
		}
	}

	msg := map[string]interface{}{
		"event":         "device_snapshot",
		"event_uid":     event.EventUID,
		"tenant_id":     snapshot.TenantID,
		"device_serial": snapshot.DeviceSerial,
		"snapshot":      snapshot,
	}
	sessionID := "tenant-" + strconv.FormatUint(uint64(snapshot.TenantID), 10)
	if err := s.messagingClient.SendMessage(ctx, msg, sessionID); err != nil {
		entry.WithError(err).Warn("Failed to publish snapshot event")
	}
}
