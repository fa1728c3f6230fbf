package repository

import (
	"context"
	"errors"
	"time"

	"example.com/backstage/services/solar/internal/database"
	"example.com/backstage/services/solar/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = gorm.ErrRecordNotFound

// Repository provides data access methods
type Repository interface {
	// API key / tenant operations (inbound auth)
	GetAPIKeyByKey(ctx context.Context, key string) (*models.APIKey, error)
	UpdateAPIKey(ctx context.Context, apiKey *models.APIKey) error
	FindTenantByID(ctx context.Context, id uint) (*models.Tenant, error)

	// Integration config operations
	FindIntegrationConfig(ctx context.Context, tenantID uint, provider string) (*models.IntegrationConfig, error)
	UpsertIntegrationConfig(ctx context.Context, cfg *models.IntegrationConfig) error

	// Integration health operations
	FindIntegrationHealth(ctx context.Context, tenantID uint, provider string) (*models.IntegrationHealth, error)
	UpsertIntegrationHealth(ctx context.Context, health *models.IntegrationHealth) error

	// Telemetry persistence
	UpsertSnapshot(ctx context.Context, snapshot *models.DeviceSnapshot) error
	FindSnapshot(ctx context.Context, tenantID uint, deviceSerial string) (*models.DeviceSnapshot, error)
	InsertRawEvent(ctx context.Context, event *models.RawEvent) error

	// Audit trail
	AppendAuditLog(ctx context.Context, entry *models.AuditLog) error
}

// repo is the GORM-backed implementation of the Repository interface
type repo struct {
	db database.DB
}

// NewRepository creates a new repository instance
func NewRepository(db database.DB) Repository {
	return &repo{
		db: db,
	}
}

// API key / tenant operations

func (r *repo) GetAPIKeyByKey(ctx context.Context, key string) (*models.APIKey, error) {
	gormDB, err := r.db.DB()
	if err != nil {
		return nil, err
	}

	var apiKey models.APIKey
	if err := gormDB.WithContext(ctx).Where("key = ?", key).First(&apiKey).Error; err != nil {
		return nil, err
	}

	return &apiKey, nil
}

func (r *repo) UpdateAPIKey(ctx context.Context, apiKey *models.APIKey) error {
	gormDB, err := r.db.DB()
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).Save(apiKey).Error
}

func (r *repo) FindTenantByID(ctx context.Context, id uint) (*models.Tenant, error) {
	gormDB, err := r.db.DB()
	if err != nil {
		return nil, err
	}

	var tenant models.Tenant
	if err := gormDB.WithContext(ctx).First(&tenant, id).Error; err != nil {
		return nil, err
	}

	return &tenant, nil
}

// Integration config operations

func (r *repo) FindIntegrationConfig(ctx context.Context, tenantID uint, provider string) (*models.IntegrationConfig, error) {
	gormDB, err := r.db.DB()
	if err != nil {
		return nil, err
	}

	var cfg models.IntegrationConfig
	err = gormDB.WithContext(ctx).
		Where("tenant_id = ? AND provider = ?", tenantID, provider).
		First(&cfg).Error
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (r *repo) UpsertIntegrationConfig(ctx context.Context, cfg *models.IntegrationConfig) error {
	gormDB, err := r.db.DB()
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}, {Name: "provider"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"base_url", "token", "status", "updated_at",
			}),
		}).
		Create(cfg).Error
}

// Integration health operations

func (r *repo) FindIntegrationHealth(ctx context.Context, tenantID uint, provider string) (*models.IntegrationHealth, error) {
	gormDB, err := r.db.DB()
	if err != nil {
		return nil, err
	}

	var health models.IntegrationHealth
	err = gormDB.WithContext(ctx).
		Where("tenant_id = ? AND provider = ?", tenantID, provider).
		First(&health).Error
	if err != nil {
		return nil, err
	}

	return &health, nil
}

func (r *repo) UpsertIntegrationHealth(ctx context.Context, health *models.IntegrationHealth) error {
	gormDB, err := r.db.DB()
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}, {Name: "provider"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"status", "last_ok_at", "last_fail_at", "last_error_code",
				"last_http_status", "checked_at", "updated_at",
			}),
		}).
		Create(health).Error
}

// Telemetry persistence

func (r *repo) UpsertSnapshot(ctx context.Context, snapshot *models.DeviceSnapshot) error {
	gormDB, err := r.db.DB()
	if err != nil {
		return err
	}

	// Full overwrite of all telemetry columns for the (tenant, serial) row
	return gormDB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}, {Name: "device_serial"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"logger_serial", "device_timestamp", "status_text", "status_code",
				"power_w", "energy_today", "energy_total", "temperature_c", "freq_hz",
				"pv_v1", "pv_i1", "pv_v2", "pv_i2", "pv_v3", "pv_i3",
				"raw_payload", "updated_at",
			}),
		}).
		Create(snapshot).Error
}

func (r *repo) FindSnapshot(ctx context.Context, tenantID uint, deviceSerial string) (*models.DeviceSnapshot, error) {
	gormDB, err := r.db.DB()
	if err != nil {
		return nil, err
	}

	var snapshot models.DeviceSnapshot
	err = gormDB.WithContext(ctx).
		Where("tenant_id = ? AND device_serial = ?", tenantID, deviceSerial).
		First(&snapshot).Error
	if err != nil {
		return nil, err
	}

	return &snapshot, nil
}

// InsertRawEvent appends a historical event. A conflicting identity
// (tenant, device serial, payload hash) is silently ignored so repeated
// polls returning identical payloads never create duplicate rows.
func (r *repo) InsertRawEvent(ctx context.Context, event *models.RawEvent) error {
	gormDB, err := r.db.DB()
	if err != nil {
		return err
	}

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	return gormDB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "device_serial"}, {Name: "payload_hash"}},
			DoNothing: true,
		}).
		Create(event).Error
}

// Audit trail

func (r *repo) AppendAuditLog(ctx context.Context, entry *models.AuditLog) error {
	gormDB, err := r.db.DB()
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).Create(entry).Error
}

// IsNotFound reports whether err means the row does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
