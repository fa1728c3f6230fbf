package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// Model is the base model with common fields for all database entities
type Model struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// Provider identifies a vendor integration. ProviderSolarCloud is the
// current integration; ProviderLegacyMonitor is the pre-migration record
// name still present for tenants that configured the old integration.
const (
	ProviderSolarCloud    = "solarcloud"
	ProviderLegacyMonitor = "solar_monitor"
)

// Tenant represents a customer account owning devices and integrations
type Tenant struct {
	Model
	Name   string `json:"name" gorm:"Column:name"`
	Slug   string `json:"slug" gorm:"uniqueIndex;Column:slug"`
	Active bool   `json:"active" gorm:"Column:active"`
}

// APIKey represents an inbound API token bound to a tenant
type APIKey struct {
	Model
	Key        string     `json:"key" gorm:"uniqueIndex;Column:key"`
	Name       string     `json:"name" gorm:"Column:name"`
	TenantID   uint       `json:"tenant_id" gorm:"index;Column:tenant_id"`
	ExpiresAt  *time.Time `json:"expires_at" gorm:"Column:expires_at"`
	LastUsedAt *time.Time `json:"last_used_at" gorm:"Column:last_used_at"`
}

// ConfigStatus is the connection state recorded on an IntegrationConfig
type ConfigStatus string

const (
	ConfigStatusConnected    ConfigStatus = "connected"
	ConfigStatusDisconnected ConfigStatus = "disconnected"
)

// IntegrationConfig holds per-tenant vendor credentials.
// Token is an opaque secret and must never be logged in full.
type IntegrationConfig struct {
	Model
	TenantID uint         `json:"tenant_id" gorm:"uniqueIndex:idx_config_tenant_provider;Column:tenant_id"`
	Provider string       `json:"provider" gorm:"uniqueIndex:idx_config_tenant_provider;Column:provider"`
	BaseURL  string       `json:"base_url" gorm:"Column:base_url"`
	Token    string       `json:"-" gorm:"Column:token"`
	Status   ConfigStatus `json:"status" gorm:"Column:status"`
}

// HealthStatus classifies the outcome of the last vendor interaction
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "ok"
	HealthStatusAuth     HealthStatus = "auth_error"
	HealthStatusTimeout  HealthStatus = "timeout"
	HealthStatusUpstream HealthStatus = "upstream_error"
	HealthStatusParse    HealthStatus = "parse_error"
	HealthStatusUnknown  HealthStatus = "unknown"
)

// IntegrationHealth is the latest-known-status cache for one tenant
// integration. It is a single mutable row overwritten on every adapter
// call, not an audit trail.
type IntegrationHealth struct {
	Model
	TenantID       uint         `json:"tenant_id" gorm:"uniqueIndex:idx_health_tenant_provider;Column:tenant_id"`
	Provider       string       `json:"provider" gorm:"uniqueIndex:idx_health_tenant_provider;Column:provider"`
	Status         HealthStatus `json:"status" gorm:"Column:status"`
	LastOKAt       *time.Time   `json:"last_ok_at" gorm:"Column:last_ok_at"`
	LastFailAt     *time.Time   `json:"last_fail_at" gorm:"Column:last_fail_at"`
	LastErrorCode  *string      `json:"last_error_code" gorm:"Column:last_error_code"`
	LastHTTPStatus *int         `json:"last_http_status" gorm:"Column:last_http_status"`
	CheckedAt      time.Time    `json:"checked_at" gorm:"Column:checked_at"`
}

// DeviceSnapshot is the latest known telemetry state for one device,
// overwritten on each successful poll. Numeric fields are pointers so a
// vendor "no data" value stays null instead of collapsing to zero.
type DeviceSnapshot struct {
	Model
	TenantID        uint            `json:"tenant_id" gorm:"uniqueIndex:idx_snapshot_tenant_serial;Column:tenant_id"`
	DeviceSerial    string          `json:"device_serial" gorm:"uniqueIndex:idx_snapshot_tenant_serial;Column:device_serial"`
	LoggerSerial    *string         `json:"logger_serial" gorm:"Column:logger_serial"`
	DeviceTimestamp *string         `json:"device_timestamp" gorm:"Column:device_timestamp"`
	StatusText      *string         `json:"status_text" gorm:"Column:status_text"`
	StatusCode      *string         `json:"status_code" gorm:"Column:status_code"`
	PowerW          *float64        `json:"power_w" gorm:"Column:power_w"`
	EnergyToday     *float64        `json:"energy_today" gorm:"Column:energy_today"`
	EnergyTotal     *float64        `json:"energy_total" gorm:"Column:energy_total"`
	TemperatureC    *float64        `json:"temperature_c" gorm:"Column:temperature_c"`
	FreqHz          *float64        `json:"freq_hz" gorm:"Column:freq_hz"`
	PVVoltage1      *float64        `json:"pv_v1" gorm:"Column:pv_v1"`
	PVCurrent1      *float64        `json:"pv_i1" gorm:"Column:pv_i1"`
	PVVoltage2      *float64        `json:"pv_v2" gorm:"Column:pv_v2"`
	PVCurrent2      *float64        `json:"pv_i2" gorm:"Column:pv_i2"`
	PVVoltage3      *float64        `json:"pv_v3" gorm:"Column:pv_v3"`
	PVCurrent3      *float64        `json:"pv_i3" gorm:"Column:pv_i3"`
	RawPayload      json.RawMessage `json:"raw_payload,omitempty" gorm:"type:jsonb;Column:raw_payload"`
}

// RawEvent is an immutable historical record of one unique telemetry
// payload. Identity is (tenant, device serial, payload hash); inserting a
// duplicate identity is a no-op.
type RawEvent struct {
	ID              uint            `json:"id" gorm:"primarykey"`
	EventUID        string          `json:"event_uid" gorm:"Column:event_uid"`
	TenantID        uint            `json:"tenant_id" gorm:"uniqueIndex:idx_raw_event_identity;Column:tenant_id"`
	DeviceSerial    string          `json:"device_serial" gorm:"uniqueIndex:idx_raw_event_identity;Column:device_serial"`
	PayloadHash     string          `json:"payload_hash" gorm:"uniqueIndex:idx_raw_event_identity;Column:payload_hash"`
	DeviceTimestamp *string         `json:"device_timestamp" gorm:"Column:device_timestamp"`
	RawPayload      json.RawMessage `json:"raw_payload" gorm:"type:jsonb;Column:raw_payload"`
	CreatedAt       time.Time       `json:"created_at"`
}

// AuditLog is an append-only record of administrative actions
type AuditLog struct {
	ID        uint            `json:"id" gorm:"primarykey"`
	TenantID  uint            `json:"tenant_id" gorm:"index;Column:tenant_id"`
	Actor     string          `json:"actor" gorm:"Column:actor"`
	Action    string          `json:"action" gorm:"Column:action"`
	Metadata  json.RawMessage `json:"metadata" gorm:"type:jsonb;Column:metadata"`
	CreatedAt time.Time       `json:"created_at"`
}
