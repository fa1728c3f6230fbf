// api/handlers/adapter_handler.go
package handlers

import (
	"net/http"

	"example.com/backstage/services/solar/api/middleware"
	"example.com/backstage/services/solar/internal/service"
	"example.com/backstage/services/solar/internal/solarapi"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Supported command actions
const (
	ActionSaveConfig     = "save_config"
	ActionGetConfig      = "get_config"
	ActionTestConnection = "test_connection"
	ActionRealtime       = "realtime"
	ActionBatchRealtime  = "batch_realtime"
	ActionInfo           = "info"
	ActionHealth         = "health"
)

// CommandRequest is the inbound command envelope. device_sn and sn are
// accepted interchangeably for caller compatibility.
type CommandRequest struct {
	Action    string   `json:"action" binding:"required"`
	DeviceSN  string   `json:"device_sn"`
	SN        string   `json:"sn"`
	Inverters []string `json:"inverters"`
	PageNum   int      `json:"pageNum"`
	Raw       bool     `json:"raw"`
	BaseURL   string   `json:"base_url"`
	Token     string   `json:"token"`
}

// AdapterHandler routes vendor adapter commands to the service layer
type AdapterHandler struct {
	service service.Service
	log     *logrus.Logger
}

// NewAdapterHandler creates a new AdapterHandler instance
func NewAdapterHandler(svc service.Service, log *logrus.Logger) *AdapterHandler {
	return &AdapterHandler{
		service: svc,
		log:     log,
	}
}

// Handle dispatches one command envelope
func (h *AdapterHandler) Handle(c *gin.Context) {
	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, solarapi.NewError(solarapi.CategoryValidation, 0, "invalid command envelope: %v", err))
		return
	}

	tenant, err := middleware.GetTenantFromContext(c)
	if err != nil {
		h.log.WithError(err).Error("Tenant missing from authenticated request")
		c.JSON(http.StatusForbidden, gin.H{
			"error":    "Tenant resolution failed",
			"category": solarapi.CategoryUnknown,
		})
		return
	}

	ctx := c.Request.Context()

	switch req.Action {
	case ActionSaveConfig:
		cfg, err := h.service.SaveConfig(ctx, tenant.ID, h.actor(c), req.BaseURL, req.Token)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "config": cfg})

	case ActionGetConfig:
		cfg, err := h.service.GetConfig(ctx, tenant.ID)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "config": cfg})

	case ActionTestConnection:
		health, err := h.service.TestConnection(ctx, tenant.ID)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "health": health})

	case ActionRealtime:
		sn := req.deviceSerial()
		if sn == "" {
			h.respondError(c, solarapi.NewError(solarapi.CategoryValidation, 0, "device_sn is required"))
			return
		}
		snapshot, err := h.service.Realtime(ctx, tenant.ID, sn, req.Raw)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "snapshot": snapshot})

	case ActionBatchRealtime:
		snapshots, err := h.service.BatchRealtime(ctx, tenant.ID, req.Inverters, req.PageNum, req.Raw)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "snapshots": snapshots, "count": len(snapshots)})

	case ActionInfo:
		sn := req.deviceSerial()
		if sn == "" {
			h.respondError(c, solarapi.NewError(solarapi.CategoryValidation, 0, "device_sn is required"))
			return
		}
		info, err := h.service.DeviceInfo(ctx, tenant.ID, sn)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "device": info})

	case ActionHealth:
		health, err := h.service.IntegrationHealth(ctx, tenant.ID)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "health": health})

	default:
		h.respondError(c, solarapi.NewError(solarapi.CategoryValidation, 0, "unsupported action %q", req.Action))
	}
}

// deviceSerial returns the device serial from either accepted field
func (r *CommandRequest) deviceSerial() string {
	if r.DeviceSN != "" {
		return r.DeviceSN
	}
	return r.SN
}

// actor names the caller for the audit trail
func (h *AdapterHandler) actor(c *gin.Context) string {
	if apiKey, err := middleware.GetAPIKeyFromContext(c); err == nil && apiKey.Name != "" {
		return apiKey.Name
	}
	return "api"
}

// respondError maps a classified error to the response envelope
func (h *AdapterHandler) respondError(c *gin.Context, err error) {
	apiErr := solarapi.AsError(err)

	entry := h.log.WithField("category", apiErr.Category)
	if apiErr.Category == solarapi.CategoryUnknown {
		entry.WithError(err).Error("Adapter command failed")
	} else {
		entry.WithError(err).Warn("Adapter command failed")
	}

	c.JSON(apiErr.ResponseStatus(), gin.H{
		"error":    apiErr.Error(),
		"category": apiErr.Category,
	})
}
