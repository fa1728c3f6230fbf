// api/middleware/auth.go
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"example.com/backstage/services/solar/internal/models"
	"example.com/backstage/services/solar/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// contextKey is a type for context keys
type contextKey string

// Context keys
const (
	APIKeyContextKey contextKey = "api_key"
	TenantContextKey contextKey = "tenant"
)

// APIKeyAuth validates the Bearer API token and resolves the tenant it
// belongs to. Both lookups fail closed: an unknown or expired key is a
// 401, a key whose tenant is missing or inactive is a 403.
func APIKeyAuth(repo repository.Repository, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")

		// Check if Authorization header is present
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header required",
			})
			c.Abort()
			return
		}

		// Extract token from header
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid Authorization header format. Expected: 'Bearer {token}'",
			})
			c.Abort()
			return
		}

		token := parts[1]

		// Validate token
		apiKey, err := repo.GetAPIKeyByKey(c.Request.Context(), token)
		if err != nil {
			log.WithError(err).Warn("Invalid API key")
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid API key",
			})
			c.Abort()
			return
		}

		// Check if key is expired
		if apiKey.ExpiresAt != nil && apiKey.ExpiresAt.Before(time.Now()) {
			log.Warn("Expired API key")
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "API key expired",
			})
			c.Abort()
			return
		}

		// Resolve the owning tenant
		tenant, err := repo.FindTenantByID(c.Request.Context(), apiKey.TenantID)
		if err != nil {
			log.WithError(err).WithField("tenant_id", apiKey.TenantID).Warn("API key has no resolvable tenant")
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Tenant not found for API key",
			})
			c.Abort()
			return
		}
		if !tenant.Active {
			log.WithField("tenant_id", tenant.ID).Warn("Inactive tenant attempted access")
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Tenant is inactive",
			})
			c.Abort()
			return
		}

		// Update last used timestamp
		now := time.Now()
		apiKey.LastUsedAt = &now
		go func() {
			// Update in a goroutine to avoid blocking the request
			repo.UpdateAPIKey(context.Background(), apiKey)
		}()

		// Store key and tenant in context for the handlers
		c.Set(string(APIKeyContextKey), apiKey)
		c.Set(string(TenantContextKey), tenant)

		c.Next()
	}
}

// GetTenantFromContext retrieves the resolved tenant from the context
func GetTenantFromContext(c *gin.Context) (*models.Tenant, error) {
	tenantVal, exists := c.Get(string(TenantContextKey))
	if !exists {
		return nil, errors.New("tenant not found in context")
	}

	tenant, ok := tenantVal.(*models.Tenant)
	if !ok {
		return nil, errors.New("tenant in context has incorrect type")
	}

	return tenant, nil
}

// GetAPIKeyFromContext retrieves the authenticated API key from the context
func GetAPIKeyFromContext(c *gin.Context) (*models.APIKey, error) {
	keyVal, exists := c.Get(string(APIKeyContextKey))
	if !exists {
		return nil, errors.New("api key not found in context")
	}

	apiKey, ok := keyVal.(*models.APIKey)
	if !ok {
		return nil, errors.New("api key in context has incorrect type")
	}

	return apiKey, nil
}
