package handler

import (
	"errors"
	"net/http"
	"time"

	"waterbilling-service/internal/billing"
	"waterbilling-service/internal/model"
	"waterbilling-service/pkg/logger"
	"waterbilling-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ListTenants returns the names of all active tenants, the set a
// usage entry may be submitted for
func (h *Handler) ListTenants(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordUsageOperation("list_tenants")

	// Track DB operations
	defer prometheus.TrackDBOperation("query")(time.Now())

	var names []string
	result := h.db.Model(&model.Tenant{}).
		Where("status = ?", model.StatusActive).
		Order("name").
		Pluck("name", &names)
	if result.Error != nil {
		log.Error("Failed to retrieve active tenants", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Failed to retrieve tenants",
		})
	}

	prometheus.UpdateActiveTenants(len(names))

	log.Info("Active tenants retrieved", zap.Int("count", len(names)))
	return c.JSON(http.StatusOK, echo.Map{
		"tenants": names,
		"count":   len(names),
	})
}

// GetTenant returns a tenant's billing attributes: rent, house, water
// rate and initial meter readings
func (h *Handler) GetTenant(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordUsageOperation("get_tenant")

	name := c.Param("name")

	// Track DB operations
	defer prometheus.TrackDBOperation("query")(time.Now())

	tenant, err := billing.GetTenant(h.db, name)
	if err != nil {
		if errors.Is(err, billing.ErrTenantNotFound) {
			log.Warn("Tenant not found", zap.String("name", name))
			return c.JSON(http.StatusNotFound, echo.Map{
				"error": "Tenant not found",
			})
		}
		log.Error("Failed to retrieve tenant", zap.String("name", name), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Failed to retrieve tenant",
		})
	}

	log.Info("Tenant retrieved", zap.String("name", tenant.Name), zap.String("house", tenant.House))
	return c.JSON(http.StatusOK, tenant)
}
