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
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// UsageEntryRequest defines the structure for usage preview/submission requests
type UsageEntryRequest struct {
	Name string `json:"name" validate:"required"`
	// Date is any day in the month being recorded, "2006-01-02".
	// Empty means today.
	Date        string          `json:"date"`
	HotReading  decimal.Decimal `json:"hot_reading"`
	ColdReading decimal.Decimal `json:"cold_reading"`
}

// entryDate parses the request date, defaulting to today
func (r *UsageEntryRequest) entryDate() (time.Time, error) {
	if r.Date == "" {
		return time.Now(), nil
	}
	return time.Parse("2006-01-02", r.Date)
}

// baselineResponse renders a resolved baseline for JSON output
func baselineResponse(baseline billing.Baseline) echo.Map {
	source := "log"
	if baseline.FromInitial {
		source = "initial"
	}
	return echo.Map{
		"hot_reading":  baseline.Hot,
		"cold_reading": baseline.Cold,
		"source":       source,
	}
}

// GetBaseline returns the prior hot/cold readings the next entry for
// this tenant will be measured from
func (h *Handler) GetBaseline(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordUsageOperation("baseline")

	name := c.Param("name")

	// Track DB operations
	defer prometheus.TrackDBOperation("query")(time.Now())

	baseline, err := billing.ResolveBaseline(h.db, name)
	if err != nil {
		if errors.Is(err, billing.ErrTenantNotFound) {
			log.Warn("Tenant not found while resolving baseline", zap.String("name", name))
			return c.JSON(http.StatusNotFound, echo.Map{
				"error": "Tenant not found",
			})
		}
		log.Error("Failed to resolve baseline", zap.String("name", name), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Failed to resolve baseline",
		})
	}

	if baseline.FromInitial {
		prometheus.BaselineFallbackCounter.Inc()
		log.Info("No logs found, using initial readings",
			zap.String("name", name),
			zap.String("hot", baseline.Hot.String()),
			zap.String("cold", baseline.Cold.String()))
	} else {
		log.Info("Baseline resolved from log",
			zap.String("name", name),
			zap.String("hot", baseline.Hot.String()),
			zap.String("cold", baseline.Cold.String()))
	}

	response := baselineResponse(baseline)
	response["name"] = name
	return c.JSON(http.StatusOK, response)
}

// ListTenantUsage returns a tenant's previous records, newest month first
func (h *Handler) ListTenantUsage(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordUsageOperation("history")

	name := c.Param("name")

	// Track DB operations
	defer prometheus.TrackDBOperation("query")(time.Now())

	var entries []model.WaterUsageLog
	result := h.db.Where("name = ?", name).
		Order("month_start desc").
		Find(&entries)
	if result.Error != nil {
		log.Error("Failed to retrieve usage history",
			zap.String("name", name),
			zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Failed to retrieve usage history",
		})
	}

	log.Info("Usage history retrieved",
		zap.String("name", name),
		zap.Int("count", len(entries)))
	return c.JSON(http.StatusOK, echo.Map{
		"entries": entries,
		"count":   len(entries),
	})
}

// ListUsage returns the full usage log in chronological order
func (h *Handler) ListUsage(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordUsageOperation("list")

	// Track DB operations
	defer prometheus.TrackDBOperation("query")(time.Now())

	var entries []model.WaterUsageLog
	result := h.db.Order("month_start").Find(&entries)
	if result.Error != nil {
		log.Error("Failed to retrieve usage log", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Failed to retrieve usage log",
		})
	}

	log.Info("Full usage log retrieved", zap.Int("count", len(entries)))
	return c.JSON(http.StatusOK, echo.Map{
		"entries": entries,
		"count":   len(entries),
	})
}

// PreviewUsage computes usage and cost for the submitted readings
// without persisting anything. This is the explicit request/response
// form of the entry screen's live recalculation.
func (h *Handler) PreviewUsage(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordUsageOperation("preview")

	var req UsageEntryRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "Invalid request data",
		})
	}

	date, err := req.entryDate()
	if err != nil {
		log.Error("Invalid date", zap.String("date", req.Date), zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "Invalid date, expected YYYY-MM-DD",
		})
	}
	month := billing.MonthKey(date)

	tenant, baseline, charges, err := h.computeCharges(&req)
	if err != nil {
		return h.chargeErrorResponse(c, &req, err)
	}

	log.Info("Usage preview computed",
		zap.String("name", tenant.Name),
		zap.String("month", month),
		zap.String("total_usage", charges.TotalUsage.String()),
		zap.String("total_amount", charges.TotalAmount.String()))

	return c.JSON(http.StatusOK, echo.Map{
		"name":         tenant.Name,
		"month":        month,
		"baseline":     baselineResponse(baseline),
		"hot_usage":    charges.HotUsage,
		"cold_usage":   charges.ColdUsage,
		"total_usage":  charges.TotalUsage,
		"water_rate":   tenant.WaterRatePerLitre,
		"water_cost":   charges.WaterCost.StringFixed(2),
		"rent":         charges.Rent.StringFixed(2),
		"total_amount": charges.TotalAmount.StringFixed(2),
	})
}

// CreateUsageEntry runs the full submission: resolve baseline, compute
// charges, and persist one row unless the tenant/month entry exists
func (h *Handler) CreateUsageEntry(c echo.Context) error {
	log := logger.FromContext(c)
	log.Info("Creating new usage entry")
	prometheus.RecordUsageOperation("create")

	var req UsageEntryRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "Invalid request data",
		})
	}

	date, err := req.entryDate()
	if err != nil {
		log.Error("Invalid date", zap.String("date", req.Date), zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "Invalid date, expected YYYY-MM-DD",
		})
	}
	month := billing.MonthKey(date)

	log.Info("Usage entry request",
		zap.String("name", req.Name),
		zap.String("month", month),
		zap.String("hot_reading", req.HotReading.String()),
		zap.String("cold_reading", req.ColdReading.String()))

	tenant, _, charges, err := h.computeCharges(&req)
	if err != nil {
		return h.chargeErrorResponse(c, &req, err)
	}

	entry := model.WaterUsageLog{
		Name:        tenant.Name,
		Month:       month,
		MonthStart:  billing.MonthStart(date),
		HotReading:  req.HotReading,
		ColdReading: req.ColdReading,
		HotUsage:    charges.HotUsage,
		ColdUsage:   charges.ColdUsage,
		WaterCost:   charges.WaterCost,
		Rent:        charges.Rent,
		House:       tenant.House,
		TotalAmount: charges.TotalAmount,
	}

	// Track DB operations
	defer prometheus.TrackDBOperation("insert")(time.Now())

	if err := billing.CreateEntry(h.db, &entry); err != nil {
		if errors.Is(err, billing.ErrDuplicateEntry) {
			prometheus.DuplicateEntriesCounter.Inc()
			log.Warn("Record for this tenant and month already exists",
				zap.String("name", req.Name),
				zap.String("month", month))
			return c.JSON(http.StatusConflict, echo.Map{
				"error": "Record for this tenant and month already exists",
			})
		}
		log.Error("Failed to create usage entry",
			zap.String("name", req.Name),
			zap.String("month", month),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Failed to create usage entry",
		})
	}

	// Update entry count metrics
	go h.updateEntryCount(tenant.Name)

	log.Info("Usage entry created successfully",
		zap.Uint("id", entry.ID),
		zap.String("name", entry.Name),
		zap.String("month", entry.Month),
		zap.String("total_amount", entry.TotalAmount.String()))
	return c.JSON(http.StatusCreated, entry)
}

// computeCharges runs the resolver and calculator for a request
func (h *Handler) computeCharges(req *UsageEntryRequest) (*model.Tenant, billing.Baseline, billing.Charges, error) {
	tenant, err := billing.GetTenant(h.db, req.Name)
	if err != nil {
		return nil, billing.Baseline{}, billing.Charges{}, err
	}

	baseline, err := billing.ResolveBaseline(h.db, req.Name)
	if err != nil {
		return nil, billing.Baseline{}, billing.Charges{}, err
	}
	if baseline.FromInitial {
		prometheus.BaselineFallbackCounter.Inc()
	}

	current := billing.Reading{Hot: req.HotReading, Cold: req.ColdReading}
	charges, err := billing.Compute(baseline, current, tenant)
	if err != nil {
		return nil, billing.Baseline{}, billing.Charges{}, err
	}

	return tenant, baseline, charges, nil
}

// chargeErrorResponse maps resolver/calculator errors to HTTP responses
func (h *Handler) chargeErrorResponse(c echo.Context, req *UsageEntryRequest, err error) error {
	log := logger.FromContext(c)

	switch {
	case errors.Is(err, billing.ErrTenantNotFound):
		log.Warn("Tenant not found", zap.String("name", req.Name))
		return c.JSON(http.StatusNotFound, echo.Map{
			"error": "Tenant not found",
		})
	case errors.Is(err, billing.ErrReadingBelowBaseline):
		log.Warn("Reading below baseline",
			zap.String("name", req.Name),
			zap.String("hot_reading", req.HotReading.String()),
			zap.String("cold_reading", req.ColdReading.String()))
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"error": "Readings cannot be less than the previous reading",
		})
	default:
		log.Error("Failed to compute charges", zap.String("name", req.Name), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Failed to compute charges",
		})
	}
}

// Helper function to update entry count metrics
func (h *Handler) updateEntryCount(tenantName string) {
	// Count logged entries for the tenant
	var count int64
	h.db.Model(&model.WaterUsageLog{}).
		Where("name = ?", tenantName).
		Count(&count)

	// Update the metric
	prometheus.UpdateEntriesPerTenant(tenantName, int(count))

	// Count active tenants
	var activeTenants int64
	h.db.Model(&model.Tenant{}).
		Where("status = ?", model.StatusActive).
		Count(&activeTenants)

	// Update active tenants metric
	prometheus.UpdateActiveTenants(int(activeTenants))
}
