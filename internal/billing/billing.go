// Package billing implements the water-usage billing procedure: resolve
// the tenant's baseline meter readings, compute usage and cost from the
// submitted readings, and persist one log row per tenant per month.
package billing

import (
	"errors"

	"waterbilling-service/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	// ErrTenantNotFound means the named tenant has no row in the tenants
	// table. Tenants are managed externally, so this is a data-integrity
	// problem rather than normal user error.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrDuplicateEntry means a log row already exists for the tenant
	// and month. The submission is refused and nothing is written.
	ErrDuplicateEntry = errors.New("entry already exists for this tenant and month")

	// ErrReadingBelowBaseline means a submitted meter reading is lower
	// than the resolved baseline. Meters only count up.
	ErrReadingBelowBaseline = errors.New("reading is below the previous reading")
)

// Baseline is the pair of prior meter readings usage is measured from.
type Baseline struct {
	Hot  decimal.Decimal
	Cold decimal.Decimal

	// FromInitial is true when no log rows exist yet and the tenant's
	// onboarding readings were used instead.
	FromInitial bool
}

// Reading is a pair of submitted meter values.
type Reading struct {
	Hot  decimal.Decimal
	Cold decimal.Decimal
}

// Charges holds everything the calculator derives for one entry.
type Charges struct {
	HotUsage    decimal.Decimal
	ColdUsage   decimal.Decimal
	TotalUsage  decimal.Decimal
	WaterCost   decimal.Decimal
	Rent        decimal.Decimal
	TotalAmount decimal.Decimal
}

// GetTenant loads a tenant by name.
func GetTenant(db *gorm.DB, name string) (*model.Tenant, error) {
	var tenant model.Tenant
	if err := db.Where("name = ?", name).First(&tenant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, err
	}
	return &tenant, nil
}

// ResolveBaseline determines the prior hot/cold readings for a tenant.
//
// Policy: the highest hot reading and the highest cold reading ever
// logged, taken independently. Since readings are cumulative and may
// only grow, the per-field maximum and the most recent entry agree
// whenever entries were logged in order; the maximum is also robust
// against rows logged out of calendar order. Tenants with no log rows
// fall back to their onboarding readings.
func ResolveBaseline(db *gorm.DB, name string) (Baseline, error) {
	var agg struct {
		MaxHot  decimal.NullDecimal
		MaxCold decimal.NullDecimal
	}
	err := db.Model(&model.WaterUsageLog{}).
		Select("MAX(hot_reading) AS max_hot, MAX(cold_reading) AS max_cold").
		Where("name = ?", name).
		Scan(&agg).Error
	if err != nil {
		return Baseline{}, err
	}

	if agg.MaxHot.Valid && agg.MaxCold.Valid {
		return Baseline{Hot: agg.MaxHot.Decimal, Cold: agg.MaxCold.Decimal}, nil
	}

	// No logs yet, use the tenant's initial readings
	tenant, err := GetTenant(db, name)
	if err != nil {
		return Baseline{}, err
	}
	return Baseline{
		Hot:         tenant.InitialHotReading,
		Cold:        tenant.InitialColdReading,
		FromInitial: true,
	}, nil
}

// Compute derives usage and cost for one entry. Readings below the
// baseline are rejected so usage can never go negative. All arithmetic
// is exact decimal; rounding happens only at the display boundary.
func Compute(baseline Baseline, current Reading, tenant *model.Tenant) (Charges, error) {
	if current.Hot.LessThan(baseline.Hot) || current.Cold.LessThan(baseline.Cold) {
		return Charges{}, ErrReadingBelowBaseline
	}

	hotUsage := current.Hot.Sub(baseline.Hot)
	coldUsage := current.Cold.Sub(baseline.Cold)
	totalUsage := hotUsage.Add(coldUsage)

	waterCost := totalUsage.Mul(tenant.WaterRatePerLitre)

	return Charges{
		HotUsage:    hotUsage,
		ColdUsage:   coldUsage,
		TotalUsage:  totalUsage,
		WaterCost:   waterCost,
		Rent:        tenant.Rent,
		TotalAmount: tenant.Rent.Add(waterCost),
	}, nil
}

// CreateEntry persists one usage log row, refusing duplicates for the
// (name, month) pair. The existence check gives the common case a clean
// answer without touching the table; the unique index catches the
// remaining race between two concurrent submissions, surfacing as
// gorm.ErrDuplicatedKey from the insert.
func CreateEntry(db *gorm.DB, entry *model.WaterUsageLog) error {
	var count int64
	err := db.Model(&model.WaterUsageLog{}).
		Where("name = ? AND month = ?", entry.Name, entry.Month).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrDuplicateEntry
	}

	if err := db.Create(entry).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateEntry
		}
		return err
	}
	return nil
}
