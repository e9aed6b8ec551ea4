package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// WaterUsageLog is one billing entry per tenant per month. The
// (name, month) pair is the natural key; the unique index makes the
// storage layer the authority on duplicates, so a concurrent double
// submission cannot produce two rows. Rows are never updated or
// deleted by this service.
type WaterUsageLog struct {
	ID    uint   `json:"id" gorm:"primaryKey"`
	Name  string `json:"name" gorm:"type:varchar(100);not null;uniqueIndex:idx_log_name_month,priority:1"`
	Month string `json:"month" gorm:"type:varchar(10);not null;uniqueIndex:idx_log_name_month,priority:2"`

	// First day of the entry's month. Month is a display token
	// ("Aug-26") and does not sort chronologically; this column does.
	MonthStart time.Time `json:"month_start" gorm:"index;not null"`

	HotReading  decimal.Decimal `json:"hot_water_reading" gorm:"type:decimal(20,4);not null"`
	ColdReading decimal.Decimal `json:"cold_water_reading" gorm:"type:decimal(20,4);not null"`
	HotUsage    decimal.Decimal `json:"hot_water_usage" gorm:"type:decimal(20,4);not null"`
	ColdUsage   decimal.Decimal `json:"cold_water_usage" gorm:"type:decimal(20,4);not null"`
	WaterCost   decimal.Decimal `json:"water_cost" gorm:"type:decimal(20,4);not null"`

	// Rent and house are copied from the tenant at entry time so the
	// logged amount stays correct if the tenant's terms change later.
	Rent        decimal.Decimal `json:"rent" gorm:"type:decimal(20,4);not null"`
	House       string          `json:"house" gorm:"type:varchar(50)"`
	TotalAmount decimal.Decimal `json:"total_amount" gorm:"type:decimal(20,4);not null"`

	CreatedAt time.Time `json:"created_at"`
}
