package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tenant status values
const (
	StatusActive   = "Active"
	StatusInactive = "Inactive"
)

// Tenant represents a billable occupant tracked for water usage.
// Tenants are onboarded and edited by an external system sharing the
// same database; this service only reads them.
type Tenant struct {
	ID     uint            `json:"id" gorm:"primaryKey"`
	Name   string          `json:"name" gorm:"type:varchar(100);uniqueIndex;not null"`
	Status string          `json:"status" gorm:"type:varchar(20);index;default:'Active'"`
	House  string          `json:"house" gorm:"type:varchar(50)"`
	Rent   decimal.Decimal `json:"rent" gorm:"type:decimal(20,4);not null"`

	// Per-litre water charge, applied to the combined hot+cold usage.
	WaterRatePerLitre decimal.Decimal `json:"water_rate_per_litre" gorm:"type:decimal(20,4);not null"`

	// Meter values at onboarding, used as the baseline until the first
	// usage entry is logged. Immutable after creation.
	InitialHotReading  decimal.Decimal `json:"initial_hot_reading" gorm:"type:decimal(20,4);not null"`
	InitialColdReading decimal.Decimal `json:"initial_cold_reading" gorm:"type:decimal(20,4);not null"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
