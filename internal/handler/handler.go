package handler

import (
	"gorm.io/gorm"
)

// Handler bundles the HTTP handlers with the database handle they
// operate on. The handle is injected at wiring time instead of read
// from a process-wide singleton so handlers can run against any store.
type Handler struct {
	db *gorm.DB
}

// New creates a Handler backed by the given database handle
func New(db *gorm.DB) *Handler {
	return &Handler{db: db}
}
