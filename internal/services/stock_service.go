package services

import (
	"log"
	"sync"
	"time"

	"github.com/fited/stocktrack/internal/models"
	"github.com/fited/stocktrack/internal/types"
	"github.com/google/uuid"
)

// Snapshot is the full inventory view returned after a refresh: all
// five stock rows, the recent log, and the total on hand.
type Snapshot struct {
	Stock         []models.StockRecord   `json:"stock"`
	Log           []models.StockLogEntry `json:"log,omitempty"`
	TotalQuantity int                    `json:"total_quantity"`
}

// StockService is the adjustment engine. It computes clamped quantities
// from signed deltas, writes through the gateway, and raises low-stock
// alerts. Safe for concurrent handler use.
type StockService struct {
	Gateway  InventoryGateway
	Notifier *Notifier
	Settings *SettingsService
	LogLimit int

	mu        sync.Mutex
	lastError string
}

// NewStockService wires the engine to its collaborators
func NewStockService(gw InventoryGateway, notifier *Notifier, settings *SettingsService, logLimit int) *StockService {
	if logLimit <= 0 || logLimit > 200 {
		logLimit = 200
	}
	return &StockService{
		Gateway:  gw,
		Notifier: notifier,
		Settings: settings,
		LogLimit: logLimit,
	}
}

// LastError returns the most recent gateway failure message, empty when
// the last operation succeeded.
func (s *StockService) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

func (s *StockService) setLastError(msg string) {
	s.mu.Lock()
	s.lastError = msg
	s.mu.Unlock()
}

// Refresh fetches the authoritative snapshot from the gateway. On read
// failure the caller keeps its last-known values; no automatic retry.
func (s *StockService) Refresh() (*Snapshot, error) {
	stock, err := s.Gateway.ListStock()
	if err != nil {
		s.setLastError(err.Error())
		return nil, types.GatewayReadError(err)
	}

	entries, err := s.Gateway.ListLog(s.LogLimit, "")
	if err != nil {
		s.setLastError(err.Error())
		return nil, types.GatewayReadError(err)
	}

	total := 0
	for _, r := range stock {
		total += r.Quantity
	}

	s.setLastError("")
	return &Snapshot{Stock: stock, Log: entries, TotalQuantity: total}, nil
}

// Log returns recent entries newest first, capped at the configured
// limit, optionally filtered by material.
func (s *StockService) Log(limit int, material models.MaterialType) ([]models.StockLogEntry, error) {
	if limit <= 0 || limit > s.LogLimit {
		limit = s.LogLimit
	}
	entries, err := s.Gateway.ListLog(limit, material)
	if err != nil {
		s.setLastError(err.Error())
		return nil, types.GatewayReadError(err)
	}
	s.setLastError("")
	return entries, nil
}

// Add increases stock. Rejects amount <= 0 outright; a silent no-op
// would hide user mistakes.
func (s *StockService) Add(material models.MaterialType, amount int, note, userEmail string) (int, error) {
	if amount <= 0 {
		return 0, types.ValidationError("amount must be positive")
	}
	return s.Adjust(material, amount, models.ReasonStockIn, note, userEmail)
}

// Subtract decreases stock with a reason. Rejects amount <= 0 outright.
func (s *StockService) Subtract(material models.MaterialType, amount int, reason models.StockReason, note, userEmail string) (int, error) {
	if amount <= 0 {
		return 0, types.ValidationError("amount must be positive")
	}
	return s.Adjust(material, -amount, reason, note, userEmail)
}

// Adjust applies a signed delta to one material and appends the audit
// entry. The stored quantity is clamped at zero; the logged delta is the
// requested one. Returns the new quantity.
func (s *StockService) Adjust(material models.MaterialType, delta int, reason models.StockReason, note, userEmail string) (int, error) {
	if _, err := models.ParseMaterial(string(material)); err != nil {
		return 0, types.ValidationError(err.Error())
	}
	if delta == 0 {
		return 0, types.ValidationError("delta must be non-zero")
	}
	if _, err := models.ParseReason(string(reason)); err != nil {
		return 0, types.ValidationError(err.Error())
	}
	if userEmail == "" {
		return 0, types.ValidationError("adjustment requires an attributed user")
	}

	newQuantity, err := s.applyAdjustment(material, delta, reason, note, userEmail)
	if err != nil {
		s.setLastError(err.Error())
		return 0, types.GatewayWriteError(err)
	}
	s.setLastError("")

	threshold := s.Settings.Threshold(material)
	if s.Notifier != nil {
		s.Notifier.NotifyIfLow(material, newQuantity, threshold)
	}

	return newQuantity, nil
}

// applyAdjustment prefers the store-side atomic procedure. The fallback
// read-modify-write is kept for gateways without it, with the known
// gaps: a stale read can clobber a concurrent writer, and a log insert
// failure after a successful upsert leaves the tables diverged with no
// compensating rollback.
func (s *StockService) applyAdjustment(material models.MaterialType, delta int, reason models.StockReason, note, userEmail string) (int, error) {
	if atomic, ok := s.Gateway.(AtomicAdjuster); ok {
		return atomic.AdjustStock(material, delta, reason, note, userEmail)
	}

	stock, err := s.Gateway.ListStock()
	if err != nil {
		return 0, err
	}

	current := 0
	for _, r := range stock {
		if r.Material == material {
			current = r.Quantity
			break
		}
	}

	newQuantity := current + delta
	if newQuantity < 0 {
		newQuantity = 0
	}

	if err := s.Gateway.UpsertStock(material, newQuantity); err != nil {
		return 0, err
	}

	entry := &models.StockLogEntry{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
		Material:  material,
		Delta:     delta,
		Reason:    reason,
		Note:      note,
		UserEmail: userEmail,
	}
	if err := s.Gateway.InsertLog(entry); err != nil {
		log.Printf("stock updated but log insert failed for %s: %v", material, err)
		return 0, err
	}

	return newQuantity, nil
}
