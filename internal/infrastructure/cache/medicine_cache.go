// Package cache provides caching infrastructure with PostgreSQL LISTEN/NOTIFY support.
package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"

	"medistock/internal/core/id"
	"medistock/internal/domain/medicine"
	"medistock/pkg/logger"
)

// notifyChannel is raised by a trigger on the medicines table; the payload
// is the changed medicine id, or empty for a full reload.
const notifyChannel = "medicine_changed"

// MedicineCache is a thread-safe in-memory copy of the medicine reference
// with automatic invalidation via PostgreSQL LISTEN/NOTIFY. The reference
// is read-only from the stock ledger's point of view and small enough to
// hold fully in memory, which keeps consume-path lookups off the database.
type MedicineCache struct {
	pool *pgxpool.Pool

	mu     sync.RWMutex
	byID   map[id.ID]*medicine.Medicine
	byCode map[string]*medicine.Medicine

	// Lifecycle
	lifecycleMu sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	started     bool
}

// NewMedicineCache creates a new medicine cache.
func NewMedicineCache(pool *pgxpool.Pool) *MedicineCache {
	return &MedicineCache{
		pool:   pool,
		byID:   make(map[id.ID]*medicine.Medicine),
		byCode: make(map[string]*medicine.Medicine),
	}
}

// Start loads the reference and begins listening for NOTIFY events.
func (c *MedicineCache) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	c.lifecycleMu.Lock()
	if c.started {
		c.lifecycleMu.Unlock()
		return nil
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.started = true
	c.lifecycleMu.Unlock()

	if err := c.Reload(c.ctx); err != nil {
		c.Stop()
		return fmt.Errorf("load medicines: %w", err)
	}

	c.wg.Add(1)
	go c.listenLoop()
	logger.Info(c.ctx, "medicine cache started")
	return nil
}

// Stop gracefully stops the cache listener.
func (c *MedicineCache) Stop() {
	c.lifecycleMu.Lock()
	if !c.started {
		c.lifecycleMu.Unlock()
		return
	}
	cancel := c.cancel
	c.started = false
	c.cancel = nil
	c.lifecycleMu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
	logger.Info(context.Background(), "medicine cache stopped")
}

// listenLoop listens for PostgreSQL NOTIFY events on a dedicated connection.
func (c *MedicineCache) listenLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		conn, err := c.pool.Acquire(c.ctx)
		if err != nil {
			logger.Error(c.ctx, "failed to acquire connection for LISTEN", "error", err)
			time.Sleep(time.Second)
			continue
		}

		_, err = conn.Exec(c.ctx, "LISTEN "+notifyChannel)
		if err != nil {
			logger.Error(c.ctx, "failed to LISTEN", "error", err)
			conn.Release()
			time.Sleep(time.Second)
			continue
		}

		logger.Info(c.ctx, "listening for medicine change notifications")
		c.waitForNotifications(conn)
		conn.Release()
	}
}

// waitForNotifications blocks waiting for NOTIFY events.
func (c *MedicineCache) waitForNotifications(conn *pgxpool.Conn) {
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		// Wait for notification with timeout for graceful shutdown
		ctx, cancel := context.WithTimeout(c.ctx, 30*time.Second)
		notification, err := conn.Conn().WaitForNotification(ctx)
		cancel()

		if err != nil {
			if c.ctx.Err() != nil {
				return // Shutting down
			}
			// Timeout is expected, continue listening
			continue
		}

		logger.Debug(c.ctx, "received notification",
			"channel", notification.Channel,
			"payload", notification.Payload)

		c.handleNotification(notification.Payload)
	}
}

// handleNotification refreshes one medicine, or everything when the payload
// does not carry a valid id.
func (c *MedicineCache) handleNotification(payload string) {
	medicineID, err := id.Parse(strings.TrimSpace(payload))
	if err != nil {
		if err := c.Reload(c.ctx); err != nil {
			logger.Error(c.ctx, "failed to reload medicines", "error", err)
		}
		return
	}

	if err := c.reloadOne(c.ctx, medicineID); err != nil {
		logger.Error(c.ctx, "failed to reload medicine",
			"medicine_id", medicineID, "error", err)
	}
}

// Reload replaces the whole cached reference from the database.
func (c *MedicineCache) Reload(ctx context.Context) error {
	var medicines []*medicine.Medicine
	err := pgxscan.Select(ctx, c.pool, &medicines, `
		SELECT id, code, name, category_id, unit_symbol, unit_factor,
			   deletion_mark, created_at
		FROM medicines
	`)
	if err != nil {
		return fmt.Errorf("query medicines: %w", err)
	}

	byID := make(map[id.ID]*medicine.Medicine, len(medicines))
	byCode := make(map[string]*medicine.Medicine, len(medicines))
	for _, m := range medicines {
		byID[m.ID] = m
		byCode[m.Code] = m
	}

	c.mu.Lock()
	c.byID = byID
	c.byCode = byCode
	c.mu.Unlock()

	logger.Info(ctx, "loaded medicines", "count", len(medicines))
	return nil
}

// reloadOne refreshes a single medicine; a missing row evicts it.
func (c *MedicineCache) reloadOne(ctx context.Context, medicineID id.ID) error {
	var m medicine.Medicine
	err := pgxscan.Get(ctx, c.pool, &m, `
		SELECT id, code, name, category_id, unit_symbol, unit_factor,
			   deletion_mark, created_at
		FROM medicines
		WHERE id = $1
	`, medicineID)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		if pgxscan.NotFound(err) {
			if old, ok := c.byID[medicineID]; ok {
				delete(c.byCode, old.Code)
				delete(c.byID, medicineID)
			}
			return nil
		}
		return fmt.Errorf("query medicine: %w", err)
	}

	if old, ok := c.byID[m.ID]; ok && old.Code != m.Code {
		delete(c.byCode, old.Code)
	}
	c.byID[m.ID] = &m
	c.byCode[m.Code] = &m
	return nil
}

// Get returns the cached medicine by id.
func (c *MedicineCache) Get(medicineID id.ID) (*medicine.Medicine, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.byID[medicineID]
	if !ok {
		return nil, false
	}
	cp := *m
	return &cp, true
}

// GetByCode returns the cached medicine by code.
func (c *MedicineCache) GetByCode(code string) (*medicine.Medicine, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.byCode[code]
	if !ok {
		return nil, false
	}
	cp := *m
	return &cp, true
}

// Put stores a medicine; used by the read-through service path.
func (c *MedicineCache) Put(m *medicine.Medicine) {
	if m == nil {
		return
	}
	cp := *m
	c.mu.Lock()
	c.byID[cp.ID] = &cp
	c.byCode[cp.Code] = &cp
	c.mu.Unlock()
}

// Stats returns current cache statistics.
type Stats struct {
	MedicinesCount int
}

// GetStats returns current cache statistics.
func (c *MedicineCache) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{MedicinesCount: len(c.byID)}
}
