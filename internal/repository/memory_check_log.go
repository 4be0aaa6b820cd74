package repository

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"spamcheck-backend/internal/models"
)

// MemoryCheckLog keeps running totals in process when no database is
// configured. Individual records are not retained.
type MemoryCheckLog struct {
	mu         sync.Mutex
	stats      *models.CheckStats
	successSum int64
	successN   int64
}

func NewMemoryCheckLog() *MemoryCheckLog {
	return &MemoryCheckLog{stats: newStats()}
}

func (m *MemoryCheckLog) Record(ctx context.Context, rec *models.CheckRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.Total++
	addStats(m.stats, rec.State, rec.Failure, rec.Label, 1)
	if rec.State == models.StateSuccess {
		m.successSum += rec.DurationMS
		m.successN++
	}
	return nil
}

func (m *MemoryCheckLog) Stats(ctx context.Context) (*models.CheckStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := newStats()
	out.Total = m.stats.Total
	for k, v := range m.stats.ByState {
		out.ByState[k] = v
	}
	for k, v := range m.stats.ByLabel {
		out.ByLabel[k] = v
	}
	for k, v := range m.stats.ByFailure {
		out.ByFailure[k] = v
	}
	if m.successN > 0 {
		out.AvgLatency = float64(m.successSum) / float64(m.successN)
	}
	return out, nil
}
