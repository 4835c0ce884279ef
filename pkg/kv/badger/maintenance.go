package badger

import (
	"log"
	"sync"
	"time"

	bg "github.com/dgraph-io/badger/v4"
)

// GCManager runs badger's value-log garbage collection on a schedule,
// adapted from the teacher's MaintenanceManager
// (pkg/resource/badger/maintenance.go) but trimmed to the one routine
// this engine needs: compaction/stats reporting served no named
// operation here and were dropped (see DESIGN.md).
type GCManager struct {
	db           *bg.DB
	logger       *log.Logger
	discardRatio float64
	interval     time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// NewGCManager returns a manager for db. Call Start to begin the periodic
// sweep; Stop before closing db.
func NewGCManager(db *bg.DB, interval time.Duration, discardRatio float64, logger *log.Logger) *GCManager {
	if logger == nil {
		logger = log.Default()
	}
	if discardRatio <= 0 {
		discardRatio = 0.5
	}
	return &GCManager{db: db, logger: logger, discardRatio: discardRatio, interval: interval}
}

func (m *GCManager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	go m.loop(m.stopCh)
}

func (m *GCManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	close(m.stopCh)
	m.running = false
}

func (m *GCManager) loop(stopCh chan struct{}) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if err := m.RunOnce(); err != nil {
				m.logger.Printf("docstore: value log gc failed: %v", err)
			}
		}
	}
}

// RunOnce reclaims value log space until badger reports nothing left to
// rewrite.
func (m *GCManager) RunOnce() error {
	for {
		err := m.db.RunValueLogGC(m.discardRatio)
		if err != nil {
			if err == bg.ErrNoRewrite {
				return nil
			}
			return err
		}
	}
}
