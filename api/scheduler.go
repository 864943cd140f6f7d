/*
scheduler.go - Approval-workflow SLA monitor

PURPOSE:
  Periodically scans QUOTED configurations for approval steps that have sat
  PENDING longer than the configured SLA window and logs them, so an
  operator watching logs notices a stalled underwriting/actuarial/
  management approval before a customer does.

DESIGN:
  - Runs a background goroutine with a configurable check interval
  - A step's age is measured from the config's CreatedAt (the quote's own
    clock; ApprovalWorkflow carries no "opened at" column of its own, only
    ProcessedAt, which a PENDING step has not set yet)
  - Never mutates state: a breach is surfaced by logging, not by an
    automatic decision

CONFIGURATION:
  - CheckInterval: how often to scan (default: 1 hour)
  - SLADays: age in days at which a PENDING step is considered breached (default: 2)

SEE ALSO:
  - handlers.go: Approve endpoint (manual resolution); rejection is
    pricing.Engine.RejectApproval, which has no HTTP route
  - internal/pricing/engine.go: ApprovalWorkflow lifecycle
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/salamenterprise/claims-askes/internal/pricing"
	"github.com/salamenterprise/claims-askes/internal/timeutil"
)

// ApprovalSLAMonitor watches for approval steps stuck PENDING past the SLA
// window.
type ApprovalSLAMonitor struct {
	Store         pricing.ConfigurationStore
	CheckInterval time.Duration
	SLADays       int
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewApprovalSLAMonitor builds a monitor over a configuration store.
func NewApprovalSLAMonitor(store pricing.ConfigurationStore) *ApprovalSLAMonitor {
	return &ApprovalSLAMonitor{
		Store:         store,
		CheckInterval: 1 * time.Hour,
		SLADays:       2,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the monitor.
func (m *ApprovalSLAMonitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.Enabled {
		log.Println("[Scheduler] approval SLA monitor disabled, not starting")
		return
	}

	m.ticker = time.NewTicker(m.CheckInterval)
	m.wg.Add(1)
	go m.run()

	log.Printf("[Scheduler] approval SLA monitor started, interval=%v sla_days=%d", m.CheckInterval, m.SLADays)
}

// Stop stops the monitor.
func (m *ApprovalSLAMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ticker != nil {
		m.ticker.Stop()
		close(m.stop)
		m.wg.Wait()
		log.Println("[Scheduler] approval SLA monitor stopped")
	}
}

func (m *ApprovalSLAMonitor) run() {
	defer m.wg.Done()

	m.checkAndReport()
	for {
		select {
		case <-m.ticker.C:
			m.checkAndReport()
		case <-m.stop:
			return
		}
	}
}

// RunNow triggers an immediate check (for testing/admin).
func (m *ApprovalSLAMonitor) RunNow() {
	m.checkAndReport()
}

func (m *ApprovalSLAMonitor) checkAndReport() {
	ctx := context.Background()
	today := timeutil.Today()

	configs, err := m.Store.List(ctx, pricing.ListFilter{Status: pricing.StatusQuoted, Limit: 500})
	if err != nil {
		log.Printf("[Scheduler] error listing quoted configurations: %v", err)
		return
	}

	breached := 0
	for _, cfg := range configs {
		age := timeutil.DaysBetween(cfg.CreatedAt, today)
		for _, step := range cfg.Approvals {
			if step.Status != pricing.StepPending {
				continue
			}
			if age < m.SLADays {
				continue
			}
			breached++
			log.Printf("[Scheduler] SLA breach: config=%s step=%s age_days=%d threshold=%d",
				cfg.ID, step.StepName, age, m.SLADays)
		}
	}

	if breached > 0 {
		log.Printf("[Scheduler] approval SLA check complete: %d step(s) breached", breached)
	}
}
