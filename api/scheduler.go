/*
scheduler.go - Automated reminder scheduler

PURPOSE:
  Periodically sends a reminder document to every known person so periods
  stuck waiting for data get escalated to manual handling once they exceed
  the configured dwell time.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Sends one reminder per person per sweep; the state machine decides
    which periods have overstayed
  - A sweep failure for one person does not stop the sweep

CONFIGURATION:
  - CheckInterval: How often to sweep (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewReminderScheduler(service)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - document/documents.go: Reminder document
  - benefit/machine.go: Dwell-time handling
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/warp/benefit-engine/document"
	"github.com/warp/benefit-engine/engine"
)

// ReminderScheduler handles the periodic timeout sweep.
type ReminderScheduler struct {
	Service       *engine.Service
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewReminderScheduler creates a new scheduler.
func NewReminderScheduler(svc *engine.Service) *ReminderScheduler {
	return &ReminderScheduler{
		Service:       svc,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (rs *ReminderScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.wg.Add(1)

	go rs.run()

	log.Printf("[Scheduler] Started with check interval: %v", rs.CheckInterval)
}

// Stop stops the scheduler.
func (rs *ReminderScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (rs *ReminderScheduler) run() {
	defer rs.wg.Done()

	// Run immediately on start
	rs.sweep()

	for {
		select {
		case <-rs.ticker.C:
			rs.sweep()
		case <-rs.stop:
			return
		}
	}
}

func (rs *ReminderScheduler) sweep() {
	ctx := context.Background()
	now := time.Now().UTC()

	persons, err := rs.Service.Persons(ctx)
	if err != nil {
		log.Printf("[Scheduler] Error listing persons: %v", err)
		return
	}

	swept := 0
	for _, personID := range persons {
		reminder := &document.Reminder{
			Base: document.Base{
				ID:       uuid.NewString(),
				PersonID: personID,
				Received: now,
			},
			Clock: now,
		}
		if err := rs.Service.Process(ctx, personID, reminder); err != nil {
			log.Printf("[Scheduler] Error sweeping person %s: %v", personID, err)
			continue
		}
		swept++
	}

	if swept > 0 {
		log.Printf("[Scheduler] Completed: %d persons swept at %v", swept, now.Format(time.RFC3339))
	}
}
