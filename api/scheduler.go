/*
scheduler.go - Automated violation detection scheduler

PURPOSE:
  Periodically sweeps every company's recent shifts through the detector
  so violations are recorded without anyone clicking a button.

DESIGN:
  - Runs a background goroutine with configurable scan interval
  - Iterates every known company and runs a detection pass
  - Per-company failures are logged and skipped, never abort the sweep
  - Detection itself is idempotent, so overlapping sweeps are harmless

CONFIGURATION:
  - ScanInterval: How often to sweep (default: 5 minutes)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewDetectionScheduler(engine)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerDetection endpoint (manual pass)
  - rating/detector.go: The scan each sweep runs
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/shiftwatch/rating-engine/rating"
)

// DetectionScheduler runs periodic detection sweeps across all companies.
type DetectionScheduler struct {
	Engine       *rating.Engine
	ScanInterval time.Duration
	Enabled      bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewDetectionScheduler creates a new scheduler.
func NewDetectionScheduler(engine *rating.Engine) *DetectionScheduler {
	return &DetectionScheduler{
		Engine:       engine,
		ScanInterval: 5 * time.Minute,
		Enabled:      true,
		stop:         make(chan bool),
	}
}

// Start begins the scheduler.
func (ds *DetectionScheduler) Start() {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if !ds.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	ds.ticker = time.NewTicker(ds.ScanInterval)
	ds.wg.Add(1)

	go ds.run()

	log.Printf("[Scheduler] Started with scan interval: %v", ds.ScanInterval)
}

// Stop stops the scheduler.
func (ds *DetectionScheduler) Stop() {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.ticker != nil {
		ds.ticker.Stop()
		close(ds.stop)
		ds.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (ds *DetectionScheduler) run() {
	defer ds.wg.Done()

	// Run immediately on start
	ds.sweep()

	for {
		select {
		case <-ds.ticker.C:
			ds.sweep()
		case <-ds.stop:
			return
		}
	}
}

func (ds *DetectionScheduler) sweep() {
	ctx := context.Background()

	companies, err := ds.Engine.Employees.ListCompanies(ctx)
	if err != nil {
		log.Printf("[Scheduler] Error listing companies: %v", err)
		return
	}

	scanned := 0
	created := 0
	for _, companyID := range companies {
		result, err := ds.Engine.RunDetection(ctx, companyID)
		if err != nil {
			log.Printf("[Scheduler] Error scanning company %s: %v", companyID, err)
			continue
		}
		scanned += result.ShiftsScanned
		created += result.ViolationsCreated
		for _, recordErr := range result.Errors {
			log.Printf("[Scheduler] Company %s: %v", companyID, recordErr)
		}
	}

	if created > 0 {
		log.Printf("[Scheduler] Sweep completed: %d shifts scanned, %d violations created", scanned, created)
	}
}

// RunNow triggers an immediate sweep (for testing/admin).
func (ds *DetectionScheduler) RunNow() {
	ds.sweep()
}

// GetNextRunTime returns when the next scheduled sweep will occur.
func (ds *DetectionScheduler) GetNextRunTime() time.Time {
	return time.Now().Add(ds.ScanInterval)
}
