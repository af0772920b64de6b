package presence

import (
	"log"
	"time"
)

// Reaper drives the recurring liveness sweep. It is the sole timeout
// mechanism: there are no per-request timeouts, staleness is entirely
// TTL-driven.
type Reaper struct {
	registry *Registry
	hasConn  HasConnection
	interval time.Duration
	stopChan chan struct{}
}

func NewReaper(registry *Registry, hasConn HasConnection, interval time.Duration) *Reaper {
	return &Reaper{
		registry: registry,
		hasConn:  hasConn,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

func (rp *Reaper) Start() {
	go rp.loop()
	log.Printf("Liveness reaper started (interval %s)", rp.interval)
}

func (rp *Reaper) Stop() {
	select {
	case <-rp.stopChan:
		return
	default:
		close(rp.stopChan)
	}
}

func (rp *Reaper) loop() {
	ticker := time.NewTicker(rp.interval)
	defer ticker.Stop()

	for {
		select {
		case <-rp.stopChan:
			return
		case <-ticker.C:
			rp.registry.ReapStale(rp.hasConn, time.Now().UTC())
		}
	}
}
