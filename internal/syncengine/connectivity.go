package syncengine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"chatsync/internal/constants"
	apperrors "chatsync/internal/errors"
	"chatsync/internal/metrics"

	"github.com/sirupsen/logrus"
)

// ConnectivityMonitor probes the backend health endpoint on a fixed interval
// and reports transitions. The engine feeds transitions into the outbound
// queue so drained messages are flushed as soon as the backend returns.
type ConnectivityMonitor struct {
	checker      HealthChecker
	interval     time.Duration
	probeTimeout time.Duration
	onChange     func(connected bool)
	logger       *apperrors.Logger

	connected atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewConnectivityMonitor(checker HealthChecker, interval, probeTimeout time.Duration, onChange func(bool), logger *logrus.Logger) *ConnectivityMonitor {
	if interval <= 0 {
		interval = constants.DefaultConnectivityCheckInterval
	}
	if probeTimeout <= 0 {
		probeTimeout = constants.DefaultConnectivityProbeTimeout
	}
	return &ConnectivityMonitor{
		checker:      checker,
		interval:     interval,
		probeTimeout: probeTimeout,
		onChange:     onChange,
		logger:       apperrors.WrapLogger(logger),
	}
}

// IsConnected reports the last observed backend state.
func (m *ConnectivityMonitor) IsConnected() bool {
	return m.connected.Load()
}

// Start begins periodic probing. A probe runs immediately so the first
// state is known before the first tick.
func (m *ConnectivityMonitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.probe(runCtx)

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				m.probe(runCtx)
			}
		}
	}()
}

// Stop halts probing and waits for the loop to exit.
func (m *ConnectivityMonitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

func (m *ConnectivityMonitor) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	err := m.checker.HealthCheck(probeCtx)
	connected := err == nil

	prev := m.connected.Swap(connected)
	if connected == prev {
		return
	}

	if connected {
		m.logger.Info("Backend reachable")
		metrics.SetGauge("backend_connected", 1, nil, "Backend reachability")
	} else {
		m.logger.LogWarn(err, "Backend unreachable")
		metrics.SetGauge("backend_connected", 0, nil, "Backend reachability")
	}

	if m.onChange != nil {
		m.onChange(connected)
	}
}
