package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/headwind-sh/headwind/internal/metrics"
	"github.com/headwind-sh/headwind/pkg/logging"
)

// Manager runs the reconciliation loop of a single resource kind.
//
// It owns:
//   - the change detector feeding the loop, restarted with backoff
//   - a work queue deduplicating requests per resource
//   - a pool of workers calling the reconciler
//   - per-resource status tracking
type Manager struct {
	mu sync.RWMutex

	config ManagerConfig

	reconciler Reconciler

	// detector is optional; without one the manager only processes
	// triggered requests.
	detector ChangeDetector

	queue *delayedQueue

	statusTracker map[string]*ReconcileStatus

	changeChan chan ChangeEvent

	running bool
}

// NewManager creates a manager for reconciler. detector may be nil.
func NewManager(reconciler Reconciler, detector ChangeDetector, config ManagerConfig) *Manager {
	if config.WorkerCount <= 0 {
		config.WorkerCount = 2
	}
	if config.ErrorBackoff <= 0 {
		config.ErrorBackoff = 30 * time.Second
	}
	if config.ReconcileTimeout <= 0 {
		config.ReconcileTimeout = 30 * time.Second
	}
	config.Stream = config.Stream.withDefaults()

	return &Manager{
		config:        config,
		reconciler:    reconciler,
		detector:      detector,
		queue:         NewDelayedQueue(),
		statusTracker: make(map[string]*ReconcileStatus),
		changeChan:    make(chan ChangeEvent, 100),
	}
}

// ResourceType returns the kind this manager reconciles.
func (m *Manager) ResourceType() ResourceType {
	return m.reconciler.GetResourceType()
}

// Run processes changes until ctx is cancelled. Workers finish their
// current reconciliation before Run returns.
func (m *Manager) Run(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("manager for %s is already running", m.ResourceType())
	}
	m.running = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	var wg sync.WaitGroup

	if m.detector != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runStream(ctx, m.ResourceType(), m.config.Stream, m.config.Metrics, func(ctx context.Context) error {
				return m.detector.Run(ctx, m.changeChan)
			})
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		m.processChangeEvents(ctx)
	}()

	for i := 0; i < m.config.WorkerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			m.worker(ctx, id)
		}(i)
	}

	logging.Info("ReconcileManager", "Started %s reconciliation with %d workers", m.ResourceType(), m.config.WorkerCount)

	<-ctx.Done()
	m.queue.Shutdown()
	wg.Wait()

	logging.Info("ReconcileManager", "Stopped %s reconciliation", m.ResourceType())
	return nil
}

func (m *Manager) processChangeEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-m.changeChan:
			m.handleChangeEvent(event)
		}
	}
}

func (m *Manager) handleChangeEvent(event ChangeEvent) {
	if event.Type != m.ResourceType() {
		logging.Debug("ReconcileManager", "Ignoring %s event for %s %s", event.Type, m.ResourceType(), event.Name)
		return
	}

	logging.Debug("ReconcileManager", "Handling change event: %s %s %s/%s (%s)",
		event.Operation, event.Type, event.Namespace, event.Name, event.Source)

	m.updateStatus(event.Name, event.Namespace, StatePending, "")
	m.queue.Add(ReconcileRequest{
		Type:      event.Type,
		Name:      event.Name,
		Namespace: event.Namespace,
		Attempt:   1,
	})
}

func (m *Manager) worker(ctx context.Context, id int) {
	logging.Debug("ReconcileManager", "%s worker %d started", m.ResourceType(), id)

	for {
		req, ok := m.queue.Get(ctx)
		if !ok {
			logging.Debug("ReconcileManager", "%s worker %d shutting down", m.ResourceType(), id)
			return
		}

		m.processRequest(ctx, req)
		m.queue.Done(req)
	}
}

func (m *Manager) processRequest(ctx context.Context, req ReconcileRequest) {
	m.updateStatus(req.Name, req.Namespace, StateReconciling, "")

	logging.Debug("ReconcileManager", "Reconciling %s %s/%s (attempt %d)",
		req.Type, req.Namespace, req.Name, req.Attempt)

	rctx, cancel := context.WithTimeout(ctx, m.config.ReconcileTimeout)
	defer cancel()

	start := time.Now()
	result := m.reconciler.Reconcile(rctx, req)

	if errors.Is(rctx.Err(), context.DeadlineExceeded) && result.Error == nil {
		result.Error = fmt.Errorf("reconciliation timed out after %v", m.config.ReconcileTimeout)
	}

	if result.Error != nil {
		m.config.Metrics.Reconcile(string(req.Type), metrics.ResultError, time.Since(start))
		m.handleReconcileError(ctx, req, result)
		return
	}

	outcome := result.Outcome
	if outcome == "" {
		outcome = metrics.ResultSuccess
	}
	m.config.Metrics.Reconcile(string(req.Type), outcome, time.Since(start))
	m.updateStatus(req.Name, req.Namespace, StateSynced, "")
	if result.RequeueAfter > 0 {
		m.queue.AddAfter(ReconcileRequest{Type: req.Type, Name: req.Name, Namespace: req.Namespace, Attempt: 1}, result.RequeueAfter)
		logging.Debug("ReconcileManager", "Requeuing %s %s/%s after %v", req.Type, req.Namespace, req.Name, result.RequeueAfter)
	}
}

// handleReconcileError schedules a retry after the fixed error backoff.
// Failed resources are retried for as long as the manager runs.
func (m *Manager) handleReconcileError(ctx context.Context, req ReconcileRequest, result ReconcileResult) {
	if ctx.Err() != nil {
		return
	}

	logging.Warn("ReconcileManager", "Reconciliation failed for %s %s/%s: %v",
		req.Type, req.Namespace, req.Name, result.Error)

	m.updateStatus(req.Name, req.Namespace, StateError, result.Error.Error())

	req.Attempt++
	req.LastError = result.Error
	m.queue.AddAfter(req, m.config.ErrorBackoff)
}

func (m *Manager) updateStatus(name, namespace string, state ReconcileState, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := statusKey(name, namespace)
	status, ok := m.statusTracker[key]
	if !ok {
		status = &ReconcileStatus{
			ResourceType: m.reconciler.GetResourceType(),
			Name:         name,
			Namespace:    namespace,
		}
		m.statusTracker[key] = status
	}

	status.State = state
	status.LastError = errMsg

	switch state {
	case StateSynced:
		now := time.Now()
		status.LastReconcileTime = &now
		status.RetryCount = 0
	case StateError:
		status.RetryCount++
	}
}

func statusKey(name, namespace string) string {
	if namespace != "" {
		return namespace + "/" + name
	}
	return name
}

// GetStatus returns the reconciliation status of a resource.
func (m *Manager) GetStatus(name, namespace string) (ReconcileStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, ok := m.statusTracker[statusKey(name, namespace)]
	if !ok {
		return ReconcileStatus{}, false
	}
	return *status, true
}

// GetAllStatuses returns the status of every resource seen so far.
func (m *Manager) GetAllStatuses() []ReconcileStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	statuses := make([]ReconcileStatus, 0, len(m.statusTracker))
	for _, status := range m.statusTracker {
		statuses = append(statuses, *status)
	}
	return statuses
}

// TriggerReconcile queues a reconciliation of a resource. It is safe to
// call before Run; the request is processed once workers start.
func (m *Manager) TriggerReconcile(name, namespace string, source ChangeSource) {
	m.handleChangeEvent(ChangeEvent{
		Type:      m.ResourceType(),
		Name:      name,
		Namespace: namespace,
		Operation: OperationUpdate,
		Timestamp: time.Now(),
		Source:    source,
	})
}

// IsRunning returns whether Run is active.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// GetQueueLength returns the number of requests ready for processing.
func (m *Manager) GetQueueLength() int {
	return m.queue.Len()
}
