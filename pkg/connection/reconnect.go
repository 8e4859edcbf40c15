package connection

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Connection errors.
var (
	ErrAlreadyConnected  = errors.New("already connected")
	ErrNotConnected      = errors.New("not connected")
	ErrClosed            = errors.New("connection manager closed")
	ErrRetryBudget       = errors.New("retry budget exhausted")
	ErrReconnectDisabled = errors.New("reconnection disabled")
)

// State represents the connection state.
type State uint8

const (
	// StateDisconnected indicates no active connection.
	StateDisconnected State = iota

	// StateConnecting indicates a connection attempt is in progress.
	StateConnecting

	// StateConnected indicates an active connection.
	StateConnected

	// StateReconnecting indicates automatic reconnection is in progress.
	StateReconnecting

	// StateClosed indicates the manager has been closed.
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// ConnectFunc is called to establish a connection.
// It should return nil on success or an error on failure.
type ConnectFunc func(ctx context.Context) error

// ManagerConfig configures a connection manager.
type ManagerConfig struct {
	// Backoff customizes retry delays.
	Backoff BackoffConfig

	// MaxAttempts limits consecutive failed attempts before the manager
	// gives up and transitions to DISCONNECTED. Zero means unlimited.
	MaxAttempts int

	// AutoReconnect enables automatic reconnection after a connection
	// loss is reported via HandleConnectionLost.
	AutoReconnect bool
}

// Manager manages connection lifecycle with automatic reconnection.
type Manager struct {
	mu sync.RWMutex

	state State

	backoff *Backoff

	connectFn ConnectFunc

	cfg ManagerConfig

	ctx    context.Context
	cancel context.CancelFunc

	wg sync.WaitGroup

	onStateChange  func(oldState, newState State)
	onConnected    func()
	onDisconnected func(err error)
	onGiveUp       func(err error)
}

// NewManager creates a connection manager driving connectFn.
func NewManager(connectFn ConnectFunc, cfg ManagerConfig) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		state:     StateDisconnected,
		backoff:   NewBackoffWithConfig(cfg.Backoff),
		connectFn: connectFn,
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// OnStateChange registers a state transition callback.
func (m *Manager) OnStateChange(fn func(oldState, newState State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStateChange = fn
}

// OnConnected registers a callback invoked after each successful connect.
func (m *Manager) OnConnected(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onConnected = fn
}

// OnDisconnected registers a callback invoked when a connection loss is
// reported.
func (m *Manager) OnDisconnected(fn func(err error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDisconnected = fn
}

// OnGiveUp registers a callback invoked when the retry budget is
// exhausted.
func (m *Manager) OnGiveUp(fn func(err error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onGiveUp = fn
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// setState transitions the state and fires the callback outside the lock.
func (m *Manager) setState(newState State) {
	m.mu.Lock()
	oldState := m.state
	m.state = newState
	fn := m.onStateChange
	m.mu.Unlock()

	if fn != nil && oldState != newState {
		fn(oldState, newState)
	}
}

// Connect establishes the initial connection, retrying with backoff until
// success, retry budget exhaustion, or context cancellation.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateClosed:
		m.mu.Unlock()
		return ErrClosed
	case StateConnected:
		m.mu.Unlock()
		return ErrAlreadyConnected
	case StateConnecting, StateReconnecting:
		m.mu.Unlock()
		return ErrAlreadyConnected
	}
	oldState := m.state
	m.state = StateConnecting
	onChange := m.onStateChange
	m.mu.Unlock()

	if onChange != nil {
		onChange(oldState, StateConnecting)
	}

	err := m.connectLoop(ctx)
	if err != nil {
		m.setState(StateDisconnected)
		return err
	}

	m.backoff.Reset()
	m.setState(StateConnected)

	m.mu.RLock()
	fn := m.onConnected
	m.mu.RUnlock()
	if fn != nil {
		fn()
	}
	return nil
}

// connectLoop retries connectFn with backoff.
func (m *Manager) connectLoop(ctx context.Context) error {
	for {
		err := m.connectFn(ctx)
		if err == nil {
			return nil
		}

		if m.cfg.MaxAttempts > 0 && m.backoff.Attempts()+1 >= m.cfg.MaxAttempts {
			return errors.Join(ErrRetryBudget, err)
		}

		delay := m.backoff.Next()
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		case <-m.ctx.Done():
			return ErrClosed
		}
	}
}

// HandleConnectionLost reports a connection loss. If auto-reconnect is
// enabled, a background reconnection starts; otherwise the manager
// transitions to DISCONNECTED.
func (m *Manager) HandleConnectionLost(err error) {
	m.mu.Lock()
	if m.state != StateConnected {
		m.mu.Unlock()
		return
	}
	auto := m.cfg.AutoReconnect
	newState := StateDisconnected
	if auto {
		newState = StateReconnecting
	}
	oldState := m.state
	m.state = newState
	onChange := m.onStateChange
	onDisc := m.onDisconnected
	m.mu.Unlock()

	if onChange != nil {
		onChange(oldState, newState)
	}
	if onDisc != nil {
		onDisc(err)
	}

	if !auto {
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.runReconnect()
	}()
}

// runReconnect retries until success, budget exhaustion, or Close.
func (m *Manager) runReconnect() {
	err := m.connectLoop(m.ctx)
	if err != nil {
		m.setState(StateDisconnected)
		m.mu.RLock()
		fn := m.onGiveUp
		m.mu.RUnlock()
		if fn != nil {
			fn(err)
		}
		return
	}

	m.backoff.Reset()
	m.setState(StateConnected)

	m.mu.RLock()
	fn := m.onConnected
	m.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// Disconnect transitions to DISCONNECTED without closing the manager.
// The caller is responsible for closing the underlying transport.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	switch m.state {
	case StateClosed:
		m.mu.Unlock()
		return ErrClosed
	case StateDisconnected:
		m.mu.Unlock()
		return ErrNotConnected
	}
	oldState := m.state
	m.state = StateDisconnected
	onChange := m.onStateChange
	m.mu.Unlock()

	if onChange != nil {
		onChange(oldState, StateDisconnected)
	}
	return nil
}

// Close shuts the manager down. Close is idempotent. Any in-flight
// reconnection is cancelled.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return nil
	}
	m.state = StateClosed
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
	return nil
}
