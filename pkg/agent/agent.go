// Package agent runs realms on their own goroutines. Agents share nothing:
// values cross between them only as structured-clone messages.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/nooga/jsintrinsics/pkg/builtins"
	"github.com/nooga/jsintrinsics/pkg/vm"
)

var log = commonlog.GetLogger("jsintrinsics.agent")

var (
	ErrNotStarted = errors.New("agent not started")
	ErrStopped    = errors.New("agent stopped")
)

// Handler receives each message, already rebuilt in the agent's realm. It
// runs on the agent's goroutine.
type Handler func(v *vm.VM, msg vm.Value) error

// Config controls agent creation.
type Config struct {
	Realm      vm.RealmOptions
	InboxSize  int
	ErrorsSize int
	OnMessage  Handler
}

// Stats tracks message processing.
type Stats struct {
	Received  int
	Handled   int
	Failed    int
	TotalTime time.Duration
}

// Agent owns a VM with a bootstrapped realm and a receive loop.
type Agent struct {
	id      uuid.UUID
	vm      *vm.VM
	handler Handler

	inbox  chan []byte
	errors chan error
	quit   chan struct{} // closed by Shutdown
	done   chan struct{} // closed when the receive loop exits

	cancel context.CancelFunc

	started int32 // atomic
	stopped int32 // atomic

	stats      Stats
	statsMutex sync.RWMutex
}

// New creates an agent and installs the standard builtins into its realm.
func New(config Config) (*Agent, error) {
	if config.OnMessage == nil {
		return nil, errors.New("agent: OnMessage handler is required")
	}
	if config.InboxSize <= 0 {
		config.InboxSize = 16
	}
	if config.ErrorsSize <= 0 {
		config.ErrorsSize = config.InboxSize
	}
	v := vm.NewVM(config.Realm)
	if _, err := builtins.Initialize(v); err != nil {
		return nil, fmt.Errorf("agent: bootstrap realm: %w", err)
	}
	return &Agent{
		id:      uuid.New(),
		vm:      v,
		handler: config.OnMessage,
		inbox:   make(chan []byte, config.InboxSize),
		errors:  make(chan error, config.ErrorsSize),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}, nil
}

// ID returns the agent's identifier.
func (a *Agent) ID() uuid.UUID { return a.id }

// VM returns the agent's VM. It must only be used from the handler or before
// Start.
func (a *Agent) VM() *vm.VM { return a.vm }

// Start launches the receive loop. Cancelling ctx stops it without
// draining the inbox.
func (a *Agent) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&a.started, 0, 1) {
		return fmt.Errorf("agent %s already started", a.id)
	}
	ctx, a.cancel = context.WithCancel(ctx)
	go a.run(ctx)
	log.Debugf("agent %s started", a.id)
	return nil
}

// PostMessage clones msg out of sender's realm and queues it for the agent.
// It blocks while the inbox is full, and fails with ErrStopped once the agent
// is shutting down or its receive loop has exited. A message racing with
// Shutdown may be accepted and then dropped.
func (a *Agent) PostMessage(ctx context.Context, sender *vm.VM, msg vm.Value) error {
	if atomic.LoadInt32(&a.started) == 0 {
		return ErrNotStarted
	}
	data, err := Serialize(sender, msg)
	if err != nil {
		return err
	}
	if atomic.LoadInt32(&a.stopped) == 1 {
		return ErrStopped
	}
	select {
	case a.inbox <- data:
		a.statsMutex.Lock()
		a.stats.Received++
		a.statsMutex.Unlock()
		return nil
	case <-a.quit:
		return ErrStopped
	case <-a.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Errors returns the channel of handler failures. Failures are dropped when
// nobody drains it.
func (a *Agent) Errors() <-chan error {
	return a.errors
}

// Shutdown stops accepting messages and waits for queued ones to be handled,
// or for ctx to expire.
func (a *Agent) Shutdown(ctx context.Context) error {
	if atomic.LoadInt32(&a.started) == 0 {
		return ErrNotStarted
	}
	if !atomic.CompareAndSwapInt32(&a.stopped, 0, 1) {
		return fmt.Errorf("agent %s already stopped", a.id)
	}
	close(a.quit)

	select {
	case <-a.done:
		a.cancel()
		close(a.errors)
		log.Debugf("agent %s stopped", a.id)
		return nil
	case <-ctx.Done():
		a.cancel()
		return ctx.Err()
	}
}

// Stats returns a snapshot of the processing counters.
func (a *Agent) Stats() Stats {
	a.statsMutex.RLock()
	defer a.statsMutex.RUnlock()
	return a.stats
}

func (a *Agent) run(ctx context.Context) {
	defer close(a.done)
	for {
		select {
		case data := <-a.inbox:
			a.process(data)
		case <-a.quit:
			// drain what was queued before Shutdown
			for {
				select {
				case data := <-a.inbox:
					a.process(data)
				case <-ctx.Done():
					return
				default:
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

func (a *Agent) process(data []byte) {
	start := time.Now()
	err := a.deliver(data)

	a.statsMutex.Lock()
	if err == nil {
		a.stats.Handled++
	} else {
		a.stats.Failed++
	}
	a.stats.TotalTime += time.Since(start)
	a.statsMutex.Unlock()

	if err != nil {
		log.Debugf("agent %s: %s", a.id, err)
		select {
		case a.errors <- err:
		default:
		}
	}
}

func (a *Agent) deliver(data []byte) error {
	msg, err := Deserialize(a.vm, data)
	if err != nil {
		return err
	}
	if err := a.handler(a.vm, msg); err != nil {
		return fmt.Errorf("agent %s: handler: %w", a.id, err)
	}
	return nil
}
