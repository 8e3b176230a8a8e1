// Package ibus implements the status-line block reporting the active IBus
// input-method engine.
//
// Construction discovers the running ibus-daemon's private bus address,
// queries the current engine synchronously, then spawns a background
// listener that follows GlobalEngineChanged signals for the block's
// lifetime. The scheduler polls the block at arbitrary times; the listener
// and the poll path share only the Store.
package ibus

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"imebar/internal/bar"
	"imebar/internal/logging"
)

// closeTimeout bounds how long Close waits for the listener goroutine.
const closeTimeout = 5 * time.Second

// Config holds the block's tunables.
type Config struct {
	// ReceiveTimeout bounds each wait on the signal stream (transport
	// liveness polling, not cancellation).
	ReceiveTimeout time.Duration

	// MaxReconnect caps the backoff between reconnect attempts.
	MaxReconnect time.Duration

	// MachineIDPath overrides the machine identity file used for address
	// discovery.
	MachineIDPath string
}

func (c *Config) applyDefaults() {
	if c.ReceiveTimeout <= 0 {
		c.ReceiveTimeout = 100 * time.Second
	}
	if c.MaxReconnect <= 0 {
		c.MaxReconnect = time.Minute
	}
	if c.MachineIDPath == "" {
		c.MachineIDPath = "/etc/machine-id"
	}
}

// Block is the IBus status block.
type Block struct {
	id     string
	widget *bar.TextWidget
	store  *Store
	tasks  chan<- bar.Task
	log    *logging.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs the block. Address discovery and the initial engine query
// happen synchronously; if either fails there is no block. On success the
// listener goroutine is already running.
func New(cfg Config, tasks chan<- bar.Task, log *logging.Logger) (*Block, error) {
	return newBlock(cfg, tasks, log, func(address string) (engineBus, error) {
		return Dial(address)
	})
}

func newBlock(cfg Config, tasks chan<- bar.Task, log *logging.Logger, dial dialFunc) (*Block, error) {
	cfg.applyDefaults()

	resolver := &AddressResolver{MachineIDPath: cfg.MachineIDPath}
	address, err := resolver.Resolve()
	if err != nil {
		return nil, err
	}

	conn, err := dial(address)
	if err != nil {
		return nil, err
	}
	engine, err := conn.GlobalEngine()
	conn.Close()
	if err != nil {
		return nil, err
	}

	b := &Block{
		id:     uuid.NewString(),
		widget: bar.NewTextWidget("ibus").WithText("IBus"),
		store:  NewStore(engine),
		tasks:  tasks,
		log:    log.WithComponent("ibus"),
		done:   make(chan struct{}),
	}

	listener := &Listener{
		resolver:    resolver,
		store:       b.store,
		notify:      b.notifyChanged,
		log:         b.log,
		recvTimeout: cfg.ReceiveTimeout,
		maxBackoff:  cfg.MaxReconnect,
		dial:        dial,
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	go func() {
		defer close(b.done)
		listener.Run(ctx)
	}()

	b.log.Info("block started", "address", address, "engine", engine)
	return b, nil
}

// notifyChanged pushes a change event to the scheduler. Fire-and-forget: if
// the buffer is ever full the value is not lost, the next poll reads the
// store's latest state.
func (b *Block) notifyChanged() {
	select {
	case b.tasks <- bar.Task{BlockID: b.id, At: time.Now()}:
	default:
	}
}

// ID returns the block's identifier.
func (b *Block) ID() string {
	return b.id
}

// Update snapshots the store into the widget. The block is event-driven, so
// no re-poll delay is returned.
func (b *Block) Update() (*time.Duration, error) {
	engine, degraded := b.store.Snapshot()
	b.widget.SetText(engine)
	if degraded {
		b.widget.SetState(bar.StateWarning)
	} else {
		b.widget.SetState(bar.StateIdle)
	}
	return nil, nil
}

// View returns the block's widget.
func (b *Block) View() *bar.TextWidget {
	return b.widget
}

// Click accepts click events.
// TODO: use clicks to cycle the global engine via SetGlobalEngine.
func (b *Block) Click(bar.ClickEvent) error {
	return nil
}

// Close stops the listener and waits for it with a bound.
func (b *Block) Close() error {
	b.cancel()
	select {
	case <-b.done:
		return nil
	case <-time.After(closeTimeout):
		return fmt.Errorf("listener did not stop within %s", closeTimeout)
	}
}
