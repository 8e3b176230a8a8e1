package ibus

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/godbus/dbus/v5"

	"imebar/internal/logging"
)

// signalBuffer sizes the subscription channel. GlobalEngineChanged is a
// human-driven signal; bursts are tiny.
const signalBuffer = 16

// engineBus is the connection surface the listener needs. *Conn satisfies
// it; tests substitute a fake.
type engineBus interface {
	GlobalEngine() (string, error)
	Subscribe(buffer int) (<-chan *dbus.Signal, error)
	Connected() bool
	Close() error
}

// dialFunc opens a connection to the bus at the given address.
type dialFunc func(address string) (engineBus, error)

// Listener keeps the store current with the active engine. It owns a
// dedicated bus connection, runs on its own goroutine under the block's
// context, and survives connection loss: each failed session marks the
// store degraded and is retried with exponential backoff, re-resolving the
// address first since an ibus-daemon restart rewrites the discovery file.
//
// Every state change is written to the store before the notification is
// raised, so a reader woken by a Task always sees at least that value.
type Listener struct {
	resolver    *AddressResolver
	store       *Store
	notify      func()
	log         *logging.Logger
	recvTimeout time.Duration
	maxBackoff  time.Duration
	dial        dialFunc

	// initialBackoff overrides the first retry delay; zero means one second.
	initialBackoff time.Duration
}

// Run blocks until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	if l.initialBackoff > 0 {
		bo.InitialInterval = l.initialBackoff
	}
	bo.MaxInterval = l.maxBackoff
	bo.MaxElapsedTime = 0

	for {
		err := l.session(ctx, bo)
		if ctx.Err() != nil {
			return
		}

		l.store.SetDegraded(true)
		l.notify()

		wait := bo.NextBackOff()
		l.log.Warn("bus session ended, reconnecting", "error", err, "backoff", wait)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// session runs one connection lifetime: resolve, dial, subscribe, then
// receive until the connection dies or ctx is cancelled.
func (l *Listener) session(ctx context.Context, bo *backoff.ExponentialBackOff) error {
	address, err := l.resolver.Resolve()
	if err != nil {
		return err
	}

	conn, err := l.dial(address)
	if err != nil {
		return err
	}
	defer conn.Close()

	signals, err := conn.Subscribe(signalBuffer)
	if err != nil {
		return err
	}

	// Signals emitted before the subscription are gone, so re-read the
	// active engine to catch anything missed while disconnected.
	engine, err := conn.GlobalEngine()
	if err != nil {
		return err
	}
	bo.Reset()
	l.store.Set(engine)
	l.store.SetDegraded(false)
	l.notify()

	// The ticker bounds each wait so transport death is noticed even when
	// no signals arrive. It is not a cancellation mechanism; ctx is.
	ticker := time.NewTicker(l.recvTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig, ok := <-signals:
			if !ok {
				return fmt.Errorf("%w: signal stream closed", ErrConnection)
			}
			engine, ok := engineFromSignal(sig)
			if !ok {
				continue
			}
			l.store.Set(engine)
			l.notify()
		case <-ticker.C:
			if !conn.Connected() {
				return fmt.Errorf("%w: transport closed", ErrConnection)
			}
		}
	}
}
