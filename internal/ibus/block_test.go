package ibus

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"imebar/internal/bar"
	"imebar/internal/logging"
)

// fakeDaemon stands in for ibus-daemon: every dial mints a fresh connection
// the way the real Dial does, so closing the construction-time connection
// cannot disturb the listener's. Signals are emitted on the most recently
// dialed connection.
type fakeDaemon struct {
	mu      sync.Mutex
	engine  string
	down    bool
	current *fakeBus
}

func newFakeDaemon(engine string) *fakeDaemon {
	return &fakeDaemon{engine: engine}
}

func (d *fakeDaemon) dial(string) (engineBus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.down {
		return nil, fmt.Errorf("%w: daemon gone", ErrConnection)
	}
	bus := newFakeBus(d.engine)
	d.current = bus
	return bus, nil
}

func (d *fakeDaemon) bus() *fakeBus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

func (d *fakeDaemon) setDown(down bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.down = down
}

func (d *fakeDaemon) emitEngineChanged(engine string) {
	d.bus().emitEngineChanged(engine)
}

func testBlockConfig(resolver *AddressResolver) Config {
	return Config{
		ReceiveTimeout: 20 * time.Millisecond,
		MaxReconnect:   50 * time.Millisecond,
		MachineIDPath:  resolver.MachineIDPath,
	}
}

func startBlock(t *testing.T, daemon *fakeDaemon) (*Block, chan bar.Task) {
	t.Helper()
	resolver := writeDiscovery(t, "unix:abstract=/tmp/block-test")
	tasks := make(chan bar.Task, 16)

	block, err := newBlock(testBlockConfig(resolver), tasks, logging.Default(), daemon.dial)
	require.NoError(t, err)
	t.Cleanup(func() { block.Close() })
	return block, tasks
}

func waitTask(t *testing.T, tasks chan bar.Task) bar.Task {
	t.Helper()
	select {
	case task := <-tasks:
		return task
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a change notification")
		return bar.Task{}
	}
}

func TestBlockInitialQuerySeedsDisplay(t *testing.T) {
	block, _ := startBlock(t, newFakeDaemon("xkb:us::eng"))

	// Before any signal, update shows the synchronously queried engine,
	// not the sentinel.
	delay, err := block.Update()
	require.NoError(t, err)
	require.Nil(t, delay, "ibus block is event-driven, no re-poll interval")
	require.Equal(t, "xkb:us::eng", block.View().Text())
	require.Equal(t, bar.StateIdle, block.View().State())
}

func TestBlockSignalDrivesNextUpdate(t *testing.T) {
	daemon := newFakeDaemon("xkb:us::eng")
	block, tasks := startBlock(t, daemon)

	// Session-start notification from the listener's own re-query; after
	// it, the listener's connection is the daemon's current one.
	task := waitTask(t, tasks)
	require.Equal(t, block.ID(), task.BlockID)
	require.False(t, task.At.IsZero())

	daemon.emitEngineChanged("xkb:jp::jpn")
	task = waitTask(t, tasks)
	require.Equal(t, block.ID(), task.BlockID)

	_, err := block.Update()
	require.NoError(t, err)
	require.Equal(t, "xkb:jp::jpn", block.View().Text())
	require.Equal(t, bar.StateIdle, block.View().State())
}

func TestBlockConstructionFailsWithoutDiscovery(t *testing.T) {
	unset(t, "XDG_CONFIG_HOME")
	unset(t, "DISPLAY")
	tasks := make(chan bar.Task, 1)

	block, err := newBlock(Config{}, tasks, logging.Default(), newFakeDaemon("x").dial)
	require.Error(t, err)
	require.Nil(t, block, "no partial block on discovery failure")
}

func TestBlockConstructionFailsOnDialError(t *testing.T) {
	resolver := writeDiscovery(t, "unix:abstract=/tmp/block-test")
	tasks := make(chan bar.Task, 1)

	daemon := newFakeDaemon("x")
	daemon.setDown(true)

	block, err := newBlock(testBlockConfig(resolver), tasks, logging.Default(), daemon.dial)
	require.ErrorIs(t, err, ErrConnection)
	require.Nil(t, block)
}

func TestBlockClickIsNoop(t *testing.T) {
	block, _ := startBlock(t, newFakeDaemon("xkb:us::eng"))

	require.NoError(t, block.Click(bar.ClickEvent{Name: "ibus", Button: 1}))
}

func TestBlockCloseIsBounded(t *testing.T) {
	resolver := writeDiscovery(t, "unix:abstract=/tmp/block-test")
	tasks := make(chan bar.Task, 16)

	block, err := newBlock(testBlockConfig(resolver), tasks, logging.Default(), newFakeDaemon("xkb:us::eng").dial)
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, block.Close())
	require.Less(t, time.Since(start), closeTimeout)
}

func TestBlockDegradedMarksWidgetUrgent(t *testing.T) {
	daemon := newFakeDaemon("xkb:us::eng")
	block, tasks := startBlock(t, daemon)

	waitTask(t, tasks) // session start

	// Take the daemon down and kill the listener's transport: reconnects
	// fail, the store degrades, the last value survives.
	daemon.setDown(true)
	daemon.bus().Close()
	waitTask(t, tasks) // degraded notification

	_, err := block.Update()
	require.NoError(t, err)
	require.Equal(t, "xkb:us::eng", block.View().Text(), "last known value survives disconnect")
	require.Equal(t, bar.StateWarning, block.View().State())

	// The daemon comes back; the listener reconnects and recovers.
	daemon.setDown(false)
	require.Eventually(t, func() bool {
		if _, err := block.Update(); err != nil {
			return false
		}
		return block.View().State() == bar.StateIdle
	}, 2*time.Second, 10*time.Millisecond, "block never recovered after the daemon returned")
	require.Equal(t, "xkb:us::eng", block.View().Text())
}
