package bar

import (
	"context"
	"errors"
	"time"

	"imebar/internal/logging"
)

// taskBuffer sizes the change-notification channel. Blocks notify
// fire-and-forget; the buffer only has to absorb bursts between scheduler
// wakeups, and a dropped task costs nothing because the next poll reads the
// block's latest state anyway.
const taskBuffer = 64

// Scheduler drives block updates. Event-driven blocks push Tasks; interval
// blocks are re-polled after the delay their Update returns. All Update,
// View and Click calls happen on the Run goroutine.
type Scheduler struct {
	log    *logging.Logger
	out    *Writer
	blocks []Block
	byID   map[string]Block

	tasks     chan Task
	clicks    chan ClickEvent
	deadlines map[string]time.Time
}

// NewScheduler creates a scheduler writing status lines to out.
func NewScheduler(out *Writer, log *logging.Logger) *Scheduler {
	return &Scheduler{
		log:       log.WithComponent("scheduler"),
		out:       out,
		byID:      make(map[string]Block),
		tasks:     make(chan Task, taskBuffer),
		clicks:    make(chan ClickEvent, 8),
		deadlines: make(map[string]time.Time),
	}
}

// Tasks returns the channel blocks push change notifications into.
func (s *Scheduler) Tasks() chan<- Task {
	return s.tasks
}

// Clicks returns the channel click events are delivered on.
func (s *Scheduler) Clicks() chan<- ClickEvent {
	return s.clicks
}

// Add registers a block. Blocks are rendered in registration order.
func (s *Scheduler) Add(b Block) {
	s.blocks = append(s.blocks, b)
	s.byID[b.ID()] = b
}

// Len returns the number of registered blocks.
func (s *Scheduler) Len() int {
	return len(s.blocks)
}

// Run updates every block once, emits the protocol header and first status
// line, then serves tasks, clicks, and interval deadlines until ctx is
// cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.blocks) == 0 {
		return errors.New("no blocks registered")
	}

	if err := s.out.WriteHeader(true); err != nil {
		return err
	}

	s.updateAll()
	if err := s.emit(); err != nil {
		return err
	}

	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		var timerC <-chan time.Time
		if next, ok := s.nextDeadline(); ok {
			timer.Reset(time.Until(next))
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case task := <-s.tasks:
			s.updateOne(task.BlockID)
		case ev := <-s.clicks:
			s.dispatchClick(ev)
		case <-timerC:
			s.updateDue()
		}
		if timerC != nil && !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}

		if err := s.emit(); err != nil {
			return err
		}
	}
}

// RunOnce updates every block and emits a single status line, for -once
// debugging runs.
func (s *Scheduler) RunOnce() error {
	if len(s.blocks) == 0 {
		return errors.New("no blocks registered")
	}
	s.updateAll()
	return s.out.WriteLine(s.segments())
}

func (s *Scheduler) updateAll() {
	for _, b := range s.blocks {
		s.update(b)
	}
}

func (s *Scheduler) updateOne(id string) {
	b, ok := s.byID[id]
	if !ok {
		s.log.Debug("task for unknown block", "block_id", id)
		return
	}
	s.update(b)
}

func (s *Scheduler) updateDue() {
	now := time.Now()
	for _, b := range s.blocks {
		if deadline, ok := s.deadlines[b.ID()]; ok && !deadline.After(now) {
			s.update(b)
		}
	}
}

func (s *Scheduler) update(b Block) {
	delay, err := b.Update()
	if err != nil {
		// A failing block keeps its previous text; the bar stays up.
		s.log.Warn("block update failed", "block", b.View().Name(), "error", err)
	}
	if delay != nil {
		s.deadlines[b.ID()] = time.Now().Add(*delay)
	} else {
		delete(s.deadlines, b.ID())
	}
}

func (s *Scheduler) dispatchClick(ev ClickEvent) {
	for _, b := range s.blocks {
		if b.View().Name() != ev.Name {
			continue
		}
		if err := b.Click(ev); err != nil {
			s.log.Warn("block click failed", "block", ev.Name, "error", err)
		}
		s.update(b)
		return
	}
}

func (s *Scheduler) nextDeadline() (time.Time, bool) {
	var next time.Time
	for _, deadline := range s.deadlines {
		if next.IsZero() || deadline.Before(next) {
			next = deadline
		}
	}
	return next, !next.IsZero()
}

func (s *Scheduler) segments() []Segment {
	segments := make([]Segment, 0, len(s.blocks))
	for _, b := range s.blocks {
		segments = append(segments, b.View().Segment())
	}
	return segments
}

func (s *Scheduler) emit() error {
	return s.out.WriteLine(s.segments())
}
