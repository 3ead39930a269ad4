package messaging

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Mode is the audio thread's position in the structural-edit protocol.
type Mode int32

const (
	Running Mode = iota
	PausedForStructuralEdit
	Resuming
)

func (m Mode) String() string {
	switch m {
	case PausedForStructuralEdit:
		return "paused_for_structural_edit"
	case Resuming:
		return "resuming"
	default:
		return "running"
	}
}

// Owner records who holds the structure mutex.
type Owner int32

const (
	OwnerNone Owner = iota
	OwnerAudio
	OwnerSerial
)

var (
	// ErrQueueFull is returned by TrySend when the audio-bound ring is full.
	ErrQueueFull = errors.New("messaging: queue full")
	// ErrAudioNotResponding is returned when the audio thread did not reach a
	// block boundary before the context ended.
	ErrAudioNotResponding = errors.New("messaging: audio thread not responding")
)

// Controller couples the two rings with the structure mutex.
//
// The audio thread calls BeginBlock at the top of every block and PostToSerial
// when it has something to report. Everything else is for the control
// thread. The structure mutex is only ever taken by the audio thread while
// running a dispatched callback, or by the control thread while the audio
// thread is paused (or not running at all).
type Controller struct {
	serialToAudio *Ring[Message]
	audioToSerial *Ring[Message]

	modifyStructureMutex sync.Mutex
	owner                atomic.Int32

	mode           atomic.Int32
	pauseRequested atomic.Bool
	audioRunning   atomic.Bool

	// A structure-lock message the audio thread could not lock for. It is
	// retried before anything else on the next block to keep FIFO order.
	held    Message
	hasHeld bool

	overflow atomic.Uint64

	sendMu  sync.Mutex // serializes control-side producers
	drainMu sync.Mutex // serializes control-side consumers
	pauseMu sync.Mutex

	serialHandler atomic.Pointer[func(Message)]
	pollInterval  time.Duration
	log           *slog.Logger
}

// NewController creates rings of queueSize messages each.
func NewController(queueSize int) *Controller {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &Controller{
		serialToAudio: NewRing[Message](queueSize),
		audioToSerial: NewRing[Message](queueSize),
		pollInterval:  200 * time.Microsecond,
		log:           slog.Default(),
	}
}

// SetLogger replaces the controller's logger.
func (c *Controller) SetLogger(l *slog.Logger) {
	if l != nil {
		c.log = l
	}
}

// SetSerialHandler installs the control-thread handler for audio→control
// messages that are not callbacks.
func (c *Controller) SetSerialHandler(h func(Message)) {
	if h == nil {
		c.serialHandler.Store(nil)
		return
	}
	c.serialHandler.Store(&h)
}

// SetAudioRunning marks whether an audio thread is currently calling
// BeginBlock. While it is not, control-thread edits take the structure mutex
// directly.
func (c *Controller) SetAudioRunning(running bool) {
	c.audioRunning.Store(running)
	if !running {
		c.mode.Store(int32(Running))
	}
}

// AudioRunning reports the flag set by SetAudioRunning.
func (c *Controller) AudioRunning() bool { return c.audioRunning.Load() }

// Mode returns the current protocol mode.
func (c *Controller) Mode() Mode { return Mode(c.mode.Load()) }

// StructureOwner returns who currently holds the structure mutex.
func (c *Controller) StructureOwner() Owner { return Owner(c.owner.Load()) }

// StructureHeld reports whether the structure mutex is held by a legal owner.
func (c *Controller) StructureHeld() bool { return c.StructureOwner() != OwnerNone }

// Overflows returns how many audio→control messages were dropped.
func (c *Controller) Overflows() uint64 { return c.overflow.Load() }

// Pending returns the number of messages waiting for the audio thread.
func (c *Controller) Pending() int { return c.serialToAudio.Len() }

// ---- audio thread ----

// BeginBlock runs the pause protocol and then drains the control→audio queue,
// passing messages that are not callbacks to handle. It returns false when the
// audio thread must output silence for this block.
func (c *Controller) BeginBlock(handle func(Message)) bool {
	if Mode(c.mode.Load()) == PausedForStructuralEdit {
		if c.pauseRequested.Load() {
			return false
		}
		c.mode.Store(int32(Resuming))
	}
	if Mode(c.mode.Load()) == Resuming {
		c.mode.Store(int32(Running))
	}

	c.drain(handle)

	if c.pauseRequested.Load() {
		c.mode.Store(int32(PausedForStructuralEdit))
		return false
	}
	return true
}

func (c *Controller) drain(handle func(Message)) {
	if c.hasHeld {
		if !c.tryRunLocked(c.held) {
			return
		}
		c.held = Message{}
		c.hasHeld = false
	}
	for {
		m, ok := c.serialToAudio.Pop()
		if !ok {
			return
		}
		switch m.Tag {
		case DispatchToPointerUnderStructureLock:
			if !c.tryRunLocked(m) {
				c.held = m
				c.hasHeld = true
				return
			}
		case DispatchToPointer:
			if m.Callback != nil {
				m.Callback()
			}
		default:
			if handle != nil {
				handle(m)
			}
		}
	}
}

// tryRunLocked runs m.Callback under the structure mutex without blocking.
func (c *Controller) tryRunLocked(m Message) bool {
	if !c.modifyStructureMutex.TryLock() {
		return false
	}
	c.owner.Store(int32(OwnerAudio))
	if m.Callback != nil {
		m.Callback()
	}
	c.owner.Store(int32(OwnerNone))
	c.modifyStructureMutex.Unlock()
	return true
}

// PostToSerial queues a message for the control thread. It never blocks; a
// full queue drops the message and counts an overflow.
func (c *Controller) PostToSerial(m Message) bool {
	if c.audioToSerial.Push(m) {
		return true
	}
	c.overflow.Add(1)
	return false
}

// ---- control thread ----

// TrySend queues a message for the audio thread without waiting.
func (c *Controller) TrySend(m Message) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.serialToAudio.Push(m) {
		return ErrQueueFull
	}
	return nil
}

// Send queues a message for the audio thread, waiting while the queue is
// full. Waiting happens on the control thread only.
func (c *Controller) Send(ctx context.Context, m Message) error {
	for {
		err := c.TrySend(m)
		if err == nil {
			return nil
		}
		if !c.audioRunning.Load() {
			return err
		}
		if werr := c.sleep(ctx); werr != nil {
			return werr
		}
	}
}

// DrainSerial processes every queued audio→control message and returns how
// many were handled.
func (c *Controller) DrainSerial() int {
	c.drainMu.Lock()
	defer c.drainMu.Unlock()
	var h func(Message)
	if p := c.serialHandler.Load(); p != nil {
		h = *p
	}
	n := 0
	for {
		m, ok := c.audioToSerial.Pop()
		if !ok {
			return n
		}
		n++
		if m.Tag == DispatchToPointer {
			if m.Callback != nil {
				m.Callback()
			}
			continue
		}
		if h != nil {
			h(m)
		}
	}
}

// RunOnAudioUnderStructureLock runs fn on the audio thread with the structure
// mutex held and waits for its result. The callback and its completion
// notice are two separate messages, so the caller never observes the tree
// before fn has finished. When no audio thread is running, fn runs on the
// caller under the mutex.
func (c *Controller) RunOnAudioUnderStructureLock(ctx context.Context, fn func() error) error {
	if !c.audioRunning.Load() {
		return c.runLocked(fn)
	}

	var result error
	done := make(chan error, 1)
	notify := func() { done <- result }
	msg := Message{
		Tag: DispatchToPointerUnderStructureLock,
		Callback: func() {
			result = fn()
			if !c.PostToSerial(Message{Tag: DispatchToPointer, Callback: notify}) {
				// Never lose a completion; the buffered channel cannot block.
				select {
				case done <- result:
				default:
				}
			}
		},
	}
	if err := c.Send(ctx, msg); err != nil {
		return err
	}
	for {
		c.DrainSerial()
		select {
		case err := <-done:
			return err
		default:
		}
		if err := c.sleep(ctx); err != nil {
			return err
		}
	}
}

// RunOnAudio runs fn on the audio thread without the structure mutex and
// waits for it to finish.
func (c *Controller) RunOnAudio(ctx context.Context, fn func()) error {
	if !c.audioRunning.Load() {
		fn()
		return nil
	}
	done := make(chan struct{}, 1)
	notify := func() { done <- struct{}{} }
	msg := Message{
		Tag: DispatchToPointer,
		Callback: func() {
			fn()
			if !c.PostToSerial(Message{Tag: DispatchToPointer, Callback: notify}) {
				notify()
			}
		},
	}
	if err := c.Send(ctx, msg); err != nil {
		return err
	}
	for {
		c.DrainSerial()
		select {
		case <-done:
			return nil
		default:
		}
		if err := c.sleep(ctx); err != nil {
			return err
		}
	}
}

// StopAudioThreadThenRunOnSerial pauses the audio thread at its next block
// boundary, runs fn on the caller with the structure mutex held, then lets
// audio resume. Messages queued before the call are processed before the
// pause takes effect.
func (c *Controller) StopAudioThreadThenRunOnSerial(ctx context.Context, fn func() error) error {
	c.pauseMu.Lock()
	defer c.pauseMu.Unlock()

	if !c.audioRunning.Load() {
		return c.runLocked(fn)
	}

	c.pauseRequested.Store(true)
	for Mode(c.mode.Load()) != PausedForStructuralEdit {
		c.DrainSerial()
		if err := c.sleep(ctx); err != nil {
			c.pauseRequested.Store(false)
			c.log.Warn("audio thread did not pause", "err", err)
			return ErrAudioNotResponding
		}
		if !c.audioRunning.Load() {
			break
		}
	}

	err := c.runLocked(fn)
	c.pauseRequested.Store(false)
	if c.audioRunning.Load() {
		c.mode.Store(int32(Resuming))
	}
	return err
}

func (c *Controller) runLocked(fn func() error) error {
	c.modifyStructureMutex.Lock()
	c.owner.Store(int32(OwnerSerial))
	defer func() {
		c.owner.Store(int32(OwnerNone))
		c.modifyStructureMutex.Unlock()
	}()
	return fn()
}

func (c *Controller) sleep(ctx context.Context) error {
	t := time.NewTimer(c.pollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
