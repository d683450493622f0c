package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/rs/xid"
)

var (
	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("executor: coordinator closed")
	// ErrPreempted is returned by Handle.Wait when a newer submission
	// stopped this one and its result was discarded.
	ErrPreempted = errors.New("executor: execution preempted by a newer submission")
)

// State is the lifecycle position of one submission.
type State int

const (
	StateStarting State = iota
	StateRunning
	StateSucceeded
	StateFailed
	StatePreempted
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StatePreempted:
		return "preempted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Listener receives one ExecutionResult per published submission.
// Listeners run on the execution goroutine and must not call Submit
// synchronously: Submit waits for that goroutine to finish.
type Listener func(ExecutionResult)

// Coordinator is the public entry point of the execution subsystem.
//
// EXECUTION SLOT:
// At most one submission runs at any time. Submit first cancels the
// in-flight submission's token and waits for its goroutine to exit (join
// semantics), then starts the new one. There is no queue: a preempted
// submission's result is discarded and never reaches listeners.
//
// Cancellation is cooperative. The running code is not interrupted; Submit
// blocks until it finishes naturally.
type Coordinator struct {
	exec   Executor
	logger *slog.Logger
	newID  func() string

	// submitMu serializes Submit and Close so stop-then-start is atomic.
	submitMu sync.Mutex

	mu           sync.Mutex
	current      *Handle
	closed       bool
	listeners    map[int]Listener
	nextListener int
}

// NewCoordinator creates a Coordinator that runs submissions through exec.
func NewCoordinator(exec Executor, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		exec:      exec,
		logger:    logger,
		newID:     func() string { return xid.New().String() },
		listeners: make(map[int]Listener),
	}
}

// Subscribe registers fn for every published result. The returned func
// removes the subscription.
func (c *Coordinator) Subscribe(fn Listener) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

// Submit starts executing code on a fresh goroutine and returns its handle.
// Any in-flight submission is stopped, and waited for, first.
func (c *Coordinator) Submit(code string) (*Handle, error) {
	c.submitMu.Lock()
	defer c.submitMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	prev := c.current
	c.mu.Unlock()

	if prev != nil {
		c.stop(prev)
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		id:     c.newID(),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		state:  StateStarting,
	}

	c.mu.Lock()
	c.current = h
	c.mu.Unlock()

	c.logger.Debug("starting execution", slog.String("run_id", h.id))
	go c.run(h, code)

	return h, nil
}

// Close stops the in-flight submission, waits for it, and rejects any
// further Submit calls.
func (c *Coordinator) Close() error {
	c.submitMu.Lock()
	defer c.submitMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	prev := c.current
	c.mu.Unlock()

	if prev != nil {
		c.stop(prev)
	}
	return nil
}

// stop cancels h's token and blocks until its goroutine has exited.
func (c *Coordinator) stop(h *Handle) {
	select {
	case <-h.done:
		return
	default:
	}

	c.logger.Debug("stopping in-flight execution", slog.String("run_id", h.id))
	h.cancel()
	<-h.done
}

func (c *Coordinator) run(h *Handle, code string) {
	defer close(h.done)
	defer h.cancel()

	h.setState(StateRunning)

	res, err := c.execute(h, code)
	if err != nil {
		res = &ExecutionResult{
			RunID:  h.id,
			Output: fmt.Sprintf("Error: %v\n", err),
		}
	}

	c.publish(h, *res)
}

// execute shields the slot from Executor implementations that panic.
func (c *Coordinator) execute(h *Handle, code string) (res *ExecutionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("executor panicked: %v", r)
		}
	}()

	res, err = c.exec.Execute(h.ctx, ExecutionRequest{ID: h.id, Code: code})
	if err == nil && res == nil {
		err = errors.New("executor returned no result")
	}
	return res, err
}

// publish forwards res to listeners unless h was preempted.
//
// The token check and the listener snapshot happen under c.mu. A concurrent
// Submit either cancels h before the check (result discarded) or waits on
// h.done until delivery is complete, so deliveries never interleave.
func (c *Coordinator) publish(h *Handle, res ExecutionResult) {
	c.mu.Lock()
	if h.ctx.Err() != nil || c.current != h {
		c.mu.Unlock()
		h.finish(res, StatePreempted)
		c.logger.Debug("discarding preempted result", slog.String("run_id", h.id))
		return
	}

	ids := make([]int, 0, len(c.listeners))
	for id := range c.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	listeners := make([]Listener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, c.listeners[id])
	}
	c.mu.Unlock()

	state := StateFailed
	if res.Success {
		state = StateSucceeded
	}
	h.finish(res, state)

	c.logger.Debug("execution completed",
		slog.String("run_id", h.id),
		slog.Bool("success", res.Success),
		slog.Int("artifact_path_len", len(res.ArtifactPath)),
	)

	for _, fn := range listeners {
		c.notify(fn, res)
	}
}

func (c *Coordinator) notify(fn Listener, res ExecutionResult) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("result listener panicked",
				slog.String("run_id", res.RunID),
				slog.Any("panic", r),
			)
		}
	}()
	fn(res)
}

// Handle tracks one accepted submission.
type Handle struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	state  State
	result ExecutionResult
}

// ID returns the run ID assigned at submission.
func (h *Handle) ID() string { return h.id }

// Done is closed once the submission has fully finished, including
// delivery to listeners.
func (h *Handle) Done() <-chan struct{} { return h.done }

// State returns the current lifecycle state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Result returns the published result. ok is false while the submission is
// still running and when it was preempted.
func (h *Handle) Result() (res ExecutionResult, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch h.state {
	case StateSucceeded, StateFailed:
		return h.result, true
	default:
		return ExecutionResult{}, false
	}
}

// Wait blocks until the submission finishes or ctx is done.
func (h *Handle) Wait(ctx context.Context) (ExecutionResult, error) {
	select {
	case <-h.done:
	case <-ctx.Done():
		return ExecutionResult{}, ctx.Err()
	}

	if res, ok := h.Result(); ok {
		return res, nil
	}
	return ExecutionResult{}, ErrPreempted
}

func (h *Handle) setState(s State) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

func (h *Handle) finish(res ExecutionResult, s State) {
	h.mu.Lock()
	h.result = res
	h.state = s
	h.mu.Unlock()
}
