// Package service contains mapchat's business logic.
//
// THE LAYERS:
//
//	Handler / MCP tool / CLI  → parse input, render output
//	Service                   → validate, enforce rules, orchestrate
//	Repository / Coordinator  → persist runs, execute code
//
// Services accept primitives and return domain errors from apperror, so the
// same logic serves every surface.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sakif/mapchat/internal/apperror"
	"github.com/sakif/mapchat/internal/executor"
	"github.com/sakif/mapchat/internal/model"
	"github.com/sakif/mapchat/internal/repository"
)

// Validation and paging limits.
const (
	DefaultMaxCodeLength = 64 * 1024
	DefaultListLimit     = 20
	MaxListLimit         = 100

	// persistTimeout bounds the write that records a finished run.
	persistTimeout = 5 * time.Second
)

// Submitter starts executions. *executor.Coordinator implements it.
type Submitter interface {
	Submit(code string) (*executor.Handle, error)
}

// RunService submits code for execution and keeps the run history.
//
// RUN LIFECYCLE:
//
//	Submit → coordinator.Submit → repo.Create(status=running)
//	       → tracker goroutine waits on handle.Done()
//	       → repo.Finish(status=succeeded|failed|preempted)
//
// Preempted runs never reach coordinator listeners, so the tracker follows
// the handle rather than subscribing.
type RunService struct {
	exec          Submitter
	repo          repository.RunRepository
	logger        *slog.Logger
	maxCodeLength int

	mu   sync.Mutex
	live map[string]*trackedRun
	wg   sync.WaitGroup
}

type trackedRun struct {
	handle    *executor.Handle
	persisted chan struct{}
}

// NewRunService creates a RunService. maxCodeLength <= 0 selects the default.
func NewRunService(exec Submitter, repo repository.RunRepository, logger *slog.Logger, maxCodeLength int) *RunService {
	if maxCodeLength <= 0 {
		maxCodeLength = DefaultMaxCodeLength
	}
	return &RunService{
		exec:          exec,
		repo:          repo,
		logger:        logger,
		maxCodeLength: maxCodeLength,
		live:          make(map[string]*trackedRun),
	}
}

// Submit validates code, starts executing it and records the run. Any run
// still in progress is preempted first, and Submit blocks until that run
// has finished.
func (s *RunService) Submit(ctx context.Context, code string, source model.RunSource) (*model.Run, error) {
	return s.submit(ctx, code, source, "")
}

// Rerun submits the code of an earlier run again.
func (s *RunService) Rerun(ctx context.Context, id string) (*model.Run, error) {
	prev, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/run: loading run %s: %w", id, err)
	}
	return s.submit(ctx, prev.Code, model.SourceRerun, prev.ID)
}

func (s *RunService) submit(ctx context.Context, code string, source model.RunSource, parentID string) (*model.Run, error) {
	if strings.TrimSpace(code) == "" {
		return nil, apperror.ValidationFailed("code", "code is required")
	}
	if len(code) > s.maxCodeLength {
		return nil, apperror.ValidationFailed("code",
			fmt.Sprintf("code must be %d bytes or fewer", s.maxCodeLength))
	}

	h, err := s.exec.Submit(code)
	if err != nil {
		if errors.Is(err, executor.ErrClosed) {
			return nil, apperror.Unavailable("execution is shutting down", err)
		}
		return nil, fmt.Errorf("service/run: submitting: %w", err)
	}

	run := &model.Run{
		ID:       h.ID(),
		Code:     code,
		Source:   source,
		ParentID: parentID,
		Status:   model.RunRunning,
	}
	if err := s.repo.Create(ctx, run); err != nil {
		// The code is already executing; it just won't be in the history.
		s.logger.Error("failed to record run",
			slog.String("run_id", run.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/run: recording run %s: %w", run.ID, err)
	}

	s.logger.Info("run submitted",
		slog.String("run_id", run.ID),
		slog.String("source", string(source)),
		slog.Int("code_bytes", len(code)),
	)
	s.track(h, run)
	return run, nil
}

// track persists the terminal state of run once its handle is done.
func (s *RunService) track(h *executor.Handle, run *model.Run) {
	t := &trackedRun{handle: h, persisted: make(chan struct{})}

	s.mu.Lock()
	s.live[run.ID] = t
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.live, run.ID)
			s.mu.Unlock()
			close(t.persisted)
		}()

		<-h.Done()
		finished := finishedRun(run, h)

		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := s.repo.Finish(ctx, finished); err != nil {
			s.logger.Error("failed to record run result",
				slog.String("run_id", run.ID),
				slog.String("error", err.Error()),
			)
			return
		}
		s.logger.Info("run finished",
			slog.String("run_id", run.ID),
			slog.String("status", string(finished.Status)),
		)
	}()
}

// finishedRun maps a finished handle onto the persisted run.
func finishedRun(run *model.Run, h *executor.Handle) *model.Run {
	out := *run
	res, ok := h.Result()
	switch {
	case !ok:
		out.Status = model.RunPreempted
	case res.Success:
		out.Status = model.RunSucceeded
	default:
		out.Status = model.RunFailed
	}
	if ok {
		out.Output = res.Output
		out.ArtifactPath = res.ArtifactPath
		out.DurationMS = res.Duration.Milliseconds()
	}
	return &out
}

// Wait blocks until the run has finished and been recorded, then returns it.
// Runs that are not in progress are returned as stored.
func (s *RunService) Wait(ctx context.Context, id string) (*model.Run, error) {
	s.mu.Lock()
	t, ok := s.live[id]
	s.mu.Unlock()

	if ok {
		select {
		case <-t.persisted:
		case <-ctx.Done():
			return nil, fmt.Errorf("service/run: waiting for run %s: %w", id, ctx.Err())
		}
	}
	return s.Get(ctx, id)
}

// Get returns a run by ID.
func (s *RunService) Get(ctx context.Context, id string) (*model.Run, error) {
	if id == "" {
		return nil, apperror.ValidationFailed("id", "run ID is required")
	}
	run, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/run: getting run %s: %w", id, err)
	}
	return run, nil
}

// List returns runs newest first.
func (s *RunService) List(ctx context.Context, limit, offset int, status model.RunStatus) ([]model.Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	switch status {
	case "", model.RunRunning, model.RunSucceeded, model.RunFailed, model.RunPreempted:
	default:
		return nil, apperror.ValidationFailed("status", fmt.Sprintf("unknown run status %q", status))
	}

	runs, err := s.repo.List(ctx, repository.ListOptions{Limit: limit, Offset: offset, Status: status})
	if err != nil {
		return nil, fmt.Errorf("service/run: listing runs: %w", err)
	}
	return runs, nil
}

// Delete removes a finished run from the history. Runs still in progress
// cannot be deleted.
func (s *RunService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	_, running := s.live[id]
	s.mu.Unlock()
	if running {
		return apperror.Conflict("run", id, "still running")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("service/run: deleting run %s: %w", id, err)
	}
	s.logger.Info("run deleted", slog.String("run_id", id))
	return nil
}

// RecoverInterrupted marks runs left "running" by a previous process as
// failed. Call it once at startup, before any Submit.
func (s *RunService) RecoverInterrupted(ctx context.Context) (int, error) {
	var recovered int
	for {
		runs, err := s.repo.List(ctx, repository.ListOptions{Limit: MaxListLimit, Status: model.RunRunning})
		if err != nil {
			return recovered, fmt.Errorf("service/run: listing interrupted runs: %w", err)
		}
		if len(runs) == 0 {
			break
		}
		for i := range runs {
			run := &runs[i]
			run.Status = model.RunFailed
			run.Output += "Error: interrupted by process exit\n"
			if err := s.repo.Finish(ctx, run); err != nil {
				return recovered, fmt.Errorf("service/run: recovering run %s: %w", run.ID, err)
			}
			recovered++
		}
	}
	if recovered > 0 {
		s.logger.Warn("marked interrupted runs as failed", slog.Int("count", recovered))
	}
	return recovered, nil
}

// Close waits for every tracker to record its run. Close the coordinator
// first so in-flight handles finish.
func (s *RunService) Close() {
	s.wg.Wait()
}
