package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"callprep-platform/pkg/utils"
)

const (
	// TypeProcessCall is the task type for running the full call pipeline.
	TypeProcessCall = "calls:process"

	// QueueCalls is the queue all pipeline tasks land on.
	QueueCalls = "calls"

	// activeCallsKey is the fleet-wide counter capping concurrent pipelines.
	activeCallsKey = "callprep:active_calls"
)

type ProcessCallPayload struct {
	CallID string `json:"call_id"`
}

// Submitter enqueues processing work. The HTTP layer depends on this
// interface so handler tests do not need a redis-backed queue.
type Submitter interface {
	Submit(ctx context.Context, callID string) error
}

// Options tunes task scheduling and the worker-side concurrency cap.
type Options struct {
	// HardTimeout is enforced by the queue; the task is terminated past it.
	HardTimeout time.Duration
	// SoftTimeout cancels the pipeline context early so the failed status
	// can be written before the hard kill. Must be below HardTimeout.
	SoftTimeout time.Duration
	MaxRetry    int
	// MaxActiveCalls caps pipelines running at once across all workers.
	// Zero disables the cap.
	MaxActiveCalls int
}

func (o Options) withDefaults() Options {
	out := o
	if out.HardTimeout <= 0 {
		out.HardTimeout = 60 * time.Minute
	}
	if out.SoftTimeout <= 0 || out.SoftTimeout >= out.HardTimeout {
		out.SoftTimeout = out.HardTimeout - 5*time.Minute
	}
	// asynq archives a task once retried >= MaxRetry, so zero retries would
	// turn the first crash or capacity deferral into a permanent archive.
	// A positive count is required for at-least-once delivery.
	if out.MaxRetry <= 0 {
		out.MaxRetry = 25
	}
	return out
}

// Runner is the producer side: it hands call IDs to the queue.
type Runner struct {
	client *asynq.Client
	opts   Options
	log    *slog.Logger
}

func NewRunner(client *asynq.Client, opts Options, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{client: client, opts: opts.withDefaults(), log: log}
}

func (r *Runner) Submit(ctx context.Context, callID string) error {
	if callID == "" {
		return errors.New("call id is required")
	}
	payload, err := json.Marshal(ProcessCallPayload{CallID: callID})
	if err != nil {
		return err
	}
	task := asynq.NewTask(TypeProcessCall, payload)
	info, err := r.client.EnqueueContext(ctx, task, r.taskOptions()...)
	if err != nil {
		return fmt.Errorf("enqueue call %s: %w", callID, err)
	}
	r.log.Info("call queued for processing", "call_id", callID, "task_id", info.ID)
	return nil
}

func (r *Runner) taskOptions() []asynq.Option {
	return []asynq.Option{
		asynq.Queue(QueueCalls),
		asynq.Timeout(r.opts.HardTimeout),
		asynq.MaxRetry(r.opts.MaxRetry),
	}
}

// Processor runs the pipeline for one call. Satisfied by pipeline.Pipeline.
type Processor interface {
	Process(ctx context.Context, callID string) error
}

// ErrCapacity signals the fleet-wide cap is full. The task stays on the
// queue and is retried by the scheduler.
var ErrCapacity = errors.New("processing capacity reached, retry later")

// Handler is the consumer side: it decodes tasks and drives the Processor
// under the soft deadline and the fleet-wide cap.
type Handler struct {
	proc Processor
	rdb  *redis.Client
	opts Options
	log  *slog.Logger
}

// NewHandler builds a task handler. rdb may be nil, which disables the
// fleet-wide concurrency cap.
func NewHandler(proc Processor, rdb *redis.Client, opts Options, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{proc: proc, rdb: rdb, opts: opts.withDefaults(), log: log}
}

func (h *Handler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeProcessCall, h.HandleProcessCall)
}

func (h *Handler) HandleProcessCall(ctx context.Context, t *asynq.Task) error {
	var p ProcessCallPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("undecodable payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.CallID == "" {
		return fmt.Errorf("payload missing call_id: %w", asynq.SkipRetry)
	}

	if h.capEnabled() {
		ok, err := utils.AcquireConcurrencyCap(ctx, h.rdb, activeCallsKey, h.opts.MaxActiveCalls, h.opts.HardTimeout)
		if err != nil {
			return fmt.Errorf("acquire capacity slot: %w", err)
		}
		if !ok {
			h.log.Info("deferring call, capacity full", "call_id", p.CallID)
			return ErrCapacity
		}
		defer func() {
			// Release must run even when the job context is already dead.
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			if err := utils.ReleaseConcurrencyCap(rctx, h.rdb, activeCallsKey); err != nil {
				h.log.Error("releasing capacity slot failed", "err", err)
			}
		}()
	}

	sctx, cancel := context.WithTimeout(ctx, h.opts.SoftTimeout)
	defer cancel()
	return h.proc.Process(sctx, p.CallID)
}

func (h *Handler) capEnabled() bool {
	return h.rdb != nil && h.opts.MaxActiveCalls > 0
}
