package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
)

type recordingProcessor struct {
	callID   string
	deadline time.Time
	hadDL    bool
	err      error
}

func (p *recordingProcessor) Process(ctx context.Context, callID string) error {
	p.callID = callID
	p.deadline, p.hadDL = ctx.Deadline()
	return p.err
}

func processTask(t *testing.T, callID string) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(ProcessCallPayload{CallID: callID})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return asynq.NewTask(TypeProcessCall, payload)
}

func TestHandleProcessCall_RunsProcessorUnderSoftDeadline(t *testing.T) {
	proc := &recordingProcessor{}
	h := NewHandler(proc, nil, Options{HardTimeout: time.Hour, SoftTimeout: 55 * time.Minute}, nil)

	if err := h.HandleProcessCall(context.Background(), processTask(t, "c1")); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if proc.callID != "c1" {
		t.Fatalf("expected processor to run for c1, got %q", proc.callID)
	}
	if !proc.hadDL {
		t.Fatalf("expected a soft deadline on the pipeline context")
	}
	remaining := time.Until(proc.deadline)
	if remaining > 55*time.Minute || remaining < 54*time.Minute {
		t.Fatalf("deadline not near the soft timeout: %v remaining", remaining)
	}
}

func TestHandleProcessCall_ProcessorErrorPropagates(t *testing.T) {
	want := errors.New("pipeline blew up")
	h := NewHandler(&recordingProcessor{err: want}, nil, Options{}, nil)

	err := h.HandleProcessCall(context.Background(), processTask(t, "c1"))
	if !errors.Is(err, want) {
		t.Fatalf("expected processor error to surface for retry, got %v", err)
	}
}

func TestHandleProcessCall_BadPayloadSkipsRetry(t *testing.T) {
	proc := &recordingProcessor{}
	h := NewHandler(proc, nil, Options{}, nil)

	err := h.HandleProcessCall(context.Background(), asynq.NewTask(TypeProcessCall, []byte("{not json")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry for undecodable payload, got %v", err)
	}
	if proc.callID != "" {
		t.Fatalf("processor must not run on bad payload")
	}
}

func TestHandleProcessCall_EmptyCallIDSkipsRetry(t *testing.T) {
	h := NewHandler(&recordingProcessor{}, nil, Options{}, nil)

	err := h.HandleProcessCall(context.Background(), processTask(t, ""))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry for missing call_id, got %v", err)
	}
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	if o.HardTimeout != 60*time.Minute {
		t.Fatalf("hard timeout default: %v", o.HardTimeout)
	}
	if o.SoftTimeout != 55*time.Minute {
		t.Fatalf("soft timeout default: %v", o.SoftTimeout)
	}
	// Zero retries would archive a task on its first failure; the default
	// must keep redelivery alive.
	if o.MaxRetry <= 0 {
		t.Fatalf("max retry default must be positive, got %d", o.MaxRetry)
	}
	if o = (Options{MaxRetry: 3}).withDefaults(); o.MaxRetry != 3 {
		t.Fatalf("explicit max retry must be kept, got %d", o.MaxRetry)
	}

	// A soft timeout at or above the hard one is pulled back under it.
	o = Options{HardTimeout: 10 * time.Minute, SoftTimeout: 10 * time.Minute}.withDefaults()
	if o.SoftTimeout >= o.HardTimeout {
		t.Fatalf("soft timeout must stay below hard: %v >= %v", o.SoftTimeout, o.HardTimeout)
	}
}

func TestTaskOptionsCarryRetries(t *testing.T) {
	r := NewRunner(nil, Options{}, nil)

	var sawRetry, sawQueue bool
	for _, opt := range r.taskOptions() {
		switch opt.Type() {
		case asynq.MaxRetryOpt:
			n, ok := opt.Value().(int)
			if !ok || n <= 0 {
				t.Fatalf("enqueue must carry a positive retry count, got %v", opt.Value())
			}
			sawRetry = true
		case asynq.QueueOpt:
			if q, _ := opt.Value().(string); q != QueueCalls {
				t.Fatalf("expected queue %q, got %v", QueueCalls, opt.Value())
			}
			sawQueue = true
		}
	}
	if !sawRetry || !sawQueue {
		t.Fatalf("missing enqueue options: retry=%v queue=%v", sawRetry, sawQueue)
	}
}
