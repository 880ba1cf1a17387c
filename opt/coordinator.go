package opt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sontungtran/dopt/opt/diag"
	"github.com/sontungtran/dopt/opt/metrics"
	"github.com/sontungtran/dopt/opt/trace"
)

// LoopState is the coordinator's position in its receive/process cycle.
type LoopState int32

const (
	// StateReady waits for the next batch.
	StateReady LoopState = iota
	// StateProcessing applies one batch.
	StateProcessing
	// StateStopped is terminal.
	StateStopped
)

func (s LoopState) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateProcessing:
		return "processing"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// CoordinatorConfig wires a Coordinator. Store, Generator and Channel are required.
type CoordinatorConfig struct {
	Bounds      BoundSpec
	Store       *ObservationStore
	Generator   CandidateGenerator
	Channel     Channel
	Stop        StoppingPredicate // nil means MaxObservations(DefaultMaxObservations)
	Sink        *diag.Sink        // nil means the logrus standard logger
	Metrics     *metrics.Metrics  // optional
	Trace       *trace.RunTrace   // optional
	Objective   ObjectiveSpec     // used to annotate trace records
	RecvTimeout time.Duration     // 0 waits indefinitely
}

// Coordinator drives the receive → classify → apply → propose → reply loop.
// It owns the store, the pending set and the channel; nothing else may touch
// them while Run is executing, so no locking is done on that state.
type Coordinator struct {
	bounds      BoundSpec
	store       *ObservationStore
	pending     *PendingSet
	generator   CandidateGenerator
	channel     Channel
	stop        StoppingPredicate
	sink        *diag.Sink
	metrics     *metrics.Metrics
	trace       *trace.RunTrace
	objective   ObjectiveSpec
	recvTimeout time.Duration

	state   atomic.Int32
	bound   atomic.Bool
	batches int
}

// NewCoordinator validates cfg and returns a Coordinator in StateReady.
func NewCoordinator(cfg CoordinatorConfig) (*Coordinator, error) {
	if cfg.Store == nil {
		return nil, errors.New("coordinator requires an observation store")
	}
	if cfg.Generator == nil {
		return nil, errors.New("coordinator requires a candidate generator")
	}
	if cfg.Channel == nil {
		return nil, errors.New("coordinator requires a channel")
	}
	if cfg.RecvTimeout < 0 {
		return nil, fmt.Errorf("receive timeout must be non-negative, got %s", cfg.RecvTimeout)
	}
	stop := cfg.Stop
	if stop == nil {
		stop = MaxObservations(DefaultMaxObservations)
	}
	sink := cfg.Sink
	if sink == nil {
		sink = diag.NewSink(nil)
	}
	return &Coordinator{
		bounds:      cfg.Bounds,
		store:       cfg.Store,
		pending:     NewPendingSet(),
		generator:   cfg.Generator,
		channel:     cfg.Channel,
		stop:        stop,
		sink:        sink,
		metrics:     cfg.Metrics,
		trace:       cfg.Trace,
		objective:   cfg.Objective,
		recvTimeout: cfg.RecvTimeout,
	}, nil
}

// Labels returns the parameter names of the search space in canonical order.
func (c *Coordinator) Labels() []string {
	return c.bounds.Keys()
}

// State returns the current loop state. Safe to call from any goroutine.
func (c *Coordinator) State() LoopState {
	return LoopState(c.state.Load())
}

// Store returns the observation store. Not safe to use while Run is executing.
func (c *Coordinator) Store() *ObservationStore {
	return c.store
}

// Pending returns the pending set. Not safe to use while Run is executing.
func (c *Coordinator) Pending() *PendingSet {
	return c.pending
}

// Run executes the loop until the stopping predicate is satisfied (nil), the
// remote side closes the channel (nil), or an error aborts it. A coordinator
// binds to its channel once; a second call fails with ErrAlreadyRunning.
// When a batch fails, none of its replies are sent.
func (c *Coordinator) Run(ctx context.Context) error {
	if !c.bound.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer c.state.Store(int32(StateStopped))

	c.metrics.SetSizes(c.store.Len(), c.pending.Len())
	for c.stop.Running(c.store) {
		c.state.Store(int32(StateReady))
		batch, err := c.receive(ctx)
		if errors.Is(err, io.EOF) {
			c.sink.Debugf("Channel closed by remote side, stopping coordinator")
			return nil
		}
		if err != nil {
			c.metrics.RecordError("receive")
			return fmt.Errorf("receiving batch: %w", err)
		}

		c.state.Store(int32(StateProcessing))
		c.batches++
		start := time.Now()
		out, err := c.process(ctx, batch)
		if err != nil {
			c.metrics.RecordError(errorReason(err))
			return err
		}
		if len(out) > 0 {
			if err := c.channel.Send(ctx, string(out)); err != nil {
				c.metrics.RecordError("send")
				return fmt.Errorf("sending replies: %w", err)
			}
			c.sink.Debugf("Coordinator sent: %q", out)
		}
		c.metrics.RecordBatch(time.Since(start).Seconds())
		c.metrics.SetSizes(c.store.Len(), c.pending.Len())
		c.logCounts()
	}
	c.sink.Infof("Stopping predicate satisfied with %d observations", c.store.Len())
	return nil
}

func (c *Coordinator) receive(ctx context.Context) (string, error) {
	if c.recvTimeout <= 0 {
		return c.channel.Recv(ctx)
	}
	rctx, cancel := context.WithTimeout(ctx, c.recvTimeout)
	defer cancel()
	batch, err := c.channel.Recv(rctx)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return "", fmt.Errorf("%w after %s", ErrReceiveTimeout, c.recvTimeout)
	}
	return batch, err
}

// process applies every line of one batch and returns the encoded replies,
// one per line, in line order.
func (c *Coordinator) process(ctx context.Context, blob string) ([]byte, error) {
	c.sink.Debugf("Coordinator received: %q", blob)

	var out []byte
	for i, line := range SplitBatch(blob) {
		msg, err := ClassifyLine(line)
		if err != nil {
			return nil, &MessageError{Line: i + 1, Text: line, Err: err}
		}
		c.metrics.RecordMessage(msg.Kind.String())
		if err := c.apply(ctx, msg); err != nil {
			return nil, &MessageError{Line: i + 1, Text: line, Err: err}
		}

		cand, err := c.dispatch()
		if err != nil {
			return nil, err
		}
		reply, err := EncodeReply(cand)
		if err != nil {
			return nil, fmt.Errorf("encoding reply for candidate %d: %w", cand.ID(), err)
		}
		out = append(out, reply...)
	}
	return out, nil
}

func (c *Coordinator) apply(ctx context.Context, msg Message) error {
	switch msg.Kind {
	case KindAck:
		return nil

	case KindRemove:
		if err := c.pending.Remove(msg.Candidate); err != nil {
			return err
		}
		c.sink.Debugf("Removed candidate: %s", msg.Candidate)
		c.trace.RecordResolution(trace.ResolutionRecord{
			CandidateID: msg.Candidate.ID(),
			Batch:       c.batches,
			Outcome:     trace.OutcomeRemoved,
		})
		return nil

	case KindObservation:
		obs := msg.Observation
		// Checked before the append so a desynchronized resend never reaches the ledger.
		if !c.pending.Contains(obs.Candidate) {
			return fmt.Errorf("%w: %s", ErrCandidateNotPending, obs.Candidate)
		}
		record := trace.ResolutionRecord{CandidateID: obs.Candidate.ID(), Batch: c.batches}
		if obs.ContentionFailure {
			c.metrics.RecordContentionFailure()
			record.Outcome = trace.OutcomeContention
		} else {
			if err := c.store.Append(ctx, obs); err != nil {
				return err
			}
			record.Outcome = trace.OutcomeObserved
			if v, ok := c.objective.Value(obs.Result); ok {
				record.Objective = &v
			}
		}
		if err := c.pending.Remove(obs.Candidate); err != nil {
			return err
		}
		c.trace.RecordResolution(record)
		return nil

	default:
		return fmt.Errorf("%w: unhandled message kind %s", ErrMalformedMessage, msg.Kind)
	}
}

// dispatch asks the generator for one candidate, assigns the smallest free id
// and records it as pending. Allocation and insertion happen on the same turn.
func (c *Coordinator) dispatch() (Candidate, error) {
	params, err := c.generator.Propose(c.store.Observations(), c.bounds)
	if err != nil {
		return Candidate{}, fmt.Errorf("generating candidate: %w", err)
	}
	if err := c.bounds.Validate(params); err != nil {
		return Candidate{}, fmt.Errorf("generated candidate: %w", err)
	}
	cand := NewCandidate(NextID(c.store, c.pending), params)
	c.pending.Add(cand)

	c.metrics.RecordDispatch()
	c.trace.RecordDispatch(trace.DispatchRecord{
		CandidateID: cand.ID(),
		Batch:       c.batches,
		Params:      cand.Params(),
		Pending:     c.pending.Len(),
	})
	return cand, nil
}

func (c *Coordinator) logCounts() {
	if !c.sink.Enabled(logrus.DebugLevel) {
		return
	}
	pending, err := json.Marshal(c.pending.Candidates())
	if err != nil {
		pending = []byte(err.Error())
	}
	c.sink.Atomically(func(log *logrus.Entry) {
		log.Debugf("Number of observations: %d", c.store.Len())
		log.Debugf("Number of pending candidates: %d", c.pending.Len())
		log.Debugf("Pending candidates: %s", pending)
	})
}

func errorReason(err error) string {
	switch {
	case errors.Is(err, ErrMalformedMessage):
		return "malformed_message"
	case errors.Is(err, ErrCandidateNotPending):
		return "candidate_not_pending"
	case errors.Is(err, ErrUnknownParameter):
		return "unknown_parameter"
	default:
		return "internal"
	}
}
