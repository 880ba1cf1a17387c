package opt

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sontungtran/dopt/opt/metrics"
	"github.com/sontungtran/dopt/opt/trace"
)

// scriptedGenerator returns queued proposals, then a fixed fallback.
type scriptedGenerator struct {
	proposals []Params
	calls     int
}

func (g *scriptedGenerator) Propose(_ []Observation, _ BoundSpec) (Params, error) {
	g.calls++
	if len(g.proposals) > 0 {
		p := g.proposals[0]
		g.proposals = g.proposals[1:]
		return p, nil
	}
	return Params{"x": 0.5, "y": 5}, nil
}

// uniformGenerator draws every bounded parameter uniformly.
type uniformGenerator struct {
	rng *rand.Rand
}

func (g *uniformGenerator) Propose(_ []Observation, bounds BoundSpec) (Params, error) {
	p := make(Params, bounds.Len())
	for _, b := range bounds.Bounds() {
		p[b.Name] = b.Min + g.rng.Float64()*b.Width()
	}
	return p, nil
}

// harness runs a coordinator in the background and plays the remote side.
type harness struct {
	t      *testing.T
	coord  *Coordinator
	remote *PipeEnd
	path   string
	done   chan error
}

func newHarness(t *testing.T, cfg CoordinatorConfig) *harness {
	t.Helper()
	path := filepath.Join(t.TempDir(), "observations.jsonl")
	log, err := OpenFileLog(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })
	return newHarnessWithLog(t, cfg, log, path)
}

func newHarnessWithLog(t *testing.T, cfg CoordinatorConfig, log LedgerLog, path string) *harness {
	t.Helper()
	store, err := LoadObservationStore(context.Background(), log)
	require.NoError(t, err)

	local, remote := NewPipe()
	if cfg.Bounds.Len() == 0 {
		cfg.Bounds = testBounds(t)
	}
	if cfg.Generator == nil {
		cfg.Generator = &scriptedGenerator{}
	}
	cfg.Store = store
	cfg.Channel = local

	coord, err := NewCoordinator(cfg)
	require.NoError(t, err)

	h := &harness{t: t, coord: coord, remote: remote, path: path, done: make(chan error, 1)}
	go func() { h.done <- coord.Run(context.Background()) }()
	t.Cleanup(func() { _ = remote.Close() })
	return h
}

// send delivers one batch to the coordinator.
func (h *harness) send(batch string) {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(h.t, h.remote.Send(ctx, batch))
}

// exchange sends one batch and returns the decoded reply candidates.
func (h *harness) exchange(batch string) []Candidate {
	h.t.Helper()
	h.send(batch)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out, err := h.remote.Recv(ctx)
	require.NoError(h.t, err)
	var cands []Candidate
	for _, line := range SplitBatch(out) {
		c, err := DecodeReply(line)
		require.NoError(h.t, err)
		cands = append(cands, c)
	}
	require.True(h.t, strings.HasSuffix(out, "\n"), "reply batch must end with a newline")
	return cands
}

// wait returns Run's result.
func (h *harness) wait() error {
	h.t.Helper()
	select {
	case err := <-h.done:
		return err
	case <-time.After(5 * time.Second):
		h.t.Fatal("coordinator did not stop")
		return nil
	}
}

func (h *harness) ledger() string {
	h.t.Helper()
	data, err := os.ReadFile(h.path)
	require.NoError(h.t, err)
	return string(data)
}

func observationLine(c Candidate, result string, contention bool) string {
	line, err := EncodeObservation(Observation{Candidate: c, Result: []byte(result), ContentionFailure: contention})
	if err != nil {
		panic(err)
	}
	return string(line)
}

func TestCoordinator_ObservationIsRecordedAndReplied(t *testing.T) {
	// GIVEN bounds {x:[0,1], y:[0,10]} and candidate 1 = {x:0.2, y:3} pending
	gen := &scriptedGenerator{proposals: []Params{{"x": 0.2, "y": 3}}}
	h := newHarness(t, CoordinatorConfig{Generator: gen})
	first := h.exchange("{}\n")
	require.Len(t, first, 1)
	require.True(t, first[0].Equal(NewCandidate(1, Params{"x": 0.2, "y": 3})), "got %s", first[0])

	// WHEN the observation for candidate 1 arrives
	replies := h.exchange(`{"candidate":{"x":0.2,"y":3,"id":1},"result":0.9,"contention_failure":false}` + "\n")

	// THEN exactly one fresh candidate is replied with the next free id
	require.Len(t, replies, 1)
	assert.Equal(t, 2, replies[0].ID())

	require.NoError(t, h.remote.Close())
	require.NoError(t, h.wait())

	// AND the store gained that exact observation and pending lost id 1
	obs := h.coord.Store().Observations()
	require.Len(t, obs, 1)
	assert.True(t, obs[0].Candidate.Equal(NewCandidate(1, Params{"x": 0.2, "y": 3})))
	assert.Equal(t, "0.9", string(obs[0].Result))
	assert.False(t, h.coord.Pending().Contains(first[0]))
	assert.Equal(t, 1, h.coord.Pending().Len())
	assert.JSONEq(t, `{"candidate":{"x":0.2,"y":3,"id":1},"result":0.9,"contention_failure":false}`,
		strings.TrimSuffix(h.ledger(), "\n"))
}

func TestCoordinator_RemoveOfNonPendingCandidateAborts(t *testing.T) {
	// GIVEN a fresh coordinator with nothing pending
	h := newHarness(t, CoordinatorConfig{})

	// WHEN the remote side removes candidate 1
	h.send(`Remove: {"x":0.2,"y":3,"id":1}` + "\n")

	// THEN the loop aborts with ErrCandidateNotPending and the ledger is unchanged
	err := h.wait()
	require.ErrorIs(t, err, ErrCandidateNotPending)
	var msgErr *MessageError
	require.ErrorAs(t, err, &msgErr)
	assert.Equal(t, 1, msgErr.Line)
	assert.Empty(t, h.ledger())
	assert.Equal(t, StateStopped, h.coord.State())
}

func TestCoordinator_TwoAcksYieldTwoCandidates(t *testing.T) {
	gen := &scriptedGenerator{}
	h := newHarness(t, CoordinatorConfig{Generator: gen})

	// WHEN a batch of two acks arrives
	replies := h.exchange("{}\n{}\n")

	// THEN two new candidates are generated and replied in one batch
	require.Len(t, replies, 2)
	assert.Equal(t, 1, replies[0].ID())
	assert.Equal(t, 2, replies[1].ID())

	require.NoError(t, h.remote.Close())
	require.NoError(t, h.wait())
	assert.Equal(t, 2, gen.calls)
	assert.Equal(t, 2, h.coord.Pending().Len())
	assert.Empty(t, h.ledger(), "acks never touch the ledger")
}

func TestCoordinator_RemoveDropsPendingAndReplies(t *testing.T) {
	h := newHarness(t, CoordinatorConfig{})
	first := h.exchange("{}\n")

	// WHEN the remote side abandons the candidate
	line, err := EncodeRemove(first[0])
	require.NoError(t, err)
	replies := h.exchange(string(line))

	// THEN it leaves pending without an observation; its id is free again
	require.Len(t, replies, 1)
	assert.Equal(t, 1, replies[0].ID())
	require.NoError(t, h.remote.Close())
	require.NoError(t, h.wait())
	assert.Zero(t, h.coord.Store().Len())
	assert.Empty(t, h.ledger())
}

func TestCoordinator_ContentionFailureIsNotRecorded(t *testing.T) {
	h := newHarness(t, CoordinatorConfig{})
	first := h.exchange("{}\n")

	// WHEN the trainer reports a contention failure
	replies := h.exchange(observationLine(first[0], `{"loss":0.1}`, true))

	// THEN nothing is recorded, the candidate leaves pending and its id is reused
	require.Len(t, replies, 1)
	assert.Equal(t, 1, replies[0].ID())
	require.NoError(t, h.remote.Close())
	require.NoError(t, h.wait())
	assert.Zero(t, h.coord.Store().Len())
	assert.Empty(t, h.ledger())
	assert.Equal(t, 1, h.coord.Pending().Len())
}

func TestCoordinator_ObservationForWrongParamsAborts(t *testing.T) {
	h := newHarness(t, CoordinatorConfig{})
	first := h.exchange("{}\n")

	// WHEN an observation names the pending id with different parameters
	stale := NewCandidate(first[0].ID(), Params{"x": 0.99, "y": 1})
	h.send(observationLine(stale, `1`, false))

	// THEN the loop aborts before anything reaches the ledger
	require.ErrorIs(t, h.wait(), ErrCandidateNotPending)
	assert.Empty(t, h.ledger())
}

func TestCoordinator_DuplicateObservationAborts(t *testing.T) {
	h := newHarness(t, CoordinatorConfig{})
	first := h.exchange("{}\n")
	line := observationLine(first[0], `0.5`, false)
	h.exchange(line)

	// WHEN the same observation is resent
	h.send(line)

	// THEN it is treated as a desynchronization and the ledger keeps one entry
	require.ErrorIs(t, h.wait(), ErrCandidateNotPending)
	assert.Equal(t, 1, strings.Count(h.ledger(), "\n"))
}

func TestCoordinator_MalformedLineSendsNoPartialReplies(t *testing.T) {
	gen := &scriptedGenerator{}
	h := newHarness(t, CoordinatorConfig{Generator: gen})

	// WHEN the second line of a batch is malformed
	h.send("{}\nnot a message\n{}\n")

	// THEN the loop aborts naming line 2 and nothing is sent back
	err := h.wait()
	require.ErrorIs(t, err, ErrMalformedMessage)
	var msgErr *MessageError
	require.ErrorAs(t, err, &msgErr)
	assert.Equal(t, 2, msgErr.Line)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, recvErr := h.remote.Recv(ctx)
	assert.ErrorIs(t, recvErr, context.DeadlineExceeded, "no reply batch may follow a failed batch")
}

func TestCoordinator_UnknownParameterFromGeneratorAborts(t *testing.T) {
	gen := &scriptedGenerator{proposals: []Params{{"x": 0.5, "z": 1}}}
	h := newHarness(t, CoordinatorConfig{Generator: gen})

	h.send("{}\n")

	err := h.wait()
	require.ErrorIs(t, err, ErrUnknownParameter)
	assert.Zero(t, h.coord.Pending().Len())
}

func TestCoordinator_EOFStopsGracefully(t *testing.T) {
	h := newHarness(t, CoordinatorConfig{})
	h.exchange("{}\n")

	// WHEN the remote side closes the channel
	require.NoError(t, h.remote.Close())

	// THEN Run returns nil
	require.NoError(t, h.wait())
	assert.Equal(t, StateStopped, h.coord.State())
}

func TestCoordinator_StopsOnceBudgetExceeded(t *testing.T) {
	// GIVEN a budget of 2 observations
	h := newHarness(t, CoordinatorConfig{Stop: MaxObservations(2)})
	pending := h.exchange("{}\n")

	// WHEN observations arrive one at a time
	for i := 1; i <= 3; i++ {
		select {
		case err := <-h.done:
			t.Fatalf("coordinator stopped after %d observations: %v", i-1, err)
		default:
		}
		pending = h.exchange(observationLine(pending[0], fmt.Sprintf("%d", i), false))
	}

	// THEN the loop stops on its own after the third (2 is still within budget)
	require.NoError(t, h.wait())
	assert.Equal(t, 3, h.coord.Store().Len())
}

func TestCoordinator_PredicateCheckedBeforeFirstReceive(t *testing.T) {
	// GIVEN a ledger that already exceeds the budget
	path := filepath.Join(t.TempDir(), "observations.jsonl")
	var contents strings.Builder
	for id := 1; id <= 3; id++ {
		contents.WriteString(observationLine(NewCandidate(id, Params{"x": 0.1}), "1", false))
	}
	require.NoError(t, os.WriteFile(path, []byte(contents.String()), 0o644))
	log, err := OpenFileLog(path)
	require.NoError(t, err)
	defer log.Close()

	// WHEN the coordinator starts
	h := newHarnessWithLog(t, CoordinatorConfig{Stop: MaxObservations(2)}, log, path)

	// THEN it stops without receiving anything
	require.NoError(t, h.wait())
}

func TestCoordinator_ResumedIDsSkipRecordedCandidates(t *testing.T) {
	// GIVEN a ledger holding candidates 1, 2 and 4
	path := filepath.Join(t.TempDir(), "observations.jsonl")
	var contents strings.Builder
	for _, id := range []int{1, 2, 4} {
		contents.WriteString(observationLine(NewCandidate(id, Params{"x": 0.1}), "1", false))
	}
	require.NoError(t, os.WriteFile(path, []byte(contents.String()), 0o644))
	log, err := OpenFileLog(path)
	require.NoError(t, err)
	defer log.Close()
	h := newHarnessWithLog(t, CoordinatorConfig{}, log, path)

	// WHEN two candidates are requested
	replies := h.exchange("{}\n{}\n")

	// THEN they fill the gap first
	require.Len(t, replies, 2)
	assert.Equal(t, 3, replies[0].ID())
	assert.Equal(t, 5, replies[1].ID())
}

func TestCoordinator_IDsUniqueAcrossLongRun(t *testing.T) {
	// GIVEN a randomized remote side that observes, removes or fails candidates
	rng := rand.New(rand.NewSource(3))
	h := newHarness(t, CoordinatorConfig{Generator: &uniformGenerator{rng: rand.New(rand.NewSource(4))}})
	pending := h.exchange("{}\n{}\n{}\n{}\n")

	for round := 0; round < 50; round++ {
		var batch strings.Builder
		for _, c := range pending {
			switch rng.Intn(4) {
			case 0:
				line, err := EncodeRemove(c)
				require.NoError(t, err)
				batch.Write(line)
			case 1:
				batch.WriteString(observationLine(c, "null", true))
			default:
				batch.WriteString(observationLine(c, fmt.Sprintf("%f", rng.Float64()), false))
			}
		}
		pending = h.exchange(batch.String())
		require.Len(t, pending, 4)

		// THEN no reply reuses an id that is observed or still pending
		seen := map[int]bool{}
		for _, obs := range h.coord.Store().Observations() {
			require.False(t, seen[obs.Candidate.ID()], "observed id %d recorded twice", obs.Candidate.ID())
			seen[obs.Candidate.ID()] = true
		}
		for _, c := range pending {
			require.False(t, seen[c.ID()], "round %d: id %d already in use", round, c.ID())
			seen[c.ID()] = true
		}
	}
	require.NoError(t, h.remote.Close())
	require.NoError(t, h.wait())
}

func TestCoordinator_RunTwiceFails(t *testing.T) {
	h := newHarness(t, CoordinatorConfig{})
	require.NoError(t, h.remote.Close())
	require.NoError(t, h.wait())

	assert.ErrorIs(t, h.coord.Run(context.Background()), ErrAlreadyRunning)
}

func TestCoordinator_ReceiveTimeout(t *testing.T) {
	h := newHarness(t, CoordinatorConfig{RecvTimeout: 20 * time.Millisecond})

	assert.ErrorIs(t, h.wait(), ErrReceiveTimeout)
}

func TestCoordinator_ContextCancellationIsAnError(t *testing.T) {
	log, _ := openTestLog(t)
	store, err := LoadObservationStore(context.Background(), log)
	require.NoError(t, err)
	local, remote := NewPipe()
	defer remote.Close()
	coord, err := NewCoordinator(CoordinatorConfig{Bounds: testBounds(t), Store: store, Generator: &scriptedGenerator{}, Channel: local})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = coord.Run(ctx)
	assert.True(t, errors.Is(err, context.Canceled), "Run err = %v, want context.Canceled", err)
}

func TestNewCoordinator_RequiresCollaborators(t *testing.T) {
	local, _ := NewPipe()
	store := &ObservationStore{}
	gen := &scriptedGenerator{}

	_, err := NewCoordinator(CoordinatorConfig{Generator: gen, Channel: local})
	assert.Error(t, err, "missing store")
	_, err = NewCoordinator(CoordinatorConfig{Store: store, Channel: local})
	assert.Error(t, err, "missing generator")
	_, err = NewCoordinator(CoordinatorConfig{Store: store, Generator: gen})
	assert.Error(t, err, "missing channel")
	_, err = NewCoordinator(CoordinatorConfig{Store: store, Generator: gen, Channel: local, RecvTimeout: -time.Second})
	assert.Error(t, err, "negative timeout")

	coord, err := NewCoordinator(CoordinatorConfig{Bounds: testBounds(t), Store: store, Generator: gen, Channel: local})
	require.NoError(t, err)
	assert.Equal(t, StateReady, coord.State())
	assert.Equal(t, []string{"x", "y"}, coord.Labels())
}

func TestCoordinator_RecordsMetricsAndTrace(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg, "test")
	rt := trace.New(trace.TraceLevelDecisions)
	h := newHarness(t, CoordinatorConfig{Metrics: m, Trace: rt, Objective: ObjectiveSpec{Path: "loss"}})

	first := h.exchange("{}\n{}\n")
	line, err := EncodeRemove(first[1])
	require.NoError(t, err)
	h.exchange(observationLine(first[0], `{"loss":0.25}`, false) + string(line))
	require.NoError(t, h.remote.Close())
	require.NoError(t, h.wait())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Observations))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Pending))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.DispatchedTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.MessagesTotal.WithLabelValues("ack")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesTotal.WithLabelValues("observation")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesTotal.WithLabelValues("remove")))

	require.Len(t, rt.Dispatches, 4)
	require.Len(t, rt.Resolutions, 2)
	assert.Equal(t, trace.OutcomeObserved, rt.Resolutions[0].Outcome)
	require.NotNil(t, rt.Resolutions[0].Objective)
	assert.Equal(t, 0.25, *rt.Resolutions[0].Objective)
	assert.Equal(t, trace.OutcomeRemoved, rt.Resolutions[1].Outcome)
}
