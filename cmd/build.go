package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/sontungtran/dopt/opt"
	"github.com/sontungtran/dopt/opt/diag"
	"github.com/sontungtran/dopt/opt/metrics"
	"github.com/sontungtran/dopt/opt/storage"
	_ "github.com/sontungtran/dopt/opt/strategy" // registers opt.NewGeneratorFunc
	"github.com/sontungtran/dopt/opt/trace"
)

// session holds everything a coordinator run needs besides its channel.
type session struct {
	cfg      *RunConfig
	seed     int64
	bounds   opt.BoundSpec
	rng      *opt.PartitionedRNG
	ledger   opt.LedgerLog
	store    *opt.ObservationStore
	gen      opt.CandidateGenerator
	trace    *trace.RunTrace
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	server   *metrics.Server
}

// resolveSeed returns the configured seed or draws one and logs it so the
// run can be repeated with --seed.
func resolveSeed(cfg *RunConfig) int64 {
	if cfg.Seed != nil {
		return *cfg.Seed
	}
	s := time.Now().UnixNano()
	logrus.Infof("No seed configured, using --seed %d", s)
	return s
}

// openLedger opens the configured ledger backend.
func openLedger(cfg LedgerConfig) (opt.LedgerLog, error) {
	switch cfg.Backend {
	case "", "file":
		return opt.OpenFileLog(cfg.Path)
	case "redis":
		return storage.NewRedisLog(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Key)
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Backend)
	}
}

// newSession validates cfg, replays the ledger and builds the generator.
// The caller must call close.
func newSession(ctx context.Context, cfg *RunConfig) (*session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run config: %w", err)
	}
	bounds, err := cfg.BoundSpec()
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, seed: resolveSeed(cfg), bounds: bounds}
	s.rng = opt.NewPartitionedRNG(opt.NewRunKey(s.seed))

	s.ledger, err = openLedger(cfg.Ledger)
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	s.store, err = opt.LoadObservationStore(ctx, s.ledger)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("loading ledger: %w", err)
	}
	if s.store.Len() > 0 {
		logrus.Infof("Resuming from %d recorded observations", s.store.Len())
	}

	s.gen, err = opt.NewGenerator(cfg.GeneratorConfig(s.rng))
	if err != nil {
		s.close()
		return nil, fmt.Errorf("building strategy: %w", err)
	}
	s.trace = trace.New(trace.TraceLevel(cfg.Trace))

	s.registry = prometheus.NewRegistry()
	s.metrics = metrics.New(s.registry, strconv.FormatInt(s.seed, 10))
	if cfg.Metrics.Addr != "" {
		s.server = metrics.NewServer(cfg.Metrics.Addr, s.registry, s.health, logrus.StandardLogger())
		go func() {
			if err := s.server.Start(); err != nil {
				logrus.Errorf("Metrics server: %v", err)
			}
		}()
	}
	return s, nil
}

// health reports ledger reachability for backends that can check it.
func (s *session) health() error {
	pinger, ok := s.ledger.(interface{ Ping(context.Context) error })
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return pinger.Ping(ctx)
}

// coordinator builds a coordinator for ch. start anchors the wall-clock deadline.
func (s *session) coordinator(ch opt.Channel, start time.Time) (*opt.Coordinator, error) {
	return opt.NewCoordinator(opt.CoordinatorConfig{
		Bounds:      s.bounds,
		Store:       s.store,
		Generator:   s.gen,
		Channel:     ch,
		Stop:        s.cfg.StoppingPredicate(start),
		Sink:        diag.NewSink(logrus.StandardLogger()).With(logrus.Fields{"seed": s.seed}),
		Metrics:     s.metrics,
		Trace:       s.trace,
		Objective:   s.cfg.Objective(),
		RecvTimeout: s.cfg.Transport.RecvTimeout,
	})
}

func (s *session) close() {
	if s.server != nil {
		if err := s.server.Stop(5 * time.Second); err != nil {
			logrus.Warnf("%v", err)
		}
	}
	if s.ledger != nil {
		if err := s.ledger.Close(); err != nil {
			logrus.Warnf("Closing ledger: %v", err)
		}
	}
}

// writeReport prints the run outcome: observation count, the best observation
// under the configured objective, and the decision trace summary when enabled.
func writeReport(w io.Writer, store *opt.ObservationStore, objective opt.ObjectiveSpec, rt *trace.RunTrace) {
	fmt.Fprintf(w, "=== Search Report ===\n")
	fmt.Fprintf(w, "Observations: %d\n", store.Len())
	if best, value, ok := objective.Best(store.Observations()); ok {
		fmt.Fprintf(w, "Best objective: %.6g\n", value)
		fmt.Fprintf(w, "Best candidate: %s\n", best.Candidate)
	} else {
		fmt.Fprintf(w, "Best objective: n/a\n")
	}
	if rt == nil {
		return
	}
	summary := trace.Summarize(rt, objective.Minimize())
	fmt.Fprintf(w, "=== Trace Summary ===\n")
	fmt.Fprintf(w, "Dispatched: %d\n", summary.Dispatched)
	fmt.Fprintf(w, "Resolved: %d\n", summary.Resolved)
	fmt.Fprintf(w, "Unresolved: %d\n", summary.Unresolved)
	for _, outcome := range []trace.Outcome{trace.OutcomeObserved, trace.OutcomeContention, trace.OutcomeRemoved} {
		fmt.Fprintf(w, "  %s: %d\n", outcome, summary.Outcomes[outcome])
	}
}
