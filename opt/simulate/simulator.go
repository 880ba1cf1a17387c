// Package simulate drives a coordinator with a pool of synthetic trainers that
// speak the coordinator's line protocol. It is the in-process stand-in for the
// remote side: every round it sends one line per trainer and reads back one
// candidate per line.
package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/sontungtran/dopt/opt"
)

// ResultKey is the field of every simulated result holding the objective value.
const ResultKey = "loss"

// Config describes the simulated trainer pool.
type Config struct {
	Trainers   int     // concurrent trainer slots; each round sends one line per slot
	Function   string  // synthetic objective name, see ValidFunctionNames
	Noise      float64 // standard deviation of Gaussian noise added to the objective
	Contention float64 // probability an evaluation reports a contention failure
	Dropout    float64 // probability a trainer abandons its candidate with a Remove line
	MaxRounds  int     // rounds after the initial acks; 0 runs until the coordinator stops
}

// Validate checks the pool configuration.
func (c Config) Validate() error {
	if c.Trainers < 1 {
		return fmt.Errorf("trainers must be >= 1, got %d", c.Trainers)
	}
	if _, err := LookupFunction(c.Function); err != nil {
		return err
	}
	if c.Noise < 0 || math.IsNaN(c.Noise) {
		return fmt.Errorf("noise must be >= 0, got %v", c.Noise)
	}
	if !isProbability(c.Contention) {
		return fmt.Errorf("contention must be in [0, 1], got %v", c.Contention)
	}
	if !isProbability(c.Dropout) {
		return fmt.Errorf("dropout must be in [0, 1], got %v", c.Dropout)
	}
	if c.MaxRounds < 0 {
		return fmt.Errorf("max rounds must be >= 0, got %d", c.MaxRounds)
	}
	return nil
}

func isProbability(p float64) bool {
	return p >= 0 && p <= 1
}

// Stats counts what the simulator sent.
type Stats struct {
	Rounds       int
	Observations int
	Contention   int
	Removed      int
}

func (s *Stats) add(o Stats) {
	s.Rounds += o.Rounds
	s.Observations += o.Observations
	s.Contention += o.Contention
	s.Removed += o.Removed
}

// Simulator is the trainer pool.
type Simulator struct {
	cfg        Config
	fn         Function
	bounds     opt.BoundSpec
	channel    opt.Channel
	noise      *rand.Rand
	contention *rand.Rand
	dropout    *rand.Rand
	stats      Stats
}

// New creates a simulator that talks over ch. Randomness comes from the
// objective, contention and dropout subsystems of rng.
func New(cfg Config, bounds opt.BoundSpec, rng *opt.PartitionedRNG, ch opt.Channel) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	fn, _ := LookupFunction(cfg.Function)
	if bounds.Len() < fn.MinDims {
		return nil, fmt.Errorf("objective %s needs at least %d parameters, bounds have %d", fn.Name, fn.MinDims, bounds.Len())
	}
	if ch == nil {
		return nil, errors.New("simulator requires a channel")
	}
	return &Simulator{
		cfg:        cfg,
		fn:         fn,
		bounds:     bounds,
		channel:    ch,
		noise:      rng.ForSubsystem(opt.SubsystemObjective),
		contention: rng.ForSubsystem(opt.SubsystemContention),
		dropout:    rng.ForSubsystem(opt.SubsystemDropout),
	}, nil
}

// Stats returns the counters accumulated so far.
func (s *Simulator) Stats() Stats {
	return s.stats
}

// Run sends the initial acks and then answers every reply batch until
// MaxRounds is reached or the coordinator closes the channel. A closed
// channel is a normal end of the run. Stats only count delivered batches.
func (s *Simulator) Run(ctx context.Context) error {
	batch := bytes.Repeat(opt.EncodeAck(), s.cfg.Trainers)
	var sent Stats
	for {
		if err := s.channel.Send(ctx, string(batch)); err != nil {
			if errors.Is(err, io.ErrClosedPipe) || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("sending trainer batch: %w", err)
		}
		s.stats.add(sent)
		replies, err := s.channel.Recv(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("receiving candidates: %w", err)
		}
		s.stats.Rounds++

		candidates, err := decodeReplies(replies)
		if err != nil {
			return err
		}
		if s.cfg.MaxRounds > 0 && s.stats.Rounds >= s.cfg.MaxRounds {
			logrus.Debugf("Simulator reached %d rounds", s.stats.Rounds)
			return nil
		}
		batch, sent, err = s.evaluate(candidates)
		if err != nil {
			return err
		}
	}
}

func decodeReplies(blob string) ([]opt.Candidate, error) {
	lines := opt.SplitBatch(blob)
	out := make([]opt.Candidate, 0, len(lines))
	for _, line := range lines {
		c, err := opt.DecodeReply(line)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// evaluate builds the next batch: one observation or Remove line per candidate.
func (s *Simulator) evaluate(candidates []opt.Candidate) ([]byte, Stats, error) {
	var (
		batch []byte
		st    Stats
	)
	for _, c := range candidates {
		if s.dropout.Float64() < s.cfg.Dropout {
			line, err := opt.EncodeRemove(c)
			if err != nil {
				return nil, st, err
			}
			st.Removed++
			batch = append(batch, line...)
			continue
		}

		obs := opt.Observation{Candidate: c}
		if s.contention.Float64() < s.cfg.Contention {
			obs.ContentionFailure = true
			st.Contention++
		} else {
			value := s.Value(c) + s.cfg.Noise*s.noise.NormFloat64()
			result, err := json.Marshal(map[string]float64{ResultKey: value})
			if err != nil {
				return nil, st, err
			}
			obs.Result = result
			st.Observations++
		}
		line, err := opt.EncodeObservation(obs)
		if err != nil {
			return nil, st, err
		}
		batch = append(batch, line...)
	}
	return batch, st, nil
}

// Value evaluates the noiseless objective at c.
func (s *Simulator) Value(c opt.Candidate) float64 {
	bounds := s.bounds.Bounds()
	u := make([]float64, len(bounds))
	for i, b := range bounds {
		v, _ := c.Param(b.Name)
		if w := b.Width(); w > 0 {
			u[i] = (v - b.Min) / w
		} else {
			u[i] = 0.5
		}
	}
	return s.fn.Eval(u)
}
