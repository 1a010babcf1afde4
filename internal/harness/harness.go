/*
Package harness runs stress scenarios against the racefree primitives and reports any
violated guarantee.

Each Scenario drives one primitive from many goroutines running on a goroutines.Pool
and checks the results it can observe, both while the scenario runs and at the end.
A Runner executes a set of scenarios and returns a Report:

	r, err := harness.New(cfg, logger)
	if err != nil {
		// Bad config.
	}
	report, err := r.Run(ctx, "counter", "ledger")
	if err != nil {
		// At least one scenario found a violation. err holds all of them.
	}
	report.Render(os.Stdout, cfg.Format)
*/
package harness

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/gostdlib/internals/otel/span"
	"github.com/gostdlib/racefree"
	"github.com/gostdlib/racefree/goroutines"
	"github.com/gostdlib/racefree/goroutines/limited"
	"github.com/gostdlib/racefree/goroutines/pooled"
	"github.com/gostdlib/racefree/internal/config"
	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// ErrViolation is wrapped by every error that reports a broken guarantee.
var ErrViolation = errors.New("violation")

// violation returns an error wrapping ErrViolation.
func violation(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrViolation, fmt.Sprintf(format, a...))
}

// Env is what a Scenario runs with.
type Env struct {
	// Config is the harness configuration.
	Config config.Config
	// Pool runs the scenario's workers. It is closed after the scenario returns.
	Pool goroutines.Pool
	// Log is the harness logger, named after the scenario.
	Log *zap.Logger
}

// Scenario is a named stress test of one primitive.
type Scenario struct {
	// Name is the name used to select the scenario.
	Name string
	// Description is a one line description for listings.
	Description string
	// Run executes the scenario. detail is a short summary of what was observed. A returned
	// error that wraps ErrViolation marks the scenario as failed, any other error means the
	// scenario could not run.
	Run func(ctx context.Context, env Env) (detail string, err error)
}

var scenarios = map[string]Scenario{}

func register(s Scenario) {
	if _, ok := scenarios[s.Name]; ok {
		panic(fmt.Sprintf("bug: scenario %q registered twice", s.Name))
	}
	scenarios[s.Name] = s
}

// Scenarios returns all scenarios sorted by name.
func Scenarios() []Scenario {
	out := make([]Scenario, 0, len(scenarios))
	for _, s := range scenarios {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Runner runs scenarios.
type Runner struct {
	cfg config.Config
	log *zap.Logger
}

// New creates a Runner. A nil logger discards logs.
func New(cfg config.Config, log *zap.Logger) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{cfg: cfg, log: log}, nil
}

// Run runs the named scenarios in order, or all scenarios when no names are given. The Report
// always holds a Result for every scenario that ran. The error is a *multierror.Error holding
// every failure, nil if all scenarios passed. An unknown name returns an InvalidArgument error
// before anything runs.
func (r *Runner) Run(ctx context.Context, names ...string) (Report, error) {
	toRun, err := r.selected(names)
	if err != nil {
		return Report{}, err
	}

	report := Report{RunID: uuid.New().String()}
	var errs *multierror.Error

	r.log.Info("run starting", zap.String("runID", report.RunID), zap.Int("scenarios", len(toRun)))
	for _, s := range toRun {
		res, err := r.runOne(ctx, report.RunID, s)
		report.Results = append(report.Results, res)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("scenario(%s): %w", s.Name, err))
		}
	}
	r.log.Info("run finished", zap.String("runID", report.RunID), zap.Bool("passed", report.Passed()))

	return report, errs.ErrorOrNil()
}

func (r *Runner) selected(names []string) ([]Scenario, error) {
	if len(names) == 0 {
		return Scenarios(), nil
	}

	out := make([]Scenario, 0, len(names))
	for _, n := range names {
		s, ok := scenarios[n]
		if !ok {
			return nil, racefree.InvalidArgument("unknown scenario %q", n)
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *Runner) runOne(ctx context.Context, runID string, s Scenario) (Result, error) {
	ctx, spanner := span.New(ctx, fmt.Sprintf("racedetective.Scenario(%s)", s.Name))
	defer spanner.End()

	log := r.log.Named(s.Name)
	res := Result{RunID: runID, Scenario: s.Name}

	p, err := r.newPool(s.Name)
	if err != nil {
		res.Detail = err.Error()
		spanner.Status(codes.Error, err.Error())
		return res, err
	}
	defer p.Close()

	start := time.Now()
	detail, err := s.Run(ctx, Env{Config: r.cfg, Pool: p, Log: log})
	res.Duration = time.Since(start)
	res.Elapsed = res.Duration.Round(time.Microsecond).String()
	res.Detail = detail

	if err != nil {
		if res.Detail == "" {
			res.Detail = err.Error()
		}
		spanner.Status(codes.Error, err.Error())
		log.Error("scenario failed", zap.Duration("elapsed", res.Duration), zap.Error(err))
		return res, err
	}

	res.Passed = true
	spanner.Status(codes.Ok, "")
	log.Info("scenario passed", zap.Duration("elapsed", res.Duration), zap.String("detail", detail))
	return res, nil
}

func (r *Runner) newPool(name string) (goroutines.Pool, error) {
	switch r.cfg.Pool {
	case config.PoolLimited:
		return limited.New(name, r.cfg.Workers)
	case config.PoolPooled:
		return pooled.New(name, r.cfg.Workers)
	}
	return nil, racefree.InvalidArgument("unknown pool type %q", r.cfg.Pool)
}
