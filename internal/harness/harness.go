package harness

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/roach88/tabledriver/internal/driver"
	"github.com/roach88/tabledriver/internal/engines"
	"github.com/roach88/tabledriver/internal/record"
	"github.com/roach88/tabledriver/internal/source"
	"github.com/roach88/tabledriver/internal/store"
	"github.com/roach88/tabledriver/internal/testutil"
	"github.com/roach88/tabledriver/internal/vars"
)

// scenarioStart is the fixed start time of every scenario run.
var scenarioStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Load the tables into an in-memory source and seed the variables
// 2. Build the scenario's engines
// 3. Run the top-level table with a deterministic sleeper and run ID
// 4. Read the persisted run and test log back from the store
// 5. Compare the expected status and evaluate assertions
//
// Run returns an error only when the scenario cannot be executed, e.g. when
// the top-level table is missing. Mismatches are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	src, err := scenario.Run.Source()
	if err != nil {
		return nil, fmt.Errorf("run: %w", err)
	}
	opts, err := scenario.Config().Options()
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	runID := "scenario-" + scenario.Name
	if err := st.BeginRun(ctx, runID, src, scenarioStart); err != nil {
		return nil, err
	}
	runLog := st.RunLog(runID)

	tables := source.NewMemory()
	for name, text := range scenario.Tables {
		tables.AddText(name, text)
	}

	vs := vars.NewMemoryService()
	defer vs.Close()
	for name, value := range scenario.Vars {
		if err := vs.SetValue(ctx, name, value); err != nil {
			return nil, fmt.Errorf("set %s: %w", name, err)
		}
	}

	engs, err := engines.Default().BuildAll(scenario.Engines, engines.Env{Logs: runLog, LogID: opts.LogID})
	if err != nil {
		return nil, err
	}

	result := NewResult()
	sleeper := testutil.NewSleeper()
	sleeper.OnSleep = func(n int, _ time.Duration) {
		applySleepHooks(ctx, vs, scenario.OnSleep, n)
	}

	d, err := driver.New(tables, vs,
		driver.WithOptions(opts),
		driver.WithEngines(engs...),
		driver.WithPreferred(scenario.Preferred...),
		driver.WithLogService(runLog),
		driver.WithCounters(runLog),
		driver.WithRecorder(&traceRecorder{result: result}),
		driver.WithSleep(sleeper.Sleep),
		driver.WithRunIDGenerator(driver.NewFixedGenerator(runID)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create driver: %w", err)
	}
	defer d.Close()

	res, err := d.Run(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("failed to run %s: %w", src.Name, err)
	}
	if err := st.FinishRun(ctx, res, scenarioStart.Add(time.Second)); err != nil {
		return nil, err
	}

	run, err := st.ReadRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	result.Status = *run.Status
	result.Shutdown = run.Shutdown

	if result.Messages, err = st.ReadMessages(ctx, runID); err != nil {
		return nil, err
	}
	for _, a := range scenario.Assertions {
		if a.Type != AssertFinalVar {
			continue
		}
		v, err := vs.Value(ctx, a.Name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", a.Name, err)
		}
		result.Vars[a.Name] = v
	}

	if exp := scenario.Expect; exp != nil {
		if exp.Status != result.Status {
			result.AddError(fmt.Sprintf("status: expected %s, got %s",
				driver.FormatStatus(exp.Status), driver.FormatStatus(result.Status)))
		}
		if exp.Shutdown != result.Shutdown {
			result.AddError(fmt.Sprintf("shutdown: expected %t, got %t", exp.Shutdown, result.Shutdown))
		}
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}
	return result, nil
}

// applySleepHooks applies the hooks due on the n-th sleep in key order.
func applySleepHooks(ctx context.Context, vs *vars.Service, hooks []SleepHook, n int) {
	for _, hook := range hooks {
		if hook.After != 0 && hook.After != n {
			continue
		}
		names := make([]string, 0, len(hook.Set))
		for name := range hook.Set {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			_ = vs.SetValue(ctx, name, hook.Set[name])
		}
	}
}

// traceRecorder appends every executed record to a result's trace.
type traceRecorder struct {
	result *Result
}

func (r *traceRecorder) Record(_ context.Context, rec *record.TestRecord) error {
	r.result.AddRecordTrace(TraceEvent{
		Table:      rec.Filename,
		Level:      string(rec.Level),
		Line:       rec.LineNumber,
		RecordType: string(rec.Type),
		Command:    rec.Command,
		Outcome:    rec.Status.String(),
		StatusInfo: rec.StatusInfo,
	})
	return nil
}
