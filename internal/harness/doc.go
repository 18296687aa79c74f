// Package harness runs table scenarios against the driver for conformance
// testing.
//
// A scenario bundles its tables, its engines and the expected outcome in one
// YAML file. The harness executes it headless with scripted engines, an
// in-memory SQLite store and a sleeper that never blocks, so runs are
// reproducible and traces can be compared against golden files.
//
// # Scenario Format
//
//	name: login_flow
//	description: "A failing click branches to the recovery block"
//	run:
//	  table: Login
//	  level: STEP
//	tables:
//	  Login: |
//	    C, SetGeneralScriptFailureBlock, Recover
//	    T, LoginWin, Submit, Click
//	    B, Recover
//	    C, LogMessage, recovered
//	engines:
//	  - name: TC
//	    type: scripted
//	    rules:
//	      - command: Click
//	        outcomes: [GENERAL_SCRIPT_FAILURE]
//	expect:
//	  status:
//	    test_failures: 1
//	assertions:
//	  - type: trace_contains
//	    command: Click
//	    outcome: GENERAL_SCRIPT_FAILURE
//
// # Assertion Types
//
//   - trace_contains: a record with the command (and optionally outcome and
//     table) was executed
//   - trace_order: commands were executed in the given order
//   - trace_count: a command was executed exactly N times
//   - final_var: a shared variable holds a value after the run
//   - message_contains: the test log holds a message containing text
//
// # Deterministic Testing
//
// The harness uses:
//   - A fixed run ID ("scenario-" + name)
//   - testutil.Sleeper in place of the driver's sleep, with on_sleep hooks
//     that change shared variables while the driver is paused
//   - In-memory SQLite database (isolated per run)
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/login_flow.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if !result.Pass {
//	    for _, err := range result.Errors {
//	        log.Println(err)
//	    }
//	}
package harness
