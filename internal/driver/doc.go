// Package driver implements the keyword-driven table driver.
//
// The driver reads CYCLE, SUITE and STEP tables line by line, classifies each
// line into a record, routes it to the in-process command handlers and the
// registered engines, applies flow control to the outcome, counts it, and
// polls a shared control state before moving to the next line.
//
// ARCHITECTURE:
//
// Single Logical Thread:
// One table loop executes at any instant. Nested tables run as synchronous
// recursive calls on the same goroutine, so flow-control policies and
// counters shared between nested tables need no locking.
//
// Record Processing Flow:
//  1. Classify: skip blanks and comments, resolve variables, tag the record
//  2. Dispatch by record type (driver command, engine command, test record,
//     skipped, block, breakpoint, implied call)
//  3. Route through internal handlers, preferred engines, remaining engines
//     and the fallback handler until one claims the record
//  4. Flow control: exit flags, NOT_EXECUTED and EXIT_TABLE handling,
//     counting, branch-target lookup
//  5. Controller: pause-on-failure, inter-record delay, control-state poll
//
// Shared Control State:
// The operator console and external monitors write a token into the
// SAFS_DRIVER_CONTROL variable. The controller reads it once per record and
// models the tokens as an explicit State with a transition function.
//
// Shutdown:
// A shutdown request is carried as ScriptNotExecuted plus the shutdown
// marker in StatusInfo. Each ancestor loop closes its table and merges its
// status before returning the marker to its own caller.
package driver
