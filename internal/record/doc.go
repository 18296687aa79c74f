// Package record provides the data model shared by the table driver.
//
// This package contains type definitions and small pure helpers only. All
// other internal packages import record; record imports nothing internal.
//
// Key constraints:
//   - Outcome values are wire-level integers and never change
//   - Record type tags and test levels compare case-insensitively
//   - A TestRecord is created fresh for every line the driver reads
package record
