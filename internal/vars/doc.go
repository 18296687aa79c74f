// Package vars implements the shared variable service.
//
// Variables are the only channel between the driver and its observers: the
// driver publishes the active table, the current record and its status, and
// operator consoles write the control token the driver polls. Names are
// case-insensitive.
//
// Two stores back the service. Memory keeps variables for a single process;
// Badger persists them in a badger database so that a console in another
// process, or a later run, sees the same values.
package vars
