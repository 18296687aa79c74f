// Package source provides record sources for the driver: tables read from a
// project directory and tables held in memory.
//
// Both sources load a table completely when it is opened. Tables are small
// text files, and Goto needs random access to find block labels anywhere in
// the table.
package source
