// Package cmd implements the command-line interface for jam.
//
// This package provides the following commands:
//   - serve: Run the sync service with its HTTP API and metrics endpoint
//   - sync: Run a single sync pass for one or all connected users
//   - version: Display version information
//
// The serve command is the default command when no subcommand is specified.
package cmd
