// Package cmd implements the command-line interface of docdb. It provides
// commands for running the server and for talking to it as a client.
//
// The package is organized into several subpackages:
//
//   - document: Commands for document operations (insert, update, remove, find, get, info, perf)
//   - serve: Commands for starting and configuring the docdb server
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See docdb --help for a list of all commands.
package cmd
