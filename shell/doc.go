// Package shell holds the outer-layer helpers shared by the HTTP API and the CLI.
package shell
