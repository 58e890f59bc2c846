//go:build mage

package main

import (
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Search builds the CLI and runs a quick search. The query comes from the
// QUERY environment variable.
func Search() error {
	mg.Deps(Build)
	query := os.Getenv("QUERY")
	if query == "" {
		query = "graph neural networks"
	}
	return sh.RunV("./bin/paper-aggregator", "search", "--limit", "5", query)
}
