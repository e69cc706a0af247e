// Package main provides the blunderlab CLI: engine analysis of a
// player's recent games and study publishing of the worst mistakes.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
