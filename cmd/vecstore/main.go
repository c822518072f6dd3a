// Package main is the entry point for the vecstore CLI.
//
// Usage:
//
//	vecstore [flags] <command> [subcommand] [args]
//
// Commands:
//
//	index   - Index management (create, drop, info)
//	add     - Embed texts and add them to the index
//	search  - Similarity search by text
//	ingest  - Load documents from Supabase and index them
package main

import (
	"fmt"
	"os"

	"github.com/creastat/vecstore/cmd/vecstore/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
