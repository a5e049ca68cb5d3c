// Copyright IBM Corp. 2023, 2025

package main

import "github.com/hashicorp/go-export/cmd"

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// main start go-export cli `goexport`
func main() {
	cmd.Run(version, commit, date)
}
