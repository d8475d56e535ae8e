// Package main is the entry point for subloop.
package main

import (
	"github.com/samber/lo"
	"github.com/subloop-cli/subloop/cmd"
	"github.com/subloop-cli/subloop/config"
	"github.com/subloop-cli/subloop/log"
)

func main() {
	lo.Must0(config.Setup())
	lo.Must0(log.Setup())

	cmd.Execute()
}
