// Package main is the entry point for streamctl.
package main

import (
	"github.com/samber/lo"
	"github.com/streamctl/streamctl/cmd"
	"github.com/streamctl/streamctl/config"
	"github.com/streamctl/streamctl/internal/cache"
	"github.com/streamctl/streamctl/log"
)

func main() {
	lo.Must0(config.Setup())
	lo.Must0(log.Setup())

	go cache.CollectGarbage()

	cmd.Execute()
}
