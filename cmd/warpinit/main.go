package main

import (
	"github.com/satproc/warpinit/internal/cli"
	"github.com/satproc/warpinit/internal/metrics"
)

func main() {
	metrics.EmitBuildInfo()
	cli.Execute()
}
