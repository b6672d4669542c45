package config

import (
	"runtime"

	"github.com/namsral/flag"
)

// Config holds runtime knobs for the equity tools. Flags can also be set
// through ICM_-prefixed environment variables.
type Config struct {
	Iterations int
	Threads    int
	Debug      bool
}

func (c *Config) Load(args []string) error {
	fs := flag.NewFlagSetWithEnvPrefix("icm", "ICM", flag.ContinueOnError)
	fs.IntVar(&c.Iterations, "iterations", 80000, "per-player monte carlo iteration count for estimated fields")
	fs.IntVar(&c.Threads, "threads", runtime.NumCPU(), "number of simulation workers")
	fs.BoolVar(&c.Debug, "debug", false, "enable debug logging")
	err := fs.Parse(args)
	return err
}
