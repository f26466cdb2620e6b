package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "esclient",
		Usage:   "inspect how the client routes calls to an event store cluster",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the YAML settings file",
			},
			&cli.StringFlag{
				Name:  "env-prefix",
				Usage: "prefix of the environment variables overriding the settings",
				Value: "ESCLIENT_",
			},
			&cli.StringSliceFlag{
				Name:  "seed",
				Usage: "gossip seed (host:port), can be repeated",
			},
			&cli.StringFlag{
				Name:  "endpoint",
				Usage: "single node to connect to without discovery (host:port)",
			},
			&cli.StringFlag{
				Name:  "preference",
				Usage: "node preference: leader, follower, readonlyreplica or random",
			},
			&cli.BoolFlag{
				Name:  "insecure",
				Usage: "connect without TLS",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "serve Prometheus metrics on this address while the command runs",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			resolveCommand(),
			topologyCommand(),
			healthCommand(),
		},
	}
}
