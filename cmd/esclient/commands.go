package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/go-kit/log/level"
	"github.com/urfave/cli/v2"
	"golang.org/x/exp/slices"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/maxpoletaev/esclient/client"
	gossipgrpc "github.com/maxpoletaev/esclient/gossip/grpc"
	"github.com/maxpoletaev/esclient/membership"
	"github.com/maxpoletaev/esclient/nodeclient"
)

// withClient builds a client from the settings and runs f with it.
func withClient(c *cli.Context, f func(ctx context.Context, cl *client.Client) error) error {
	logger := setupLogger(c)

	settings, err := setupSettings(c)
	if err != nil {
		return err
	}

	m, shutdownMetrics := setupMetrics(c, logger)

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := shutdownMetrics(ctx); err != nil {
			level.Warn(logger).Log("msg", "shutdown failed", "err", err)
		}
	}()

	cl, err := client.New(settings, client.WithLogger(logger), client.WithMetrics(m))
	if err != nil {
		return err
	}

	defer func() {
		if err := cl.Close(); err != nil {
			level.Warn(logger).Log("msg", "failed to close connections", "err", err)
		}
	}()

	return f(c.Context, cl)
}

func resolveCommand() *cli.Command {
	return &cli.Command{
		Name:  "resolve",
		Usage: "print the address calls are routed to",
		Action: func(c *cli.Context) error {
			return withClient(c, func(ctx context.Context, cl *client.Client) error {
				ch, err := cl.Selector().SelectChannel(ctx)
				if err != nil {
					return err
				}

				fmt.Fprintln(c.App.Writer, ch.Addr)

				return nil
			})
		},
	}
}

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "check the health of the node calls are routed to",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "service",
				Usage: "service name to check, empty for the whole server",
			},
		},
		Action: func(c *cli.Context) error {
			return withClient(c, func(ctx context.Context, cl *client.Client) error {
				resp, err := healthpb.NewHealthClient(cl.Conn()).Check(ctx, &healthpb.HealthCheckRequest{
					Service: c.String("service"),
				})
				if err != nil {
					return err
				}

				fmt.Fprintln(c.App.Writer, resp.Status)

				return nil
			})
		},
	}
}

func topologyCommand() *cli.Command {
	return &cli.Command{
		Name:  "topology",
		Usage: "read the cluster topology from every gossip seed",
		Action: func(c *cli.Context) error {
			logger := setupLogger(c)

			settings, err := setupSettings(c)
			if err != nil {
				return err
			}

			if !settings.UsesDiscovery() {
				return fmt.Errorf("topology requires gossip seeds")
			}

			dialOpts, err := settings.DialOptions()
			if err != nil {
				return err
			}

			cache := nodeclient.NewCache(
				nodeclient.NewGRPCDialer(dialOpts),
				nodeclient.WithDialTimeout(settings.DialTimeout),
				nodeclient.WithLogger(logger),
			)
			defer cache.Close()

			seeds := settings.GossipSeeds

			topologies, err := readTopologies(c.Context, gossipgrpc.New(cache), seeds, settings.GossipTimeout, logger)
			if err != nil {
				return fmt.Errorf("no seed answered: %w", err)
			}

			w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SEED\tID\tSTATE\tALIVE\tADDRESS")

			for _, seed := range seeds {
				topology, ok := topologies[seed]
				if !ok {
					continue
				}

				members := slices.Clone(topology.Members)
				slices.SortFunc(members, func(a, b membership.Member) int {
					return strings.Compare(a.Addr, b.Addr)
				})

				for _, m := range members {
					fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", seed, m.ID, m.State, m.IsAlive, m.Addr)
				}
			}

			return w.Flush()
		},
	}
}
