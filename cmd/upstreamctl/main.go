// Command upstreamctl loads an upstream-pool config file and, per
// invocation, prints a list's status, makes one selection from it, or
// serves every list's counters as Prometheus metrics. It has no command
// for reporting ok/fail, so the circuit breaker is not driven from here.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/go-upstream/pool/internal/config"
	"github.com/go-upstream/pool/internal/logging"
	"github.com/go-upstream/pool/upstream"
)

var (
	configPath  string
	listName    string
	defaultPort uint16
	debug       bool
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "upstreamctl",
		Short: "Inspect and exercise upstream pools defined in a YAML config",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "upstreams.yaml", "path to the YAML config file")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(newStatusCmd())
	root.AddCommand(newGetCmd())
	root.AddCommand(newServeCmd())

	return root
}

func setupLogger() *zap.Logger {
	log, err := logging.New(logging.Options{Debug: debug})
	if err != nil {
		log = zap.NewNop()
	}
	upstream.SetLogger(log)
	return log
}

func loadList(name string) (*upstream.Context, *upstream.List, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	lc, ok := cfg.Lists[name]
	if !ok {
		return nil, nil, fmt.Errorf("no such list %q in %s", name, configPath)
	}

	ctx := upstream.NewContext()
	list, err := config.BuildList(ctx, lc, defaultPort)
	if err != nil {
		return nil, nil, err
	}
	return ctx, list, nil
}

// loadAllLists builds every list named in the config file against a
// single shared Context, for the serve command's metrics registration.
func loadAllLists() (*upstream.Context, map[string]*upstream.List, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	ctx := upstream.NewContext()
	lists := make(map[string]*upstream.List, len(cfg.Lists))
	for name, lc := range cfg.Lists {
		list, err := config.BuildList(ctx, lc, defaultPort)
		if err != nil {
			return nil, nil, fmt.Errorf("building list %q: %w", name, err)
		}
		lists[name] = list
	}
	return ctx, lists, nil
}

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Build every list in the config and expose their counters at /metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := setupLogger()

			_, lists, err := loadAllLists()
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			for name, list := range lists {
				if err := reg.Register(upstream.NewCollector(name, list)); err != nil {
					return fmt.Errorf("registering collector for list %q: %w", name, err)
				}
			}

			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

			log.Info("serving metrics", zap.String("addr", addr))
			return http.ListenAndServe(addr, mux)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":9109", "address to serve /metrics on")
	return cmd
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <list>",
		Short: "Print the current alive set and per-upstream counters for a list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogger()
			_, list, err := loadList(args[0])
			if err != nil {
				return err
			}

			snap := list.Snapshot()
			fmt.Printf("%d/%d alive\n", snap.Alive, snap.Total)
			for _, u := range snap.Upstreams {
				fmt.Printf("  %-32s alive=%-5v weight=%-3d errors=%-3d checked=%-5d addrs=%v\n",
					u.Name, u.Alive, u.Weight, u.Errors, u.Checked, u.Addrs)
			}
			return nil
		},
	}
	return cmd
}

func newGetCmd() *cobra.Command {
	var policy string
	var key string
	cmd := &cobra.Command{
		Use:   "get <list>",
		Short: "Select an upstream from a list using its configured rotation policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogger()
			_, list, err := loadList(args[0])
			if err != nil {
				return err
			}

			p := upstream.PolicyUndef
			switch policy {
			case "random":
				p = upstream.PolicyRandom
			case "round-robin":
				p = upstream.PolicyRoundRobin
			case "master-slave":
				p = upstream.PolicyMasterSlave
			case "hash":
				p = upstream.PolicyHash
			case "sequential":
				p = upstream.PolicySequential
			}

			var u *upstream.Upstream
			if p != upstream.PolicyUndef {
				u, err = list.GetForced(p, []byte(key))
			} else {
				u, err = list.Get(p, []byte(key))
			}
			if err != nil {
				return err
			}
			if u == nil {
				fmt.Println("(sequential exhausted)")
				return nil
			}
			fmt.Printf("%s -> %s\n", u.Name(), u.AddrCur())
			return nil
		},
	}
	cmd.Flags().StringVar(&policy, "policy", "", "override the list's default policy for this call")
	cmd.Flags().StringVar(&key, "key", "", "key to hash, for the hash policy")
	return cmd
}
