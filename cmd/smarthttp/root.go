package main

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/zeebo/xxh3"

	"github.com/fenilsonani/smarthttp/internal/config"
	"github.com/fenilsonani/smarthttp/internal/transport"
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configPath   string
	userAgent    string
	maxRedirects int
	verbose      bool
	digest       bool
	stats        bool

	registry *prometheus.Registry
}

func newRootCommand() *cobra.Command {
	g := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "smarthttp",
		Short: "Talk to Git repositories over the smart HTTP protocol",
		Long: `smarthttp speaks Git's smart HTTP protocol over plain TCP connections.
It lists remote refs and exchanges raw upload-pack and receive-pack
payloads, following redirects the way git does.

Transport failures (bad URL, protocol or network errors) exit with
status 12; any other failure exits with status 1.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&g.configPath, "config", "", "config file (default is ~/.smarthttp/config.yaml)")
	flags.StringVar(&g.userAgent, "user-agent", "", "User-Agent header sent with every request")
	flags.IntVar(&g.maxRedirects, "max-redirects", transport.DefaultMaxRedirects, "Redirects a request may follow (0 disables redirects)")
	flags.BoolVarP(&g.verbose, "verbose", "v", false, "Log connections, requests and redirects")
	flags.BoolVar(&g.digest, "digest", false, "Print an xxh3 digest of the received payload")
	flags.BoolVar(&g.stats, "stats", false, "Print transport counters when done")

	rootCmd.AddCommand(
		newLsRemoteCommand(g),
		newExchangeCommand(g, "upload-pack", transport.UploadPack,
			"Send a fetch negotiation to git-upload-pack and print the response"),
		newExchangeCommand(g, "receive-pack", transport.ReceivePack,
			"Send a push request to git-receive-pack and print the response"),
	)

	return rootCmd
}

// subtransport builds an HTTP subtransport from the config file and flags.
func (g *globalOptions) subtransport(cmd *cobra.Command) (*transport.HTTP, error) {
	path := g.configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Override config with flags
	if cmd.Flags().Changed("user-agent") {
		cfg.UserAgent = g.userAgent
	}
	if cmd.Flags().Changed("max-redirects") {
		cfg.MaxRedirects = g.maxRedirects
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level := slog.LevelWarn
	if g.verbose {
		level = slog.LevelDebug
	}

	opts := cfg.Options()
	opts.Logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	if g.stats {
		g.registry = prometheus.NewRegistry()
		opts.Metrics = transport.NewMetrics(g.registry)
	}

	return transport.New(opts), nil
}

// receive copies r to out, digesting it when requested.
func (g *globalOptions) receive(cmd *cobra.Command, out io.Writer, r io.Reader) error {
	if !g.digest {
		_, err := io.Copy(out, r)
		return err
	}

	hasher := xxh3.New()
	n, err := io.Copy(io.MultiWriter(out, hasher), r)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "xxh3 %016x  %d bytes\n", hasher.Sum64(), n)
	return nil
}

// printStats writes every counter gathered during the command.
func (g *globalOptions) printStats(cmd *cobra.Command) error {
	if g.registry == nil {
		return nil
	}
	families, err := g.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather stats: %w", err)
	}

	w := cmd.ErrOrStderr()
	for _, family := range families {
		for _, m := range family.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
			}
			name := family.GetName()
			if len(labels) > 0 {
				sort.Strings(labels)
				name += "{" + strings.Join(labels, ",") + "}"
			}
			fmt.Fprintf(w, "%s %g\n", name, m.GetCounter().GetValue())
		}
	}
	return nil
}
