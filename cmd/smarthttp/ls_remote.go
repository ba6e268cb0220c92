package main

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fenilsonani/smarthttp/internal/pktline"
	"github.com/fenilsonani/smarthttp/internal/transport"
)

func newLsRemoteCommand(g *globalOptions) *cobra.Command {
	var (
		push         bool
		capabilities bool
		serviceName  string
	)

	cmd := &cobra.Command{
		Use:   "ls-remote <url>",
		Short: "List references in a remote repository",
		Long: `List the references advertised by a remote repository together with
their object IDs, one "<oid> TAB <ref>" line per reference.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if push {
				serviceName = transport.ReceivePackLs.String()
			}
			service, err := listingService(serviceName)
			if err != nil {
				return err
			}

			h, err := g.subtransport(cmd)
			if err != nil {
				return err
			}
			defer h.Free()

			s, err := h.Action(args[0], service)
			if err != nil {
				return fmt.Errorf("failed to connect: %w", err)
			}
			defer s.Close()

			var raw bytes.Buffer
			if err := g.receive(cmd, &raw, s); err != nil {
				return fmt.Errorf("failed to read refs: %w", err)
			}

			discovery, err := pktline.ParseAdvertisement(&raw)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, name := range discovery.Names {
				fmt.Fprintf(out, "%s\t%s\n", discovery.Refs[name], name)
			}
			if capabilities {
				for _, c := range discovery.Capabilities {
					fmt.Fprintf(cmd.ErrOrStderr(), "capability %s\n", c)
				}
			}

			return g.printStats(cmd)
		},
	}

	cmd.Flags().StringVar(&serviceName, "service", transport.UploadPackLs.String(), "Listing to request: upload-pack-ls or receive-pack-ls")
	cmd.Flags().BoolVar(&push, "push", false, "List the refs advertised for push, same as --service receive-pack-ls")
	cmd.Flags().BoolVar(&capabilities, "capabilities", false, "Also print the server capabilities")

	return cmd
}

// listingService resolves a --service value to a reference listing action.
func listingService(name string) (transport.Service, error) {
	service, err := transport.ParseService(name)
	if err != nil {
		return 0, err
	}
	d, err := transport.Describe(service)
	if err != nil {
		return 0, err
	}
	if !d.Listing() {
		return 0, fmt.Errorf("service %q does not list references", name)
	}
	return service, nil
}
