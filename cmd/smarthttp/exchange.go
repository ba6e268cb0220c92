package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/fenilsonani/smarthttp/internal/transport"
)

// newExchangeCommand builds a command that sends stdin as the request body of
// service and writes the response body to stdout.
func newExchangeCommand(g *globalOptions, use string, service transport.Service, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <url>",
		Short: short,
		Long: fmt.Sprintf(`Read a pkt-line request from standard input, POST it to the git-%s
endpoint of the repository and write the raw response to standard output.`, use),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := transport.Describe(service)
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

			if err := send(s, cmd.InOrStdin(), d.Chunked); err != nil {
				return fmt.Errorf("failed to send request: %w", err)
			}
			if err := g.receive(cmd, cmd.OutOrStdout(), s); err != nil {
				return fmt.Errorf("failed to read response: %w", err)
			}

			return g.printStats(cmd)
		},
	}
}

// send writes the request body. A Content-Length request goes out on the
// first write, so its body is read completely before writing.
func send(w io.Writer, r io.Reader, chunked bool) error {
	if chunked {
		_, err := io.Copy(w, r)
		return err
	}

	body, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	_, err = w.Write(body)
	return err
}
