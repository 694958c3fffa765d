// Package main generates a development CA plus server and client
// certificates for running the API sandbox over mutual TLS.
package main

import (
	"fmt"
	"os"

	"github.com/atinyakov/MedKeeper/internal/certgen"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		dir      string
		caName   string
		clientCN string
		hosts    []string
	)
	cmd := &cobra.Command{
		Use:   "certgen",
		Short: "Generate a sandbox CA, server and client certificates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := certgen.WriteBundle(dir, caName, clientCN, hosts...); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Certificates generated into %s\n", dir)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "certs", "output directory")
	cmd.Flags().StringVar(&caName, "ca-name", "MedKeeper Sandbox CA", "CA common name")
	cmd.Flags().StringVar(&clientCN, "client", "alice", "client certificate common name")
	cmd.Flags().StringSliceVar(&hosts, "host", []string{"localhost", "127.0.0.1"}, "server DNS names or IPs")
	return cmd
}
