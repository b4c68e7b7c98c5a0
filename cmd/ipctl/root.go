package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/ipregistry/internal/version"
)

const defaultServer = "http://localhost:8080"

type globalOptions struct {
	server  string
	token   string
	timeout time.Duration
	json    bool
}

func (o *globalOptions) client() (*apiClient, error) {
	return newAPIClient(o.server, o.token, o.timeout)
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "ipctl",
		Short: "Register and query intellectual property records",
		Long: `ipctl talks to an IP registry server.

Every description is checked for near-duplicates before it is registered.
The server address and API key default to $IPCTL_SERVER and $IPCTL_TOKEN.

Examples:
  ipctl register --file patent.json
  ipctl search coffee
  ipctl compare "brewing coffee under pressure" "brewing coffee using pressure"`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	server := os.Getenv("IPCTL_SERVER")
	if server == "" {
		server = defaultServer
	}
	pf := root.PersistentFlags()
	pf.StringVar(&opts.server, "server", server, "registry base URL")
	pf.StringVar(&opts.token, "token", os.Getenv("IPCTL_TOKEN"), "API key sent as a bearer token")
	pf.DurationVar(&opts.timeout, "timeout", 30*time.Second, "request timeout")
	pf.BoolVar(&opts.json, "json", false, "print raw JSON responses")

	root.AddCommand(
		newRegisterCmd(opts),
		newCheckCmd(opts),
		newListCmd(opts),
		newGetCmd(opts),
		newSearchCmd(opts),
		newOwnerCmd(opts),
		newTransferCmd(opts),
		newAccessCmd(opts),
		newLicensedCmd(opts),
		newCompareCmd(),
	)
	return root
}
