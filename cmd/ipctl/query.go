package main

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	api "github.com/kailas-cloud/ipregistry/internal/transport/chi"
)

func newListCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all registered IP records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			ips, err := c.List(cmd.Context())
			if err != nil {
				return err
			}
			return printIPs(cmd, opts, ips)
		},
	}
}

func newGetCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one IP record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil || id < 0 {
				return fmt.Errorf("invalid id %q", args[0])
			}
			c, err := opts.client()
			if err != nil {
				return err
			}
			ip, err := c.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), ip)
			}
			return printIP(cmd.OutOrStdout(), &ip)
		},
	}
}

func newSearchCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "search <keyword>",
		Short: "Find records whose description contains a keyword",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			ips, err := c.Search(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printIPs(cmd, opts, ips)
		},
	}
}

func newOwnerCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "owner <address>",
		Short: "List records owned by a wallet address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			ips, err := c.ByOwner(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printIPs(cmd, opts, ips)
		},
	}
}

func newLicensedCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "licensed <address>",
		Short: "List records a wallet address holds access grants for",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			licensed, err := c.Licensed(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.json {
				return printJSON(out, licensed)
			}
			if len(licensed) == 0 {
				_, err := fmt.Fprintln(out, color.YellowString("No readable licensed records"))
				return err
			}
			for i := range licensed {
				if err := printIP(out, &licensed[i].IP); err != nil {
					return err
				}
				fmt.Fprintf(out, "  Granted:      %s (tx %s)\n", licensed[i].GrantedAt, licensed[i].TxHash)
			}
			return nil
		},
	}
}

func printIPs(cmd *cobra.Command, opts *globalOptions, ips []api.IP) error {
	if opts.json {
		return printJSON(cmd.OutOrStdout(), ips)
	}
	return printIPTable(cmd.OutOrStdout(), ips)
}
