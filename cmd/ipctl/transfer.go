package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	api "github.com/kailas-cloud/ipregistry/internal/transport/chi"
)

func newTransferCmd(opts *globalOptions) *cobra.Command {
	var (
		id  int
		req api.TransferRequest
	)
	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Transfer ownership of an IP record",
		Long: `Transfer ownership of an IP record to a new wallet address.

Example:
  ipctl transfer --id 3 --to 0x52908400098527886E0F7030069857D2E4169EE7 --name Bob`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("id") {
				return errors.New("--id is required")
			}
			req.ID = &id

			c, err := opts.client()
			if err != nil {
				return err
			}
			resp, err := c.Transfer(cmd.Context(), &req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.json {
				return printJSON(out, resp)
			}
			fmt.Fprintf(out, "%s %s\n", color.GreenString("✓"), resp.Message)
			fmt.Fprintf(out, "  New owner:    %s (%s)\n", resp.NewOwner.Name, resp.NewOwner.Address)
			return nil
		},
	}

	fl := cmd.Flags()
	fl.IntVar(&id, "id", 0, "record id")
	fl.StringVar(&req.NewOwnerAddress, "to", "", "new owner wallet address")
	fl.StringVar(&req.NewOwnerDetails.Name, "name", "", "new owner name")
	fl.StringVar(&req.NewOwnerDetails.Email, "email", "", "new owner email")
	fl.StringVar(&req.NewOwnerDetails.PhysicalAddress, "postal", "", "new owner physical address")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newAccessCmd(opts *globalOptions) *cobra.Command {
	var (
		id  int
		req api.AccessRequest
	)
	cmd := &cobra.Command{
		Use:   "access",
		Short: "Record an access grant for a paid license",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("id") {
				return errors.New("--id is required")
			}
			req.ID = &id

			c, err := opts.client()
			if err != nil {
				return err
			}
			resp, err := c.Access(cmd.Context(), &req)
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", color.GreenString("✓"), resp.Message)
			return err
		},
	}

	fl := cmd.Flags()
	fl.IntVar(&id, "id", 0, "record id")
	fl.StringVar(&req.UserAddress, "user", "", "licensee wallet address")
	fl.StringVar(&req.TxHash, "tx", "", "payment transaction hash")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
