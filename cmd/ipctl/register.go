package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	api "github.com/kailas-cloud/ipregistry/internal/transport/chi"
)

type registerFlags struct {
	file         string
	name         string
	description  string
	ownerName    string
	ownerEmail   string
	ownerPostal  string
	ownerAddress string
	ipType       string
	created      string
	registered   string
	licenses     []string
	incentives   []float64
	tags         []string
	ledgerIndex  int
}

func newRegisterCmd(opts *globalOptions) *cobra.Command {
	f := &registerFlags{}
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new IP record",
		Long: `Register a new IP record.

The record is read from a JSON file (--file, "-" for stdin) or built from flags.
Flags given alongside --file override the file's fields.

Examples:
  ipctl register --file patent.json
  ipctl register --name "Espresso press" --description "A method for brewing coffee using pressure" \
    --owner-name Alice --owner-email alice@example.com --owner-postal "1 Main St" \
    --type Patent --created 2024-01-01 --registered 2024-02-01 --license MIT --incentive 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := f.request(cmd)
			if err != nil {
				return err
			}
			c, err := opts.client()
			if err != nil {
				return err
			}
			resp, err := c.Register(cmd.Context(), req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.json {
				return printJSON(out, resp)
			}
			green := color.New(color.FgGreen).SprintFunc()
			fmt.Fprintf(out, "%s %s\n", green("✓"), resp.Message)
			fmt.Fprintf(out, "  ID:           %d\n", resp.ID)
			if resp.TxHash != "" {
				fmt.Fprintf(out, "  Transaction:  %s\n", resp.TxHash)
			}
			printSimilarity(out, resp.Similarity)
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.file, "file", "f", "", "JSON record file, - for stdin")
	fl.StringVar(&f.name, "name", "", "record name")
	fl.StringVar(&f.description, "description", "", "record description")
	fl.StringVar(&f.ownerName, "owner-name", "", "owner name")
	fl.StringVar(&f.ownerEmail, "owner-email", "", "owner email")
	fl.StringVar(&f.ownerPostal, "owner-postal", "", "owner physical address")
	fl.StringVar(&f.ownerAddress, "owner-address", "", "owner wallet address")
	fl.StringVar(&f.ipType, "type", "", "IP type (Patent, Trademark, Copyright, ...)")
	fl.StringVar(&f.created, "created", "", "date of creation")
	fl.StringVar(&f.registered, "registered", "", "date of registration")
	fl.StringSliceVar(&f.licenses, "license", nil, "license name, repeatable")
	fl.Float64SliceVar(&f.incentives, "incentive", nil, "license incentive, one per --license")
	fl.StringSliceVar(&f.tags, "tag", nil, "tag, repeatable")
	fl.IntVar(&f.ledgerIndex, "ledger-index", 0, "ledger index of a record already written on-ledger")
	return cmd
}

func (f *registerFlags) request(cmd *cobra.Command) (*api.RegisterRequest, error) {
	req := &api.RegisterRequest{}
	if f.file != "" {
		if err := readRecordFile(cmd, f.file, req); err != nil {
			return nil, err
		}
	}

	fl := cmd.Flags()
	set := func(name string, dst *string, v string) {
		if fl.Changed(name) {
			*dst = v
		}
	}
	set("name", &req.Name, f.name)
	set("description", &req.Description, f.description)
	set("owner-name", &req.Owner.Name, f.ownerName)
	set("owner-email", &req.Owner.Email, f.ownerEmail)
	set("owner-postal", &req.Owner.PhysicalAddress, f.ownerPostal)
	set("owner-address", &req.OwnerAddress, f.ownerAddress)
	set("type", &req.IPType, f.ipType)
	set("created", &req.DateOfCreation, f.created)
	set("registered", &req.DateOfRegistration, f.registered)
	if fl.Changed("license") {
		req.License = f.licenses
	}
	if fl.Changed("incentive") {
		req.LicenseIncentive = f.incentives
	}
	if fl.Changed("tag") {
		req.Tags = f.tags
	}
	if fl.Changed("ledger-index") {
		req.LedgerIndex = &f.ledgerIndex
	}

	if req.Description == "" {
		return nil, errors.New("description is required (--description or --file)")
	}
	return req, nil
}

func readRecordFile(cmd *cobra.Command, path string, dst *api.RegisterRequest) error {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		fh, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open record file: %w", err)
		}
		defer func() { _ = fh.Close() }()
		r = fh
	}
	if err := json.NewDecoder(r).Decode(dst); err != nil {
		return fmt.Errorf("parse record file %s: %w", path, err)
	}
	return nil
}

func newCheckCmd(opts *globalOptions) *cobra.Command {
	var threshold float64
	cmd := &cobra.Command{
		Use:   "check <description>",
		Short: "Check a description against the registry without registering it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			req := &api.CheckDuplicateRequest{Description: args[0]}
			if cmd.Flags().Changed("threshold") {
				req.Threshold = &threshold
			}

			out := cmd.OutOrStdout()
			resp, err := c.CheckDuplicate(cmd.Context(), req)
			var apiErr *apiError
			if errors.As(err, &apiErr) && apiErr.Code == api.ErrorCodeDuplicateFound && !opts.json {
				fmt.Fprintf(out, "%s duplicate of #%d (score %.4f)\n", color.RedString("✗"), apiErr.MatchIndex, apiErr.Score)
				return err
			}
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(out, resp)
			}
			fmt.Fprintf(out, "%s description is unique\n", color.GreenString("✓"))
			printSimilarity(out, resp.Similarity)
			return nil
		},
	}
	cmd.Flags().Float64Var(&threshold, "threshold", 0.9, "similarity threshold in (0, 1]")
	return cmd
}
