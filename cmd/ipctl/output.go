package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	api "github.com/kailas-cloud/ipregistry/internal/transport/chi"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printIPTable(w io.Writer, ips []api.IP) error {
	if len(ips) == 0 {
		_, err := fmt.Fprintln(w, color.YellowString("No records found"))
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tOWNER\tREGISTERED")
	for _, ip := range ips {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", ip.ID, ip.Name, ip.IPType, ip.Owner.Name, ip.DateOfRegistration)
	}
	return tw.Flush()
}

func printIP(w io.Writer, ip *api.IP) error {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Fprintf(w, "%s %s\n", cyan(fmt.Sprintf("#%d", ip.ID)), ip.Name)
	fmt.Fprintf(w, "  Description:  %s\n", ip.Description)
	fmt.Fprintf(w, "  Type:         %s\n", ip.IPType)
	fmt.Fprintf(w, "  Owner:        %s <%s>\n", ip.Owner.Name, ip.Owner.Email)
	if ip.OwnerAddress != "" {
		fmt.Fprintf(w, "  Address:      %s\n", ip.OwnerAddress)
	}
	fmt.Fprintf(w, "  Created:      %s\n", ip.DateOfCreation)
	fmt.Fprintf(w, "  Registered:   %s\n", ip.DateOfRegistration)
	if len(ip.License) > 0 {
		fmt.Fprintf(w, "  Licenses:     %s\n", strings.Join(ip.License, ", "))
	}
	if len(ip.Tags) > 0 {
		fmt.Fprintf(w, "  Tags:         %s\n", strings.Join(ip.Tags, ", "))
	}
	return nil
}

func printSimilarity(w io.Writer, s api.Similarity) {
	if s.BestIndex < 0 {
		fmt.Fprintf(w, "  Compared against %d records, no overlap\n", s.Scanned)
		return
	}
	fmt.Fprintf(w, "  Compared against %d records, closest #%d (score %.4f)\n", s.Scanned, s.BestIndex, s.BestScore)
}
