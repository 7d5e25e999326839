package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/jmerrifield20/customdomains/pkg/client"
	"github.com/spf13/cobra"
)

const requestTimeout = 60 * time.Second

func newClient() (*client.Client, error) {
	if sessionToken == "" {
		return nil, errors.New("no session token: pass --token or set DOMAINCTL_TOKEN")
	}
	return client.New(serverURL, client.WithBearerToken(sessionToken))
}

// ── add ──────────────────────────────────────────────────────────────────────

var addCmd = &cobra.Command{
	Use:   "add <domain>",
	Short: "Attach a custom domain and print the DNS records to publish",
	Long: `add registers the domain with the provisioning provider (or the offline
mock when none is configured) and stores its verification records.

Running it again for the same domain is safe and refreshes the records.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
		defer cancel()

		res, err := c.AddDomain(ctx, args[0])
		if err != nil {
			if errors.Is(err, client.ErrDomainAlreadyRegistered) {
				return fmt.Errorf("%s is already registered to another account", args[0])
			}
			return fmt.Errorf("add domain: %w", err)
		}
		if outputFormat == "json" {
			return writeJSON(cmd.OutOrStdout(), res)
		}
		printAddResult(cmd.OutOrStdout(), res)
		return nil
	},
}

func printAddResult(w io.Writer, res *client.AddResult) {
	if res.MockMode() {
		fmt.Fprintln(w, "Provider not configured: records below are offline placeholders.")
	}
	if res.Warning != "" {
		fmt.Fprintf(w, "Warning: %s\n", res.Warning)
	}
	if res.SkippedDBUpdate {
		fmt.Fprintln(w, "Stored records were left unchanged.")
		return
	}
	if res.Domain == nil {
		return
	}
	fmt.Fprintf(w, "\nPublish these DNS records for %s:\n\n", res.Domain.Domain)
	printRecords(w, res.Domain)
	fmt.Fprintf(w, "\nVerification token: %s\n", res.VerificationToken)
}

func printRecords(w io.Writer, d *client.Domain) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PURPOSE\tTYPE\tNAME\tVALUE")
	fmt.Fprintf(tw, "ownership\t%s\t%s\t%s\n", upper(d.OwnershipType), d.OwnershipName, orDash(d.OwnershipValue))
	if d.SSLName != "" || d.SSLValue != "" {
		sslType := "TXT"
		if d.SSLName != "" && d.SSLValue != "" && isHostname(d.SSLValue) {
			sslType = "CNAME"
		}
		fmt.Fprintf(tw, "ssl\t%s\t%s\t%s\n", sslType, d.SSLName, d.SSLValue)
	}
	tw.Flush()
}

// ── list ─────────────────────────────────────────────────────────────────────

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List your custom domains",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
		defer cancel()

		domains, err := c.ListDomains(ctx)
		if err != nil {
			return fmt.Errorf("list domains: %w", err)
		}
		if outputFormat == "json" {
			return writeJSON(cmd.OutOrStdout(), domains)
		}
		printDomainTable(cmd.OutOrStdout(), domains)
		return nil
	},
}

func printDomainTable(w io.Writer, domains []client.Domain) {
	if len(domains) == 0 {
		fmt.Fprintln(w, "No custom domains.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DOMAIN\tVERIFIED\tOWNERSHIP\tTOKEN\tCREATED")
	for _, d := range domains {
		fmt.Fprintf(tw, "%s\t%t\t%s\t%s\t%s\n",
			d.Domain, d.Verified, upper(d.OwnershipType), d.VerificationToken,
			d.CreatedAt.Format(time.RFC3339))
	}
	tw.Flush()
}

// ── get ──────────────────────────────────────────────────────────────────────

var getCmd = &cobra.Command{
	Use:   "get <domain>",
	Short: "Show one custom domain and its DNS records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
		defer cancel()

		d, err := c.GetDomain(ctx, args[0])
		if err != nil {
			if errors.Is(err, client.ErrDomainNotFound) {
				return fmt.Errorf("%s is not attached to your account", args[0])
			}
			return fmt.Errorf("get domain: %w", err)
		}
		if outputFormat == "json" {
			return writeJSON(cmd.OutOrStdout(), d)
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Domain:   %s\nVerified: %t\n\n", d.Domain, d.Verified)
		printRecords(w, d)
		return nil
	},
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
