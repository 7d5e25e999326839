package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/jmerrifield20/customdomains/internal/config"
	"github.com/jmerrifield20/customdomains/internal/dns"
	"github.com/jmerrifield20/customdomains/internal/domains/model"
	"github.com/jmerrifield20/customdomains/internal/provider/cloudflare"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// hostnameRow is one provider hostname with its normalized records.
type hostnameRow struct {
	ID           string             `json:"id"`
	Hostname     string             `json:"hostname"`
	Status       string             `json:"status"`
	SSLStatus    string             `json:"ssl_status"`
	Verification model.Verification `json:"verification"`
}

var hostnamesCmd = &cobra.Command{
	Use:   "hostnames",
	Short: "List the provider's custom hostnames with their verification records",
	Long: `hostnames queries the provisioning provider directly with the service's
credentials and prints every custom hostname in the zone, normalized the same
way the service stores them. Use it to compare provider state with stored rows.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := config.Load(config.New())
		if err != nil {
			return err
		}
		creds := cfg.Provider.Credentials()
		if !creds.Configured() {
			return errors.New("provider credentials missing or placeholder (set PROVIDER_API_TOKEN and PROVIDER_ZONE_ID)")
		}

		cf, err := cloudflare.New(cloudflare.Config{
			Credentials: creds,
			BaseURL:     cfg.Provider.BaseURL,
			Timeout:     cfg.Provider.Timeout,
			MaxRetries:  cfg.Provider.MaxRetries,
		}, zap.NewNop())
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
		defer cancel()

		hostnames, err := cf.ListHostnames(ctx)
		if err != nil {
			return fmt.Errorf("list hostnames: %w", err)
		}

		rows := hostnameRows(hostnames)
		if outputFormat == "json" {
			return writeJSON(cmd.OutOrStdout(), rows)
		}
		printHostnames(cmd.OutOrStdout(), rows)
		return nil
	},
}

func hostnameRows(hostnames []model.ProviderHostname) []hostnameRow {
	rows := make([]hostnameRow, 0, len(hostnames))
	for i := range hostnames {
		h := &hostnames[i]
		row := hostnameRow{
			ID:           h.ID,
			Hostname:     h.Hostname,
			Status:       h.Status,
			Verification: dns.Normalize(h.Hostname, h),
		}
		if h.SSL != nil {
			row.SSLStatus = h.SSL.Status
		}
		rows = append(rows, row)
	}
	return rows
}

func printHostnames(w io.Writer, rows []hostnameRow) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No custom hostnames in zone.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "HOSTNAME\tSTATUS\tSSL\tOWNERSHIP\tSSL RECORD")
	for _, r := range rows {
		own := r.Verification.Ownership
		ssl := "-"
		if !r.Verification.SSL.IsZero() {
			ssl = fmt.Sprintf("%s %s=%s", upper(string(r.Verification.SSL.Type)), r.Verification.SSL.Name, r.Verification.SSL.Value)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s %s=%s\t%s\n",
			r.Hostname, orDash(r.Status), orDash(r.SSLStatus),
			upper(string(own.Type)), own.Name, orDash(own.Value), ssl)
	}
	tw.Flush()
}
