package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	commit  = ""
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := newApp(os.Stdin, os.Stdout)
	rootCmd := newRootCommand(a)
	err := rootCmd.ExecuteContext(ctx)
	if cerr := a.close(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "placecell: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "placecell",
		Short: "College placement portal client",
		Long: `placecell talks to the college placement portal. Students browse eligible
jobs, apply, track applications and answer offers; placement officers post
jobs, record placements and pull reports.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Context())
		},
	}
	cmd.SetOut(a.out)
	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Config file (default ./placecell.yaml or ~/.placecell/placecell.yaml)")
	cmd.PersistentFlags().StringVarP(&a.format, "output", "o", formatTable, "Output format: table, json or yaml")
	cmd.PersistentFlags().StringVar(&a.baseURL, "base-url", "", "Portal base URL, overrides the config file")
	cmd.PersistentFlags().StringVar(&a.metricsFile, "metrics-file", "", "Write client metrics in Prometheus text format to this file on exit")
	cmd.AddCommand(
		newRegisterCmd(a),
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newProfileCmd(a),
		newJobsCmd(a),
		newApplicationsCmd(a),
		newCalendarCmd(a),
		newOffersCmd(a),
		newDashboardCmd(a),
		newTPOCmd(a),
	)
	return cmd
}
