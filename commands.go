package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/tournevent/carrierbridge/internal/server"
	"github.com/tournevent/carrierbridge/internal/telemetry"
	"github.com/tournevent/carrierbridge/pkg/shipper"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var trackCmd = &cobra.Command{
	Use:   "track <carrier> <tracking-number>",
	Short: "Print the tracking state of a parcel",
	Args:  cobra.ExactArgs(2),
	RunE:  runTrack,
}

var relaysCmd = &cobra.Command{
	Use:   "relays <postal-code>",
	Short: "List Mondial Relay points near a postal code",
	Args:  cobra.ExactArgs(1),
	RunE:  runRelays,
}

var checkCmd = &cobra.Command{
	Use:   "check [carrier]",
	Short: "Test the configured credentials of one or every carrier",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCheck,
}

var (
	relaysCountry string
	relaysCity    string
	relaysLimit   int
)

func init() {
	relaysCmd.Flags().StringVar(&relaysCountry, "country", "FR", "ISO country code")
	relaysCmd.Flags().StringVar(&relaysCity, "city", "", "city name")
	relaysCmd.Flags().IntVar(&relaysLimit, "limit", 10, "maximum number of points")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)
	a, err := newApp(ctx, metrics)
	if err != nil {
		return err
	}
	defer a.close()

	tracerShutdown, err := initTracer(ctx, a.cfg)
	if err != nil {
		a.logger.Warn("Failed to initialize tracer", zap.Error(err))
	} else {
		defer tracerShutdown(ctx)
	}

	a.logger.Info("Starting Carrier Bridge",
		zap.Int("port", a.cfg.Port),
		zap.String("version", a.cfg.Version),
		zap.Strings("carriers", carrierNames(a.dispatcher.Carriers())),
	)

	// Start HTTP server
	srv := server.New(server.Config{Port: a.cfg.Port}, a.dispatcher, a.logger)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func runTrack(cmd *cobra.Command, args []string) error {
	c, err := shipper.ParseCarrier(args[0])
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer a.close()

	res, err := a.dispatcher.TrackShipment(cmd.Context(), c, args[1])
	if err != nil {
		return err
	}
	return printJSON(cmd, res)
}

func runRelays(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer a.close()

	points, err := a.dispatcher.SearchRelayPoints(cmd.Context(), &shipper.RelayQuery{
		Country:    relaysCountry,
		PostalCode: args[0],
		City:       relaysCity,
		Limit:      relaysLimit,
	})
	if err != nil {
		return err
	}
	return printJSON(cmd, points)
}

func runCheck(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer a.close()

	var results map[shipper.Carrier]shipper.CredentialCheck
	if len(args) == 1 {
		c, err := shipper.ParseCarrier(args[0])
		if err != nil {
			return err
		}
		results = map[shipper.Carrier]shipper.CredentialCheck{c: a.dispatcher.TestCredentials(cmd.Context(), c)}
	} else {
		results = a.dispatcher.TestAllCredentials(cmd.Context())
	}

	carriers := make([]shipper.Carrier, 0, len(results))
	for c := range results {
		carriers = append(carriers, c)
	}
	sort.Slice(carriers, func(i, j int) bool { return carriers[i] < carriers[j] })

	failed := 0
	for _, c := range carriers {
		check := results[c]
		if check.OK {
			fmt.Fprintf(cmd.OutOrStdout(), "%-14s ok\n", c)
			continue
		}
		failed++
		fmt.Fprintf(cmd.OutOrStdout(), "%-14s %s\n", c, check.Error)
	}
	if failed > 0 {
		return fmt.Errorf("%d carrier(s) failed the credential check", failed)
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func carrierNames(carriers []shipper.Carrier) []string {
	out := make([]string, len(carriers))
	for i, c := range carriers {
		out[i] = string(c)
	}
	return out
}
