// Command netcored runs the user-space protocol stack against a Linux TAP
// interface and, when metrics.enabled is set in its configuration, exposes
// its Prometheus metrics over HTTP.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/nilreach/netcore/arp"
	"github.com/nilreach/netcore/driver"
	"github.com/nilreach/netcore/ethernet"
	"github.com/nilreach/netcore/internal/config"
	"github.com/nilreach/netcore/netstack"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "netcored",
	Short: "User-space TCP/IP protocol stack daemon",
	Long:  "netcored drives a single-interface Ethernet/ARP/IPv4/ICMP/UDP stack against a Linux TAP device.",
	RunE:  run,
	// Silence cobra's built-in usage/error printing; we report errors ourselves.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "/etc/netcored/netcored.toml",
		"path to the TOML configuration file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logLevel := slog.LevelInfo
	_ = logLevel.UnmarshalText([]byte(cfg.LogLevel))
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	mac, err := cfg.MACAddr()
	if err != nil {
		return fmt.Errorf("interface mac: %w", err)
	}
	ip, err := cfg.IPAddr()
	if err != nil {
		return fmt.Errorf("interface ip: %w", err)
	}
	tableTTL, _ := time.ParseDuration(cfg.ARP.TableTTL)
	minInterval, _ := time.ParseDuration(cfg.ARP.MinInterval)

	tap, err := driver.NewTap(cfg.Interface.TAPName)
	if err != nil {
		return fmt.Errorf("opening tap device: %w", err)
	}
	defer tap.Close()
	log.Info("netcored: tap device ready", slog.String("name", tap.Name()))

	stack := netstack.New(tap, netstack.Config{
		MAC:            ethernet.Addr(mac),
		IP:             arp.Addr(ip),
		MTU:            cfg.Interface.MTU,
		ARPTableTTL:    tableTTL,
		ARPMinInterval: minInterval,
	}, log)

	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics.BindAddress, log)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info("netcored: poll loop starting")
	err = stack.Run(ctx)
	if err == context.Canceled {
		log.Info("netcored: shutting down")
		return nil
	}
	return err
}

func serveMetrics(addr string, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Info("netcored: metrics listening", slog.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("netcored: metrics server stopped", slog.Any("err", err))
	}
}
