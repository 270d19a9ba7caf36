// Package config handles TOML configuration parsing and validation for
// netcored.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the top-level configuration for netcored.
type Config struct {
	Interface InterfaceConfig `toml:"interface"`
	ARP       ARPConfig       `toml:"arp"`
	Metrics   MetricsConfig   `toml:"metrics"`
	LogLevel  string          `toml:"log_level"`
}

// InterfaceConfig holds the single directly-attached interface's
// addressing and link parameters.
type InterfaceConfig struct {
	TAPName string `toml:"tap_name"`
	MAC     string `toml:"mac"`
	IP      string `toml:"ip"`
	MTU     int    `toml:"mtu"`
}

// ARPConfig holds the ARP table and pending-buffer TTLs.
type ARPConfig struct {
	TableTTL    string `toml:"table_ttl"`
	MinInterval string `toml:"min_interval"`
}

// MetricsConfig holds the Prometheus HTTP exporter's bind address.
type MetricsConfig struct {
	Enabled     bool   `toml:"enabled"`
	BindAddress string `toml:"bind_address"`
}

func applyDefaults(cfg *Config) {
	if cfg.Interface.MTU == 0 {
		cfg.Interface.MTU = 1500
	}
	if cfg.ARP.TableTTL == "" {
		cfg.ARP.TableTTL = "3600s"
	}
	if cfg.ARP.MinInterval == "" {
		cfg.ARP.MinInterval = "1s"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Metrics.BindAddress == "" {
		cfg.Metrics.BindAddress = ":9100"
	}
}

func validate(cfg *Config) error {
	if cfg.Interface.TAPName == "" {
		return fmt.Errorf("interface.tap_name must be set")
	}
	if _, err := net.ParseMAC(cfg.Interface.MAC); err != nil {
		return fmt.Errorf("interface.mac: %w", err)
	}
	if ip := net.ParseIP(cfg.Interface.IP); ip == nil || ip.To4() == nil {
		return fmt.Errorf("interface.ip: not a valid IPv4 address: %q", cfg.Interface.IP)
	}
	if cfg.Interface.MTU < 68 || cfg.Interface.MTU > 65535 {
		return fmt.Errorf("interface.mtu: out of range: %d", cfg.Interface.MTU)
	}
	if _, err := time.ParseDuration(cfg.ARP.TableTTL); err != nil {
		return fmt.Errorf("arp.table_ttl: %w", err)
	}
	if _, err := time.ParseDuration(cfg.ARP.MinInterval); err != nil {
		return fmt.Errorf("arp.min_interval: %w", err)
	}
	return nil
}

// Load reads and validates a TOML configuration file, filling in defaults
// for any unset field.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// MACAddr parses the interface's configured hardware address into a fixed
// 6-byte array.
func (c *Config) MACAddr() (addr [6]byte, err error) {
	hw, err := net.ParseMAC(c.Interface.MAC)
	if err != nil {
		return addr, err
	}
	copy(addr[:], hw)
	return addr, nil
}

// IPAddr parses the interface's configured IPv4 address into a fixed
// 4-byte array.
func (c *Config) IPAddr() (addr [4]byte, err error) {
	ip := net.ParseIP(c.Interface.IP).To4()
	if ip == nil {
		return addr, fmt.Errorf("interface.ip: not a valid IPv4 address: %q", c.Interface.IP)
	}
	copy(addr[:], ip)
	return addr, nil
}
