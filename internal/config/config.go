package config

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for the discover target and the liveness window.
const (
	DefaultProxyHost = "255.255.255.255"
	DefaultProxyPort = 16000
	DefaultTimeout   = 5
)

// Config is the runtime configuration, assembled from command line flags
// layered over an optional YAML file.
type Config struct {
	// ProxyHost and ProxyPort form the address discover datagrams are
	// sent to.
	ProxyHost string `yaml:"proxy_host"`
	ProxyPort uint16 `yaml:"proxy_port"`
	// TelnetPort is where the menu listens for its single client.
	TelnetPort uint16 `yaml:"telnet_port"`
	// Timeout is the number of seconds a proxy survives without contact.
	Timeout uint64 `yaml:"timeout"`
}

// Default returns the configuration used when neither a file nor flags
// say otherwise. The telnet port has no default; the user must pick one.
func Default() Config {
	return Config{
		ProxyHost: DefaultProxyHost,
		ProxyPort: DefaultProxyPort,
		Timeout:   DefaultTimeout,
	}
}

// Load reads a YAML config file and overlays it on the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Validate checks the assembled configuration.
func (c Config) Validate() error {
	if c.ProxyHost == "" {
		return errors.New("proxy host must not be empty")
	}
	if c.ProxyPort == 0 {
		return errors.New("proxy port must be a valid port number")
	}
	if c.TelnetPort == 0 {
		return errors.New("telnet port is required; pass -p or set telnet_port in the config file")
	}
	if c.Timeout == 0 {
		return errors.New("timeout must be a positive number")
	}
	return nil
}

// DiscoverAddr resolves the discover target to an IPv4 address and port.
func (c Config) DiscoverAddr() (netip.AddrPort, error) {
	if addr, err := netip.ParseAddr(c.ProxyHost); err == nil {
		if !addr.Is4() {
			return netip.AddrPort{}, fmt.Errorf("proxy host %q is not an IPv4 address", c.ProxyHost)
		}
		return netip.AddrPortFrom(addr, c.ProxyPort), nil
	}
	ips, err := net.LookupIP(c.ProxyHost)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("failed to resolve proxy host %q: %w", c.ProxyHost, err)
	}
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			addr, ok := netip.AddrFromSlice(v4)
			if ok {
				return netip.AddrPortFrom(addr, c.ProxyPort), nil
			}
		}
	}
	return netip.AddrPort{}, fmt.Errorf("proxy host %q has no IPv4 address", c.ProxyHost)
}

// LivenessTimeout is Timeout as a duration.
func (c Config) LivenessTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}
