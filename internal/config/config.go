/*
Package config holds the agent's process-wide configuration state: initialised once at
startup from CLI flags and an optional config file, then treated as immutable for the rest of
the process lifetime.
*/
package config

import (
	"errors"

	"github.com/coreboard/snmpagentd/internal/oid"
)

// MaxDisks bounds the number of disk-table entries.
const MaxDisks = 4

// MaxInterfaces bounds the number of interface-table entries.
const MaxInterfaces = 8

// Default values applied when neither a CLI flag nor a config file sets them.
const (
	DefaultUDPPort    = 161
	DefaultTCPPort    = 161
	DefaultCommunity  = "public"
	DefaultTimeoutSec = 60
	DefaultVendorOID  = ".1.3.6.1.4.1.8072.3.2.10"
	DefaultLogLevel   = "info"
)

// AddressFamily selects IPv4 or IPv6 for the listening sockets.
type AddressFamily int

const (
	IPv4 AddressFamily = iota
	IPv6
)

// Config is the agent's immutable, process-wide configuration state.
type Config struct {
	AddressFamily AddressFamily
	UDPPort       int
	TCPPort       int
	Auth          bool
	Community     string
	Contact       string
	Location      string
	Description   string
	VendorOID     string
	Disks         []string
	Interfaces    []string
	BindDevice    string
	DropPrivsUser string
	TimeoutSec    int
	LogLevel      string
	Foreground    bool
	Syslog        bool
	ConfigFile    string
}

// ErrInvalidConfig is returned by Validate when a configuration value violates a bound or
// invariant the rest of the agent assumes holds.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Default returns a Config populated with the agent's defaults, ready to be overridden by CLI
// flags or a config file before use.
func Default() *Config {
	return &Config{
		AddressFamily: IPv4,
		UDPPort:       DefaultUDPPort,
		TCPPort:       DefaultTCPPort,
		Community:     DefaultCommunity,
		Description:   "snmpagentd",
		VendorOID:     DefaultVendorOID,
		TimeoutSec:    DefaultTimeoutSec,
		LogLevel:      DefaultLogLevel,
	}
}

// Validate checks the bounds and invariants §6 and §3 impose on configuration values: at most
// MaxDisks disk paths, at most MaxInterfaces interface names, a non-empty community string,
// and a vendor string that parses as a dotted OID.
func (c *Config) Validate() error {
	if len(c.Disks) > MaxDisks {
		return ErrInvalidConfig
	}
	if len(c.Interfaces) > MaxInterfaces {
		return ErrInvalidConfig
	}
	if c.Community == "" {
		return ErrInvalidConfig
	}
	if c.UDPPort <= 0 || c.UDPPort > 65535 || c.TCPPort <= 0 || c.TCPPort > 65535 {
		return ErrInvalidConfig
	}
	if c.TimeoutSec <= 0 {
		return ErrInvalidConfig
	}
	if _, err := oid.FromASCII(c.VendorOID); err != nil {
		return ErrInvalidConfig
	}
	return nil
}

// TimeoutCentiseconds returns the MIB refresh interval in centiseconds, the unit the reactor's
// refresh deadline is tracked in.
func (c *Config) TimeoutCentiseconds() int {
	return c.TimeoutSec * 100
}
