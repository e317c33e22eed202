package config

import (
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// BindFlags registers every CLI option from the external interface's flag table onto flags,
// binds each one into v under the same name, and sets v's defaults from Default(). Binding
// happens once per process; newRootCmd in cmd/snmpagentd wires flags against the Cobra
// command's own (non-persistent) flag set before Execute runs.
func BindFlags(flags *pflag.FlagSet, v *viper.Viper) {
	d := Default()

	flags.Bool("use-ipv4", true, "listen on IPv4")
	flags.Bool("use-ipv6", false, "listen on IPv6")
	flags.Bool("auth", false, "require v2c, reject v1 requests")
	flags.String("community", d.Community, "SNMP community string")
	flags.String("contact", "", "sysContact string")
	flags.String("location", "", "sysLocation string")
	flags.String("description", d.Description, "sysDescr string")
	flags.String("vendor", d.VendorOID, "sysObjectID, a dotted OID")
	flags.StringSlice("disks", nil, "disk-table mount points, comma-separated")
	flags.StringSlice("interfaces", nil, "interface-table names, comma-separated")
	flags.String("listen", "", "bind-to-device interface name")
	flags.Int("udp-port", d.UDPPort, "UDP listening port")
	flags.Int("tcp-port", d.TCPPort, "TCP listening port")
	flags.Int("timeout", d.TimeoutSec, "MIB refresh interval in seconds")
	flags.String("loglevel", d.LogLevel, "syslog priority cutoff: none|err|info|notice|debug")
	flags.String("drop-privs", "", "user name to setuid/setgid to after binding")
	flags.Bool("foreground", false, "stay in the foreground instead of daemonizing")
	flags.Bool("syslog", false, "send log output to syslog instead of stderr")
	flags.String("file", "", "optional configuration file, merged after CLI flags")

	for _, name := range []string{
		"use-ipv4", "use-ipv6", "auth", "community", "contact", "location", "description",
		"vendor", "disks", "interfaces", "listen", "udp-port", "tcp-port", "timeout",
		"loglevel", "drop-privs", "foreground", "syslog", "file",
	} {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}
}

// FromViper builds a Config from v: CLI flags (already bound with BindPFlag) take precedence,
// and MergeInConfig (called by the caller against the "file" flag's path) fills in anything not
// given on the command line, matching §6's "CLI first, then config file" merge order. A config
// file may list disks and interfaces under "disk-table" and "iface-table"; those lists are used
// only when "disks" / "interfaces" are empty.
func FromViper(v *viper.Viper) *Config {
	c := Default()
	if v.IsSet("use-ipv6") && v.GetBool("use-ipv6") {
		c.AddressFamily = IPv6
	} else {
		c.AddressFamily = IPv4
	}
	c.Auth = v.GetBool("auth")
	if s := v.GetString("community"); s != "" {
		c.Community = s
	}
	c.Contact = v.GetString("contact")
	c.Location = v.GetString("location")
	if s := v.GetString("description"); s != "" {
		c.Description = s
	}
	if s := v.GetString("vendor"); s != "" {
		c.VendorOID = s
	}
	c.Disks = nonEmpty(v.GetStringSlice("disks"))
	if len(c.Disks) == 0 {
		c.Disks = nonEmpty(v.GetStringSlice("disk-table"))
	}
	c.Interfaces = nonEmpty(v.GetStringSlice("interfaces"))
	if len(c.Interfaces) == 0 {
		c.Interfaces = nonEmpty(v.GetStringSlice("iface-table"))
	}
	c.BindDevice = v.GetString("listen")
	if p := v.GetInt("udp-port"); p != 0 {
		c.UDPPort = p
	}
	if p := v.GetInt("tcp-port"); p != 0 {
		c.TCPPort = p
	}
	if t := v.GetInt("timeout"); t != 0 {
		c.TimeoutSec = t
	}
	if s := v.GetString("loglevel"); s != "" {
		c.LogLevel = s
	}
	c.DropPrivsUser = v.GetString("drop-privs")
	c.Foreground = v.GetBool("foreground")
	c.Syslog = v.GetBool("syslog")
	c.ConfigFile = v.GetString("file")
	return c
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
