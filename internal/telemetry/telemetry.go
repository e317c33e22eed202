/*
Package telemetry implements the platform collaborators the MIB builder queries for dynamic
values: system memory, CPU, load, disk, and network interface counters. Every reader returns a
zero-valued result rather than an error when its backing /proc or /sys file cannot be read, so a
single failed collaborator never aborts a MIB refresh; callers that care still receive a bool to
log the failure at Info level.
*/
package telemetry

import (
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/coreboard/snmpagentd/misc"
)

// SystemInfo carries the host identity values the system subtree needs beyond what the
// configuration already fixes.
type SystemInfo struct {
	HostName  string
	UptimeSec int
}

// ReadSystemInfo returns the local host name and system uptime. HostName falls back to the
// empty string and UptimeSec to 0 if they cannot be determined.
func ReadSystemInfo() (SystemInfo, bool) {
	ok := true
	name, err := os.Hostname()
	if err != nil {
		ok = false
	}
	uptime := misc.GetSystemUptimeSec()
	if uptime == 0 {
		ok = false
	}
	return SystemInfo{HostName: name, UptimeSec: uptime}, ok
}

// MemInfo carries the memory subtree's values, all in KiB.
type MemInfo struct {
	TotalKB, FreeKB, SharedKB, BuffersKB, CachedKB int
}

var (
	regexMemShared  = regexp.MustCompile(`Shmem:\s*(\d+)\s*kB`)
	regexMemBuffers = regexp.MustCompile(`Buffers:\s*(\d+)\s*kB`)
	regexMemCached  = regexp.MustCompile(`^Cached:\s*(\d+)\s*kB`)
)

// ReadMemInfo parses /proc/meminfo for the memory subtree. A read failure returns a
// zero-valued MemInfo and ok=false.
func ReadMemInfo() (MemInfo, bool) {
	content, err := os.ReadFile("/proc/meminfo")
	if err != nil {
		return MemInfo{}, false
	}
	s := string(content)
	usedKB, totalKB := misc.GetSystemMemoryUsageKB()
	return MemInfo{
		TotalKB:   totalKB,
		FreeKB:    totalKB - usedKB,
		SharedKB:  misc.FindNumInRegexGroup(regexMemShared, s, 1),
		BuffersKB: misc.FindNumInRegexGroup(regexMemBuffers, s, 1),
		CachedKB:  findFirstLineMatch(regexMemCached, s),
	}, true
}

// findFirstLineMatch applies re to each line of s and returns the first captured integer,
// or 0 if no line matches. /proc/meminfo carries both "Cached:" and "SwapCached:" lines, and a
// whole-content regex can accidentally match the latter; scanning line by line with a
// line-anchored pattern avoids that.
func findFirstLineMatch(re *regexp.Regexp, s string) int {
	for _, line := range strings.Split(s, "\n") {
		if v := misc.FindNumInRegexGroup(re, line, 1); v != 0 {
			return v
		}
	}
	return 0
}

// DiskInfo carries one disk-table row's values, sizes in KiB.
type DiskInfo struct {
	TotalKB, FreeKB, UsedKB       int
	BlockPercentUsed, InodePctUse int
}

// ReadDiskInfo returns usage for the file system that contains path. InodePctUse is always 0:
// inode accounting is not available through statfs on every platform this agent targets, and
// the spec only requires the column to exist.
func ReadDiskInfo(path string) (DiskInfo, bool) {
	usedKB, freeKB, totalKB := misc.GetDiskUsageKB(path)
	if totalKB == 0 {
		return DiskInfo{}, false
	}
	pct := 0
	if totalKB > 0 {
		pct = usedKB * 100 / totalKB
	}
	return DiskInfo{TotalKB: totalKB, FreeKB: freeKB, UsedKB: usedKB, BlockPercentUsed: pct}, true
}

// LoadInfo carries the three load-average rows.
type LoadInfo struct {
	Load1, Load5, Load15 float64
}

// ReadLoadInfo parses /proc/loadavg. A read or parse failure returns a zero-valued LoadInfo.
func ReadLoadInfo() (LoadInfo, bool) {
	line := misc.GetSystemLoad()
	if line == "" {
		return LoadInfo{}, false
	}
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return LoadInfo{}, false
	}
	l1, err1 := strconv.ParseFloat(fields[0], 64)
	l5, err2 := strconv.ParseFloat(fields[1], 64)
	l15, err3 := strconv.ParseFloat(fields[2], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return LoadInfo{}, false
	}
	return LoadInfo{Load1: l1, Load5: l5, Load15: l15}, true
}

// CPUInfo carries the aggregate CPU jiffy counters from the first line of /proc/stat.
type CPUInfo struct {
	User, Nice, System, Idle, IRQ, ContextSwitches uint32
}

var regexCPULine = regexp.MustCompile(`^cpu\s+(\d+)\s+(\d+)\s+(\d+)\s+(\d+)\s+\d+\s+(\d+)`)
var regexCtxt = regexp.MustCompile(`ctxt\s+(\d+)`)

// ReadCPUInfo parses /proc/stat for the cpu subtree. A read or parse failure returns a
// zero-valued CPUInfo.
func ReadCPUInfo() (CPUInfo, bool) {
	content, err := os.ReadFile("/proc/stat")
	if err != nil {
		return CPUInfo{}, false
	}
	s := string(content)
	m := regexCPULine.FindStringSubmatch(s)
	if m == nil {
		return CPUInfo{}, false
	}
	atoi := func(s string) uint32 {
		v, _ := strconv.ParseUint(s, 10, 32)
		return uint32(v)
	}
	return CPUInfo{
		User:            atoi(m[1]),
		Nice:            atoi(m[2]),
		System:          atoi(m[3]),
		Idle:            atoi(m[4]),
		IRQ:             atoi(m[5]),
		ContextSwitches: uint32(misc.FindNumInRegexGroup(regexCtxt, s, 1)),
	}, true
}

// InterfaceInfo carries one network interface row's static and counter values.
type InterfaceInfo struct {
	Index                            int
	Name                             string
	MTU                              int
	SpeedBPS                         uint32
	PhysAddress                      net.HardwareAddr
	AdminUp, OperUp                  bool
	InOctets, OutOctets               uint32
	InPackets, OutPackets             uint32
	InErrors, OutErrors               uint32
	InDiscards, OutDiscards           uint32
}

// ReadInterfaceInfo returns the static and counter values for a configured interface name. The
// counters come from /sys/class/net/<name>/statistics/*, the modern equivalent of the ifaddrs/
// ethtool route; MTU, hardware address, and admin/oper state come from net.Interfaces().
func ReadInterfaceInfo(index int, name string) (InterfaceInfo, bool) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return InterfaceInfo{Index: index, Name: name}, false
	}
	info := InterfaceInfo{
		Index:       index,
		Name:        name,
		MTU:         iface.MTU,
		PhysAddress: iface.HardwareAddr,
		AdminUp:     iface.Flags&net.FlagUp != 0,
		OperUp:      iface.Flags&net.FlagRunning != 0,
	}
	base := "/sys/class/net/" + name + "/statistics/"
	readCounter := func(file string) uint32 {
		content, err := os.ReadFile(base + file)
		if err != nil {
			return 0
		}
		v, _ := strconv.ParseUint(strings.TrimSpace(string(content)), 10, 32)
		return uint32(v)
	}
	info.InOctets = readCounter("rx_bytes")
	info.OutOctets = readCounter("tx_bytes")
	info.InPackets = readCounter("rx_packets")
	info.OutPackets = readCounter("tx_packets")
	info.InErrors = readCounter("rx_errors")
	info.OutErrors = readCounter("tx_errors")
	info.InDiscards = readCounter("rx_dropped")
	info.OutDiscards = readCounter("tx_dropped")
	if speed, err := os.ReadFile("/sys/class/net/" + name + "/speed"); err == nil {
		if mbps, err := strconv.ParseInt(strings.TrimSpace(string(speed)), 10, 64); err == nil && mbps > 0 {
			info.SpeedBPS = uint32(mbps * 1_000_000)
		}
	}
	return info, true
}
