package misc

import (
	"io/ioutil"
	"regexp"
	"strconv"
	"strings"
)

var (
	regexVmRss           = regexp.MustCompile(`VmRSS:\s*(\d+)\s*kB`)
	regexMemAvailable    = regexp.MustCompile(`MemAvailable:\s*(\d+)\s*kB`)
	regexMemTotal        = regexp.MustCompile(`MemTotal:\s*(\d+)\s*kB`)
	regexMemFree         = regexp.MustCompile(`MemFree:\s*(\d+)\s*kB`)
	regexTotalUptimeSec  = regexp.MustCompile(`(\d+).*`)
)

// FindNumInRegexGroup uses regex to parse input string, and returns an integer parsed from the
// specified capture group, or 0 if there is no match / no integer.
func FindNumInRegexGroup(numRegex *regexp.Regexp, input string, groupNum int) int {
	match := numRegex.FindStringSubmatch(input)
	if match == nil || len(match) <= groupNum {
		return 0
	}
	val, err := strconv.Atoi(match[groupNum])
	if err == nil {
		return val
	}
	return 0
}

// GetProgramMemoryUsageKB returns the RSS memory usage of this process, or 0 if undeterminable.
func GetProgramMemoryUsageKB() int {
	statusContent, err := ioutil.ReadFile("/proc/self/status")
	if err != nil {
		return 0
	}
	return FindNumInRegexGroup(regexVmRss, string(statusContent), 1)
}

// GetSystemMemoryUsageKB returns used and total operating system memory from /proc/meminfo, or
// zeroes if undeterminable.
func GetSystemMemoryUsageKB() (usedKB int, totalKB int) {
	infoContent, err := ioutil.ReadFile("/proc/meminfo")
	if err != nil {
		return 0, 0
	}
	totalKB = FindNumInRegexGroup(regexMemTotal, string(infoContent), 1)
	available := FindNumInRegexGroup(regexMemAvailable, string(infoContent), 1)
	if available == 0 {
		usedKB = totalKB - FindNumInRegexGroup(regexMemFree, string(infoContent), 1)
	} else {
		usedKB = totalKB - available
	}
	return
}

// GetSystemLoad returns the content of /proc/loadavg, or an empty string if it cannot be read.
func GetSystemLoad() string {
	content, err := ioutil.ReadFile("/proc/loadavg")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(content))
}

// GetSystemUptimeSec returns system uptime in seconds from /proc/uptime, or 0 if undeterminable.
func GetSystemUptimeSec() int {
	content, err := ioutil.ReadFile("/proc/uptime")
	if err != nil {
		return 0
	}
	return FindNumInRegexGroup(regexTotalUptimeSec, string(content), 1)
}
