package misc

import (
	"net"
	"strconv"
	"time"

	"github.com/coreboard/snmpagentd/lalog"
)

// ProbePort makes at most 100 attempts at contacting the TCP server specified by its host and
// port, for up to the specified maximum duration. If the TCP server accepts a connection, the
// connection is immediately closed and the function returns true. If after the maximum duration
// the TCP server still has not accepted a connection, the function returns false and logs a
// warning.
func ProbePort(maxDuration time.Duration, host string, port int) bool {
	maxRounds := 100
	start := time.Now()
	for i := 0; i < maxRounds; i++ {
		client, err := net.Dial("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
		if err == nil {
			_ = client.Close()
			return true
		}
		if time.Since(start) > maxDuration {
			break
		}
		time.Sleep(maxDuration / time.Duration(maxRounds))
	}
	lalog.DefaultLogger.Warning(net.JoinHostPort(host, strconv.Itoa(port)), nil, "did not respond within %s", maxDuration)
	return false
}
