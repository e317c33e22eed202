// Command snmpagentd is a read-only SNMP v1/v2c agent serving the system, interfaces, and
// host-resources MIB subtrees from live /proc and /sys telemetry.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"os/user"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coreboard/snmpagentd/internal/config"
	"github.com/coreboard/snmpagentd/internal/mib"
	"github.com/coreboard/snmpagentd/internal/reactor"
	"github.com/coreboard/snmpagentd/lalog"
)

var logger = &lalog.Logger{ComponentName: "snmpagentd", ComponentID: []lalog.LoggerIDField{{Key: "PID", Value: os.Getpid()}}}

func main() {
	cmd, _ := newRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "snmpagentd:", err)
		os.Exit(1)
	}
}

// run builds the MIB and reactor from cfg, writes the PID file, and blocks until a termination
// signal arrives. It returns a non-nil error only for conditions the caller should treat as
// exit code 1 (argument/config); a failure to open the listening sockets or to drop
// privileges exits the process directly with code 2, matching §6's exit code table.
func run(cfg *config.Config) error {
	m, err := mib.Build(cfg, logger)
	if err != nil {
		return fmt.Errorf("building MIB: %w", err)
	}

	metricsRegistry := prometheus.NewRegistry()
	metrics := reactor.NewMetrics(metricsRegistry)
	if err := serveMetrics(metricsRegistry); err != nil {
		logger.Warning("", err, "metrics endpoint disabled")
	}

	daemon := reactor.New(cfg, m, logger, metrics)
	ctx, cancel := context.WithCancel(context.Background())
	if err := daemon.Start(ctx); err != nil {
		logger.Warning("", err, "failed to start listening sockets")
		os.Exit(2)
	}

	if pidErr := writePIDFile(); pidErr != nil {
		logger.Warning("", pidErr, "failed to write PID file")
	}
	defer removePIDFile()

	if cfg.DropPrivsUser != "" {
		if dropErr := dropPrivileges(cfg.DropPrivsUser); dropErr != nil {
			logger.Warning("", dropErr, "failed to drop privileges to user %s", cfg.DropPrivsUser)
			os.Exit(2)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	logger.Info("", nil, "listening on UDP/TCP port %d/%d", cfg.UDPPort, cfg.TCPPort)
	<-sigCh
	logger.Info("", nil, "received termination signal, shutting down")
	cancel()
	daemon.Stop()
	return nil
}

// serveMetrics exposes reg on a loopback-only HTTP listener, the way a long-running daemon
// normally would for scraping; a failure to bind the port is non-fatal, matching §7's rule
// that ambient features never bring down the agent.
func serveMetrics(reg *prometheus.Registry) error {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		_ = http.Serve(lis, mux)
	}()
	logger.Info("", nil, "metrics available at http://%s/metrics", lis.Addr())
	return nil
}

func pidFilePath() string {
	return "/run/snmpagentd.pid"
}

var pidFile string

func writePIDFile() error {
	pidFile = pidFilePath()
	return os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644)
}

func removePIDFile() {
	if pidFile != "" {
		_ = os.Remove(pidFile)
	}
}

// dropPrivileges switches the process's effective and real UID/GID to userName's, called after
// the listening sockets are already bound.
func dropPrivileges(userName string) error {
	u, err := user.Lookup(userName)
	if err != nil {
		return err
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return err
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return err
	}
	if err := syscall.Setgid(gid); err != nil {
		return err
	}
	return syscall.Setuid(uid)
}
