/*
Package reactor implements the agent's request dispatcher: a UDP listener, a TCP listener with
a bounded, LRU-evicting client table, and a periodic MIB refresh. The C original drives all of
this from a single select() loop; this package instead models the same loop invariant — read,
refresh, dispatch, garbage-collect — as a goroutine per socket plus an explicit, mutex-guarded
client table, following the top-level context struct the design notes recommend in place of
module globals. Shutdown is driven by the caller cancelling the context and calling Stop; the
package keeps no signal-set quit flag.
*/
package reactor

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/coreboard/snmpagentd/internal/config"
	"github.com/coreboard/snmpagentd/internal/mib"
	"github.com/coreboard/snmpagentd/internal/request"
	"github.com/coreboard/snmpagentd/internal/response"
	"github.com/coreboard/snmpagentd/lalog"
	"github.com/coreboard/snmpagentd/misc"
)

// MaxPacketSize bounds a client's receive/send buffer, matching the wire protocol's maximum
// message size.
const MaxPacketSize = 2048

// MaxClients bounds the TCP client table; the (MaxClients+1)th concurrent connection evicts
// the least-recently-active one.
const MaxClients = 16

// MinFramedBytes is the fewest bytes PacketComplete needs buffered before it attempts to read
// the outermost SEQUENCE's tag and length.
const MinFramedBytes = 25

// FrameStatus classifies how much of a streamed SNMP message is currently buffered.
type FrameStatus int

const (
	FrameIncomplete FrameStatus = iota
	FrameComplete
	FrameMalformed
)

// PacketComplete implements the TCP framing predicate: once at least MinFramedBytes are
// buffered, it decodes the outermost SEQUENCE's tag and length and reports whether exactly
// that many bytes (header included) are present yet.
func PacketComplete(buf []byte) FrameStatus {
	if len(buf) < MinFramedBytes {
		return FrameIncomplete
	}
	if buf[0] != 0x30 {
		return FrameMalformed
	}
	first := buf[1]
	var headerSize, declaredLen int
	switch {
	case first&0x80 == 0:
		headerSize = 2
		declaredLen = int(first)
	default:
		n := int(first & 0x7f)
		if n == 0 || n > 2 {
			return FrameMalformed
		}
		if len(buf) < 2+n {
			return FrameIncomplete
		}
		headerSize = 2 + n
		for i := 0; i < n; i++ {
			declaredLen = declaredLen<<8 | int(buf[2+i])
		}
	}
	total := headerSize + declaredLen
	switch {
	case len(buf) < total:
		return FrameIncomplete
	case len(buf) == total:
		return FrameComplete
	default:
		return FrameMalformed
	}
}

// Metrics are the prometheus collectors the reactor exposes alongside the teacher-style
// misc.Stats duration counters.
type Metrics struct {
	RequestDuration prometheus.Histogram
	RequestErrors   prometheus.Counter
}

// NewMetrics registers a fresh set of collectors against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "snmpagentd_request_duration_seconds",
			Help: "Time spent handling one decoded SNMP request.",
		}),
		RequestErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "snmpagentd_request_errors_total",
			Help: "Requests dropped for malformed input or encoding failure.",
		}),
	}
	reg.MustRegister(m.RequestDuration, m.RequestErrors)
	return m
}

// Daemon owns the listening sockets, the TCP client table, and the MIB it answers queries
// against. Configuration is read-only for the daemon's lifetime, per §5.
type Daemon struct {
	Config  *config.Config
	MIB     *mib.MIB
	Logger  *lalog.Logger
	Metrics *Metrics

	rateLimit *misc.RateLimit
	durations *misc.Stats

	udpConn *net.UDPConn
	tcpLis  net.Listener

	clients  *clientTable
	refresh  *misc.Periodic
	lastFull time.Time
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New builds a Daemon ready to Start. It does not open any socket yet.
func New(cfg *config.Config, m *mib.MIB, logger *lalog.Logger, metrics *Metrics) *Daemon {
	return &Daemon{
		Config:  cfg,
		MIB:     m,
		Logger:  logger,
		Metrics: metrics,
		rateLimit: &misc.RateLimit{
			MaxCount: 100,
			UnitSecs: 1,
			Logger:   lalog.DefaultLogger,
		},
		durations: misc.NewStats(),
		clients:   newClientTable(),
	}
}

// ErrIoFailure signals a fatal socket/listener failure; per §7 the process must exit(2) when
// this reaches main.
var ErrIoFailure = errors.New("reactor: fatal I/O failure")

// Start opens the UDP and TCP sockets, launches their serving goroutines plus the periodic MIB
// refresh, and returns once both sockets are listening. Stop shuts everything down.
func (d *Daemon) Start(ctx context.Context) error {
	d.rateLimit.Initialise()
	network := "udp4"
	tcpNetwork := "tcp4"
	if d.Config.AddressFamily == config.IPv6 {
		network = "udp6"
		tcpNetwork = "tcp6"
	}
	udpAddr, err := net.ResolveUDPAddr(network, portAddr(d.Config.UDPPort))
	if err != nil {
		return ErrIoFailure
	}
	udpConn, err := net.ListenUDP(network, udpAddr)
	if err != nil {
		return ErrIoFailure
	}
	d.udpConn = udpConn

	tcpLis, err := net.Listen(tcpNetwork, portAddr(d.Config.TCPPort))
	if err != nil {
		udpConn.Close()
		return ErrIoFailure
	}
	d.tcpLis = tcpLis

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.lastFull = time.Now()

	d.wg.Add(2)
	go d.serveUDP(runCtx)
	go d.serveTCP(runCtx)

	d.refresh = &misc.Periodic{
		LogActorName: "mib-refresh",
		Interval:     time.Duration(d.Config.TimeoutSec*10) * time.Millisecond,
		MaxInt:       1,
		Func:         d.refreshTick,
	}
	if err := d.refresh.Start(runCtx); err != nil {
		return err
	}
	return nil
}

func portAddr(port int) string {
	return net.JoinHostPort("", strconv.Itoa(port))
}

func (d *Daemon) refreshTick(ctx context.Context, round, i int) error {
	full := time.Since(d.lastFull) >= time.Duration(d.Config.TimeoutSec)*time.Second
	d.MIB.Update(full)
	if full {
		d.lastFull = time.Now()
	}
	return nil
}

// Stop closes both sockets, cancels the periodic refresh, and waits for the serving goroutines
// to return.
func (d *Daemon) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.refresh != nil {
		d.refresh.Stop()
	}
	if d.udpConn != nil {
		d.udpConn.Close()
	}
	if d.tcpLis != nil {
		d.tcpLis.Close()
	}
	d.clients.closeAll()
	d.wg.Wait()
}

func (d *Daemon) serveUDP(ctx context.Context) {
	defer d.wg.Done()
	buf := make([]byte, MaxPacketSize)
	for {
		n, addr, err := d.udpConn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if isClosedErr(err) {
				return
			}
			d.Logger.Warning(addr, err, "udp read failed")
			continue
		}
		if !d.rateLimit.Add(addr.IP.String(), true) {
			continue
		}
		packet := make([]byte, n)
		copy(packet, buf[:n])
		respBuf, respLen, ok := d.dispatch(packet, addr.String())
		if !ok {
			continue
		}
		if _, err := d.udpConn.WriteToUDP(respBuf[:respLen], addr); err != nil {
			d.Logger.Warning(addr, err, "udp write failed")
		}
	}
}

func isClosedErr(err error) bool {
	return err != nil && (errors.Is(err, net.ErrClosed))
}

// dispatch runs the decode-handle-encode chain common to both transports, logging and
// returning ok=false on any failure so the caller drops the datagram or closes the connection.
func (d *Daemon) dispatch(packet []byte, remote string) (respBuf []byte, respLen int, ok bool) {
	start := time.Now()
	defer func() {
		d.durations.Trigger(float64(time.Since(start).Nanoseconds()))
		if d.Metrics != nil {
			d.Metrics.RequestDuration.Observe(time.Since(start).Seconds())
		}
	}()
	req, err := request.Decode(packet)
	if err != nil {
		d.Logger.Warning(remote, err, "malformed request")
		if d.Metrics != nil {
			d.Metrics.RequestErrors.Inc()
		}
		return nil, 0, false
	}
	resp := response.Handle(d.MIB.Store, req, d.Config.Community, d.Config.Auth)
	if resp == nil {
		return nil, 0, false
	}
	if resp.Overflowed() {
		d.Logger.Warning(remote, nil, "response exceeded table limit, dropping")
		if d.Metrics != nil {
			d.Metrics.RequestErrors.Inc()
		}
		return nil, 0, false
	}
	out := make([]byte, MaxPacketSize)
	n, err := response.Encode(out, int32(req.Version), req.Community, resp)
	if err != nil {
		d.Logger.Warning(remote, err, "failed to encode response")
		if d.Metrics != nil {
			d.Metrics.RequestErrors.Inc()
		}
		return nil, 0, false
	}
	return out, n, true
}
