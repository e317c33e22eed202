package reactor

import (
	"context"
	"net"
	"strconv"
	"sync"

	"github.com/coreboard/snmpagentd/datastruct"
)

// tcpClient is one tracked TCP connection. The receive buffer itself lives on
// serveTCPClient's goroutine stack, not here; the table only needs the socket to close it on
// eviction or shutdown.
type tcpClient struct {
	conn net.Conn
}

// clientTable is the bounded set of at most MaxClients TCP client records, evicting the
// least-recently-active connection on overflow exactly as §4.H's LRU rule requires — grounded
// on the teacher's datastruct.LeastRecentlyUsedBuffer rather than reproducing the original's
// known off-by-one bug in finding the oldest client.
type clientTable struct {
	mu      sync.Mutex
	lru     *datastruct.LeastRecentlyUsedBuffer
	clients map[string]*tcpClient
}

func newClientTable() *clientTable {
	return &clientTable{
		lru:     datastruct.NewLeastRecentlyUsedBuffer(MaxClients),
		clients: make(map[string]*tcpClient),
	}
}

// accept registers a newly accepted connection, evicting and closing the least-recently-active
// existing client if the table is already full.
func (t *clientTable) accept(id string, conn net.Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, evicted := t.lru.Add(id)
	if evicted != "" {
		if victim, ok := t.clients[evicted]; ok {
			victim.conn.Close()
			delete(t.clients, evicted)
		}
	}
	t.clients[id] = &tcpClient{conn: conn}
}

// touch records activity for id, keeping it from being the next LRU eviction victim.
func (t *clientTable) touch(id string) {
	t.lru.Add(id)
}

// remove closes and forgets the client identified by id, as the per-client state machine does
// on disconnect or a fatal write/dispatch failure.
func (t *clientTable) remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.clients[id]; ok {
		c.conn.Close()
		delete(t.clients, id)
	}
	t.lru.Remove(id)
}

// len reports the number of currently tracked TCP clients.
func (t *clientTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.clients)
}

// closeAll closes every tracked connection, used on daemon shutdown to unblock the per-client
// read loops that would otherwise wait forever on a blocking conn.Read.
func (t *clientTable) closeAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, c := range t.clients {
		c.conn.Close()
		delete(t.clients, id)
	}
}

// serveTCP accepts connections until ctx is cancelled or the listener closes, handling each
// connection in its own goroutine. §4.H's cooperative single-thread model becomes one
// goroutine per connection here; ordering within a connection — at most one outstanding
// response, strict request-then-response order — is preserved because each connection's
// goroutine processes its own byte stream sequentially.
func (d *Daemon) serveTCP(ctx context.Context) {
	defer d.wg.Done()
	for {
		conn, err := d.tcpLis.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if isClosedErr(err) {
				return
			}
			d.Logger.Warning("", err, "tcp accept failed")
			continue
		}
		remote := conn.RemoteAddr().String()
		if !d.rateLimit.Add(remote, true) {
			conn.Close()
			continue
		}
		id := remote + "#" + connSeq()
		d.clients.accept(id, conn)
		d.wg.Add(1)
		go d.serveTCPClient(ctx, id, conn)
	}
}

var connCounter uint64
var connCounterMu sync.Mutex

// connSeq returns a small monotonically increasing suffix so two connections from the same
// remote address never collide as client-table keys.
func connSeq() string {
	connCounterMu.Lock()
	defer connCounterMu.Unlock()
	connCounter++
	return uintToString(connCounter)
}

func uintToString(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// serveTCPClient implements the per-client state machine of §4.H: accumulate bytes until
// PacketComplete reports a full message, dispatch it, write the response, and reset the
// buffer for the next request. Any read error, malformed framing, or write failure closes the
// connection and removes it from the table.
func (d *Daemon) serveTCPClient(ctx context.Context, id string, conn net.Conn) {
	defer d.wg.Done()
	defer d.clients.remove(id)
	readBuf := make([]byte, MaxPacketSize)
	var buffered []byte
	remote := conn.RemoteAddr().String()
	for {
		n, err := conn.Read(readBuf)
		if n > 0 {
			buffered = append(buffered, readBuf[:n]...)
			d.clients.touch(id)
		}
		if err != nil {
			return
		}
		if n == 0 {
			return
		}
		for {
			status := PacketComplete(buffered)
			if status == FrameIncomplete {
				break
			}
			if status == FrameMalformed {
				d.Logger.Warning(remote, nil, "malformed framing, closing connection")
				return
			}
			respBuf, respLen, ok := d.dispatch(buffered, remote)
			buffered = nil
			if !ok {
				return
			}
			if _, err := conn.Write(respBuf[:respLen]); err != nil {
				d.Logger.Warning(remote, err, "tcp write failed")
				return
			}
			break
		}
		if len(buffered) > MaxPacketSize {
			d.Logger.Warning(remote, nil, "buffered request exceeds maximum packet size")
			return
		}
	}
}
