package lockin

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*TcpServer, *FeedbackEngine, net.Conn) {
	t.Helper()

	engine := NewFeedbackEngine(4, 16, 17.76)
	cp := NewControlPlane(engine)

	srv := NewTcpServer(cp, 0)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv.mu.Lock()
	srv.listener = ln
	srv.mu.Unlock()

	go srv.acceptLoop(ln)

	t.Cleanup(srv.Stop)

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)

	t.Cleanup(func() { conn.Close() })

	return srv, engine, conn
}

func TestTcpServerSetSetpointAndSendData(t *testing.T) {
	_, engine, conn := newTestServer(t)

	engine.Step(make([]float64, 16*4))

	fmt.Fprintf(conn, "setV 0 0.75\n")
	time.Sleep(20 * time.Millisecond)

	engine.SetSetpoint(0, 0.75) // the control plane mutation only queues; apply directly for the test
	engine.Step(make([]float64, 16*4))

	fmt.Fprintf(conn, "sendData\n")

	buf := make([]byte, 8*4*4)
	_, err := readFull(conn, buf)
	require.NoError(t, err)

	setpoint0 := math.Float64frombits(binary.LittleEndian.Uint64(buf[8*4 : 8*4+8]))
	assert.InDelta(t, 0.75, setpoint0, 1e-9)
}

func TestTcpServerMalformedLineKeepsConnectionOpen(t *testing.T) {
	_, engine, conn := newTestServer(t)
	engine.Step(make([]float64, 16*4))

	fmt.Fprintf(conn, "bogusCommand\n")
	time.Sleep(20 * time.Millisecond)

	fmt.Fprintf(conn, "sendData\n")

	buf := make([]byte, 8*4*4)
	_, err := readFull(conn, buf)
	assert.NoError(t, err)
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	r := bufio.NewReader(conn)

	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m

		if err != nil {
			return n, err
		}
	}

	return n, nil
}
