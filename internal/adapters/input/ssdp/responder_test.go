package ssdp

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUUID = "2f402f80-da50-11e1-9b23-001788aabbcc"

func search(st string) string {
	return "M-SEARCH * HTTP/1.1\r\n" +
		"HOST: 239.255.255.250:1900\r\n" +
		"MAN: \"ssdp:discover\"\r\n" +
		"MX: 3\r\n" +
		"ST: " + st + "\r\n\r\n"
}

func TestParseSearch(t *testing.T) {
	st, err := parseSearch([]byte(search("upnp:rootdevice")))
	require.NoError(t, err)
	assert.Equal(t, "upnp:rootdevice", st)

	st, err = parseSearch([]byte("m-search * HTTP/1.1\r\nst: ssdp:all\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "ssdp:all", st)

	for name, msg := range map[string]string{
		"notify":    "NOTIFY * HTTP/1.1\r\nNT: upnp:rootdevice\r\n\r\n",
		"no st":     "M-SEARCH * HTTP/1.1\r\nMAN: \"ssdp:discover\"\r\n\r\n",
		"wrong man": "M-SEARCH * HTTP/1.1\r\nMAN: \"ssdp:other\"\r\nST: ssdp:all\r\n\r\n",
		"empty":     "",
		"binary":    "\x00\x01\x02",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := parseSearch([]byte(msg))
			assert.Error(t, err)
		})
	}
}

func TestMatch(t *testing.T) {
	r := NewResponder(Config{UUID: testUUID})

	assert.Len(t, r.match("ssdp:all"), 3)
	assert.Len(t, r.match("UPNP:RootDevice"), 1)
	basic := r.match("urn:schemas-upnp-org:device:Basic:1")
	require.Len(t, basic, 1)
	assert.Equal(t, "uuid:"+testUUID+"::urn:schemas-upnp-org:device:basic:1", basic[0].usn)
	assert.Len(t, r.match("uuid:"+testUUID), 1)
	assert.Empty(t, r.match("urn:schemas-upnp-org:device:MediaRenderer:1"))
}

type harness struct {
	client *net.UDPConn
	server net.Addr
	done   chan error
	cancel context.CancelFunc
}

func start(t *testing.T, cfg Config) *harness {
	t.Helper()
	conn, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	return serve(t, cfg, conn)
}

func serve(t *testing.T, cfg Config, conn net.PacketConn) *harness {
	t.Helper()
	client, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	if cfg.Group == nil && cfg.NotifyInterval > 0 {
		cfg.Group = client.LocalAddr().(*net.UDPAddr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{client: client, server: conn.LocalAddr(), done: make(chan error, 1), cancel: cancel}
	go func() { h.done <- NewResponder(cfg).Serve(ctx, conn) }()
	t.Cleanup(func() {
		cancel()
		<-h.done
	})
	return h
}

func (h *harness) send(t *testing.T, msg string) {
	t.Helper()
	_, err := h.client.WriteTo([]byte(msg), h.server)
	require.NoError(t, err)
}

// read returns the next datagram, or "" after the timeout.
func (h *harness) read(t *testing.T, timeout time.Duration) string {
	t.Helper()
	require.NoError(t, h.client.SetReadDeadline(time.Now().Add(timeout)))
	buf := make([]byte, 2048)
	n, _, err := h.client.ReadFrom(buf)
	if err != nil {
		return ""
	}
	return string(buf[:n])
}

func TestResponder_AnswersSearch(t *testing.T) {
	h := start(t, Config{
		Location: "http://192.168.1.10:80/description.xml",
		UUID:     testUUID,
		BridgeID: "001788FFFEAABBCC",
	})

	h.send(t, search("urn:schemas-upnp-org:device:basic:1"))
	reply := h.read(t, 2*time.Second)
	require.NotEmpty(t, reply)
	assert.True(t, strings.HasPrefix(reply, "HTTP/1.1 200 OK\r\n"))
	assert.Contains(t, reply, "LOCATION: http://192.168.1.10:80/description.xml\r\n")
	assert.Contains(t, reply, "hue-bridgeid: 001788FFFEAABBCC\r\n")
	assert.Contains(t, reply, "ST: urn:schemas-upnp-org:device:basic:1\r\n")
	assert.Contains(t, reply, "USN: uuid:"+testUUID+"::urn:schemas-upnp-org:device:basic:1\r\n")
	assert.True(t, strings.HasSuffix(reply, "\r\n\r\n"))
}

func TestResponder_AllGetsEveryTarget(t *testing.T) {
	h := start(t, Config{Location: "http://x/description.xml", UUID: testUUID})

	h.send(t, search("ssdp:all"))
	var sts []string
	for i := 0; i < 3; i++ {
		reply := h.read(t, 2*time.Second)
		require.NotEmpty(t, reply)
		for _, line := range strings.Split(reply, "\r\n") {
			if st, ok := strings.CutPrefix(line, "ST: "); ok {
				sts = append(sts, st)
			}
		}
	}
	assert.ElementsMatch(t, []string{"upnp:rootdevice", "uuid:" + testUUID, "urn:schemas-upnp-org:device:basic:1"}, sts)
}

func TestResponder_IgnoresUnrelatedTraffic(t *testing.T) {
	h := start(t, Config{Location: "http://x/description.xml", UUID: testUUID})

	h.send(t, "garbage")
	h.send(t, search("urn:dial-multiscreen-org:service:dial:1"))
	assert.Empty(t, h.read(t, 200*time.Millisecond))

	h.send(t, search("upnp:rootdevice"))
	assert.Contains(t, h.read(t, 2*time.Second), "ST: upnp:rootdevice\r\n")
}

func TestResponder_Notifies(t *testing.T) {
	h := start(t, Config{
		Location:       "http://x/description.xml",
		UUID:           testUUID,
		NotifyInterval: time.Hour,
	})

	for i := 0; i < 3; i++ {
		msg := h.read(t, 2*time.Second)
		require.NotEmpty(t, msg)
		assert.True(t, strings.HasPrefix(msg, "NOTIFY * HTTP/1.1\r\n"))
		assert.Contains(t, msg, "NTS: ssdp:alive\r\n")
	}

	h.cancel()
	require.NoError(t, <-h.done)
	h.done <- nil
	assert.Contains(t, h.read(t, 2*time.Second), "NTS: ssdp:byebye\r\n")
}

func TestResponder_StopsOnCancel(t *testing.T) {
	conn, err := Listen("127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewResponder(Config{UUID: testUUID}).Serve(ctx, conn) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("responder did not stop")
	}
}

// flakyConn fails its first reads with an error that is not a timeout.
type flakyConn struct {
	net.PacketConn
	mu       sync.Mutex
	failures int
}

func (c *flakyConn) ReadFrom(b []byte) (int, net.Addr, error) {
	c.mu.Lock()
	fail := c.failures > 0
	if fail {
		c.failures--
	}
	c.mu.Unlock()
	if fail {
		return 0, nil, errors.New("read: connection refused")
	}
	return c.PacketConn.ReadFrom(b)
}

func TestResponder_SurvivesReadErrors(t *testing.T) {
	conn, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	h := serve(t, Config{UUID: testUUID}, &flakyConn{PacketConn: conn, failures: 3})

	h.send(t, search("upnp:rootdevice"))
	reply := h.read(t, 5*time.Second)
	require.NotEmpty(t, reply, "responder stopped answering after read errors")
	assert.Contains(t, reply, "ST: upnp:rootdevice\r\n")

	select {
	case err := <-h.done:
		h.done <- err
		t.Fatalf("responder returned early: %v", err)
	default:
	}
}
