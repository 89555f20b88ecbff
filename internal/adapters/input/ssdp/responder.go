// Package ssdp answers the UPnP discovery queries voice assistants use to
// find a Hue bridge, and periodically announces the bridge.
package ssdp

import (
	"context"
	"domoticz-hue-emulator/internal/infrastructure/metrics"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/net/ipv4"
	"golang.org/x/sync/errgroup"
)

const DefaultGroup = "239.255.255.250:1900"

const (
	readRetryMin = 50 * time.Millisecond
	readRetryMax = 5 * time.Second
)

// Logger is the logging interface the responder needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type Config struct {
	Location string // URL of description.xml
	UUID     string
	BridgeID string

	// Group is joined when it is a multicast address, and receives NOTIFY
	// messages every NotifyInterval. Nil disables both.
	Group          *net.UDPAddr
	NotifyInterval time.Duration
	Interface      string // Empty joins on every multicast interface
}

type Responder struct {
	cfg     Config
	logger  Logger
	metrics *metrics.Metrics
}

func NewResponder(cfg Config) *Responder {
	return &Responder{cfg: cfg, logger: noopLogger{}}
}

// SetLogger sets the logger for the responder.
func (r *Responder) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	r.logger = logger
}

func (r *Responder) SetMetrics(m *metrics.Metrics) {
	r.metrics = m
}

// Listen opens the UDP socket the responder reads from.
func Listen(addr string) (net.PacketConn, error) {
	conn, err := net.ListenPacket("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("ssdp listen %s: %w", addr, err)
	}
	return conn, nil
}

// Serve answers searches on conn until ctx is done and then closes it.
func (r *Responder) Serve(ctx context.Context, conn net.PacketConn) error {
	if r.cfg.Group != nil && r.cfg.Group.IP.IsMulticast() {
		if err := r.join(ipv4.NewPacketConn(conn)); err != nil {
			conn.Close()
			return err
		}
	}
	announce := r.cfg.Group != nil && r.cfg.NotifyInterval > 0

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.readLoop(gctx, conn)
	})
	if announce {
		g.Go(func() error {
			r.notifyLoop(gctx, conn)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		if announce {
			r.announce(conn, "ssdp:byebye")
		}
		return conn.Close()
	})

	r.logger.Info("ssdp responder started", "addr", conn.LocalAddr().String(), "location", r.cfg.Location)
	err := g.Wait()
	r.logger.Info("ssdp responder stopped")
	return err
}

func (r *Responder) join(pc *ipv4.PacketConn) error {
	group := &net.UDPAddr{IP: r.cfg.Group.IP}
	if r.cfg.Interface != "" {
		ifi, err := net.InterfaceByName(r.cfg.Interface)
		if err != nil {
			return fmt.Errorf("ssdp interface %s: %w", r.cfg.Interface, err)
		}
		if err := pc.JoinGroup(ifi, group); err != nil {
			return fmt.Errorf("ssdp join %s on %s: %w", group.IP, ifi.Name, err)
		}
		if err := pc.SetMulticastInterface(ifi); err != nil {
			r.logger.Warn("setting multicast interface failed", "interface", ifi.Name, "error", err)
		}
		return nil
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return fmt.Errorf("ssdp interfaces: %w", err)
	}
	joined := 0
	for i := range ifaces {
		ifi := &ifaces[i]
		if ifi.Flags&net.FlagUp == 0 || ifi.Flags&net.FlagMulticast == 0 {
			continue
		}
		if err := pc.JoinGroup(ifi, group); err != nil {
			r.logger.Debug("ssdp join skipped", "interface", ifi.Name, "error", err)
			continue
		}
		joined++
	}
	if joined == 0 {
		if err := pc.JoinGroup(nil, group); err != nil {
			return fmt.Errorf("ssdp join %s: %w", group.IP, err)
		}
	}
	return nil
}

// readLoop only returns once conn is closed. Other read errors are logged
// and retried with a growing pause.
func (r *Responder) readLoop(ctx context.Context, conn net.PacketConn) error {
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = readRetryMin
	retry.MaxInterval = readRetryMax
	retry.Reset()

	buf := make([]byte, 2048)
	for {
		n, src, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			wait := retry.NextBackOff()
			r.logger.Warn("ssdp read failed", "error", err, "retry_in", wait)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
			}
			continue
		}
		retry.Reset()

		st, err := parseSearch(buf[:n])
		if err != nil {
			continue
		}
		matches := r.match(st)
		if len(matches) == 0 {
			continue
		}
		r.logger.Debug("ssdp search", "from", src.String(), "st", st)
		for _, t := range matches {
			if _, err := conn.WriteTo(r.response(t), src); err != nil {
				r.logger.Warn("ssdp reply failed", "to", src.String(), "error", err)
				continue
			}
			r.metrics.SSDPMessage("response")
		}
	}
}

func (r *Responder) notifyLoop(ctx context.Context, conn net.PacketConn) {
	ticker := time.NewTicker(r.cfg.NotifyInterval)
	defer ticker.Stop()

	r.announce(conn, "ssdp:alive")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.announce(conn, "ssdp:alive")
		}
	}
}

func (r *Responder) announce(conn net.PacketConn, nts string) {
	for _, t := range r.targets() {
		if _, err := conn.WriteTo(r.notify(t, nts), r.cfg.Group); err != nil {
			r.logger.Warn("ssdp notify failed", "nts", nts, "error", err)
			return
		}
		r.metrics.SSDPMessage("notify")
	}
}

func (r *Responder) groupAddr() string {
	if r.cfg.Group != nil && r.cfg.Group.IP.IsMulticast() {
		return r.cfg.Group.String()
	}
	return DefaultGroup
}
