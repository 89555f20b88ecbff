// Package mdns advertises the bridge as _hue._tcp, which newer Hue apps
// browse instead of using SSDP.
package mdns

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/grandcat/zeroconf"
)

const (
	Service = "_hue._tcp"
	Domain  = "local."
)

type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

type Config struct {
	BridgeID  string
	ModelID   string
	Port      int
	Interface string // Empty advertises on every interface
}

// registerFunc matches zeroconf.Register.
type registerFunc func(instance, service, domain string, port int, text []string, ifaces []net.Interface) (shutdowner, error)

type shutdowner interface {
	Shutdown()
}

type Announcer struct {
	cfg      Config
	logger   Logger
	register registerFunc
}

func NewAnnouncer(cfg Config) *Announcer {
	return &Announcer{
		cfg:    cfg,
		logger: noopLogger{},
		register: func(instance, service, domain string, port int, text []string, ifaces []net.Interface) (shutdowner, error) {
			return zeroconf.Register(instance, service, domain, port, text, ifaces)
		},
	}
}

func (a *Announcer) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	a.logger = logger
}

// Instance is the service instance name a real bridge uses.
func (a *Announcer) Instance() string {
	id := strings.ToUpper(a.cfg.BridgeID)
	if len(id) > 6 {
		id = id[len(id)-6:]
	}
	return "Philips Hue - " + id
}

// TXT returns the records the Hue apps read.
func (a *Announcer) TXT() []string {
	return []string{
		"bridgeid=" + strings.ToLower(a.cfg.BridgeID),
		"modelid=" + a.cfg.ModelID,
	}
}

// Serve keeps the advertisement up until ctx is done.
func (a *Announcer) Serve(ctx context.Context) error {
	var ifaces []net.Interface
	if a.cfg.Interface != "" {
		ifi, err := net.InterfaceByName(a.cfg.Interface)
		if err != nil {
			return fmt.Errorf("mdns interface %s: %w", a.cfg.Interface, err)
		}
		ifaces = []net.Interface{*ifi}
	}

	srv, err := a.register(a.Instance(), Service, Domain, a.cfg.Port, a.TXT(), ifaces)
	if err != nil {
		return fmt.Errorf("mdns register: %w", err)
	}
	a.logger.Info("mdns advertising", "instance", a.Instance(), "service", Service, "port", a.cfg.Port)

	<-ctx.Done()
	srv.Shutdown()
	a.logger.Info("mdns stopped")
	return nil
}
