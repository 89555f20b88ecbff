// Package emulator wires the bridge together and runs its I/O loops.
package emulator

import (
	"context"
	"domoticz-hue-emulator/internal/adapters/input/http"
	"domoticz-hue-emulator/internal/adapters/input/mdns"
	"domoticz-hue-emulator/internal/adapters/input/mqtt"
	"domoticz-hue-emulator/internal/adapters/input/ssdp"
	"domoticz-hue-emulator/internal/adapters/output/domoticz"
	"domoticz-hue-emulator/internal/adapters/output/persistence"
	"domoticz-hue-emulator/internal/domain/model"
	"domoticz-hue-emulator/internal/domain/registry"
	"domoticz-hue-emulator/internal/domain/service"
	"domoticz-hue-emulator/internal/infrastructure/logging"
	"domoticz-hue-emulator/internal/infrastructure/metrics"
	"fmt"
	"net"
	"strconv"

	"golang.org/x/sync/errgroup"
)

const bridgeModelID = "BSB002"

type Emulator struct {
	cfg     *model.Config
	lights  []model.Light
	logger  *logging.Logger
	metrics *metrics.Metrics

	host     net.IP
	identity model.Identity
	backend  *domoticz.Client
	bridge   *service.BridgeService

	httpLn   net.Listener
	ssdpConn net.PacketConn
}

// New resolves the bridge address and identity and builds every component.
// Nothing listens until Listen is called.
func New(ctx context.Context, cfg *model.Config, lights []model.Light, logger *logging.Logger) (*Emulator, error) {
	e := &Emulator{cfg: cfg, lights: lights, logger: logger}
	if cfg.Metrics.Enabled {
		e.metrics = metrics.New()
	}

	var mac net.HardwareAddr
	if cfg.Bridge.IP != "" {
		e.host = net.ParseIP(cfg.Bridge.IP)
		if e.host == nil {
			return nil, fmt.Errorf("%w: bridge.ip %q is not an IP address", model.ErrInvalidConfig, cfg.Bridge.IP)
		}
		mac = hardwareAddrFor(e.host)
	} else {
		ip, hw, err := localAddress()
		if err != nil {
			return nil, err
		}
		e.host, mac = ip, hw
	}

	identities := persistence.NewJSONIdentityRepository(cfg.Bridge.StateFile)
	identity, err := service.LoadIdentity(ctx, identities, mac)
	if err != nil {
		return nil, err
	}
	e.identity = identity

	e.backend = domoticz.NewClient(domoticz.Config{
		URL:          cfg.Backend.URL,
		Username:     cfg.Backend.Username,
		Password:     cfg.Backend.Password,
		Timeout:      cfg.Backend.Timeout,
		RetryBackoff: cfg.Backend.RetryBackoff,
	})
	e.backend.SetLogger(logger.With("component", "domoticz"))
	if e.metrics != nil {
		e.backend.SetObserver(e.metrics)
	}

	e.bridge = service.NewBridgeService(e.backend, identities, registry.New(lights), identity)
	e.bridge.SetLogger(logger.With("component", "bridge"))
	if e.metrics != nil {
		e.bridge.SetObserver(e.metrics)
	}
	return e, nil
}

// Listen binds the HTTP port and the discovery socket. Failing to bind
// either is fatal.
func (e *Emulator) Listen() error {
	ln, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(e.cfg.Bridge.Port)))
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}
	e.httpLn = ln

	if e.cfg.SSDP.Enabled {
		conn, err := ssdp.Listen(e.cfg.SSDP.Listen)
		if err != nil {
			ln.Close()
			return err
		}
		e.ssdpConn = conn
	}
	return nil
}

// HTTPAddr is the bound Hue API address.
func (e *Emulator) HTTPAddr() net.Addr {
	return e.httpLn.Addr()
}

// SSDPAddr is the bound discovery address, nil when discovery is disabled.
func (e *Emulator) SSDPAddr() net.Addr {
	if e.ssdpConn == nil {
		return nil
	}
	return e.ssdpConn.LocalAddr()
}

func (e *Emulator) Identity() model.Identity {
	return e.bridge.Identity()
}

func (e *Emulator) port() int {
	return e.httpLn.Addr().(*net.TCPAddr).Port
}

// Run serves until ctx is done or a loop fails, then stops every loop.
func (e *Emulator) Run(ctx context.Context) error {
	if e.httpLn == nil {
		if err := e.Listen(); err != nil {
			return err
		}
	}
	group, err := groupAddr(e.cfg.SSDP.Group)
	if err != nil {
		return fmt.Errorf("ssdp group: %w", err)
	}
	e.banner()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		e.backend.Start()
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		e.backend.Stop()
		return nil
	})

	api := http.NewServer(e.bridge, http.Options{
		Host:        e.host.String(),
		Port:        e.port(),
		MetricsPath: e.cfg.Metrics.Path,
	})
	api.SetLogger(e.logger.With("component", "http"))
	api.SetMetrics(e.metrics)
	g.Go(func() error {
		return api.Serve(ctx, e.httpLn)
	})

	if e.ssdpConn != nil {
		responder := ssdp.NewResponder(ssdp.Config{
			Location:       fmt.Sprintf("http://%s/description.xml", net.JoinHostPort(e.host.String(), strconv.Itoa(e.port()))),
			UUID:           e.identity.UUID,
			BridgeID:       e.identity.BridgeID,
			Group:          group,
			NotifyInterval: e.cfg.SSDP.NotifyInterval,
			Interface:      e.cfg.Bridge.Interface,
		})
		responder.SetLogger(e.logger.With("component", "ssdp"))
		responder.SetMetrics(e.metrics)
		g.Go(func() error {
			return responder.Serve(ctx, e.ssdpConn)
		})
	}

	if e.cfg.MDNS.Enabled {
		announcer := mdns.NewAnnouncer(mdns.Config{
			BridgeID:  e.identity.BridgeID,
			ModelID:   bridgeModelID,
			Port:      e.port(),
			Interface: e.cfg.Bridge.Interface,
		})
		announcer.SetLogger(e.logger.With("component", "mdns"))
		g.Go(func() error {
			// Discovery still works over SSDP without it.
			if err := announcer.Serve(ctx); err != nil {
				e.logger.Warn("mdns advertisement disabled", "error", err)
			}
			return nil
		})
	}

	if e.cfg.MQTT.Enabled {
		listener := mqtt.NewListener(mqtt.Config{
			Broker:   e.cfg.MQTT.Broker,
			Topic:    e.cfg.MQTT.Topic,
			ClientID: e.cfg.MQTT.ClientID,
			Username: e.cfg.MQTT.Username,
			Password: e.cfg.MQTT.Password,
		}, e.bridge)
		listener.SetLogger(e.logger.With("component", "mqtt"))
		g.Go(func() error {
			return listener.Serve(ctx)
		})
	}

	g.Go(func() error {
		if e.cfg.Poll.Interval > 0 {
			return e.bridge.RunPoller(ctx, e.cfg.Poll.Interval)
		}
		// Without polling, read the backend once so lights start reachable.
		if err := e.bridge.Reconcile(ctx); err != nil && ctx.Err() == nil {
			e.logger.Warn("initial reconcile failed", "error", err)
		}
		return nil
	})

	err = g.Wait()
	e.logger.Info("emulator stopped")
	return err
}

func (e *Emulator) banner() {
	e.logger.Info("hue bridge emulator starting",
		"ip", e.host.String(),
		"port", e.port(),
		"bridgeid", e.identity.BridgeID,
		"uuid", e.identity.UUID,
		"domoticz", e.cfg.Backend.URL,
		"lights", len(e.lights),
	)
	for _, l := range e.lights {
		e.logger.Info("light",
			"id", l.ID,
			"name", l.Name,
			"idx", l.BackendID,
			"kind", string(l.Kind),
			"type", string(l.Capability),
		)
	}
}
