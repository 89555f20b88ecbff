// Package mqtt follows Domoticz state changes published on domoticz/out, so
// switches operated outside the bridge show up without waiting for a poll.
package mqtt

import (
	"context"
	"domoticz-hue-emulator/internal/domain/model"
	"domoticz-hue-emulator/internal/ports"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Logger is the logging interface the listener needs.
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
	Broker   string
	Topic    string
	ClientID string
	Username string
	Password string
}

type Listener struct {
	cfg    Config
	sink   ports.EventSink
	logger Logger
}

func NewListener(cfg Config, sink ports.EventSink) *Listener {
	return &Listener{cfg: cfg, sink: sink, logger: noopLogger{}}
}

// SetLogger sets the logger for the listener.
func (l *Listener) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	l.logger = logger
}

// Serve stays subscribed, reconnecting as needed, until ctx is done.
func (l *Listener) Serve(ctx context.Context) error {
	opts := paho.NewClientOptions()
	opts.AddBroker(l.cfg.Broker)
	opts.SetClientID(l.cfg.ClientID)
	opts.SetUsername(l.cfg.Username)
	opts.SetPassword(l.cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetOnConnectHandler(func(c paho.Client) {
		// Subscriptions do not survive a reconnect with a clean session.
		t := c.Subscribe(l.cfg.Topic, 0, l.handle)
		if t.Wait() && t.Error() != nil {
			l.logger.Error("mqtt subscribe failed", "topic", l.cfg.Topic, "error", t.Error())
			return
		}
		l.logger.Info("mqtt subscribed", "broker", l.cfg.Broker, "topic", l.cfg.Topic)
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		l.logger.Warn("mqtt connection lost", "error", err)
	})

	client := paho.NewClient(opts)
	client.Connect()

	<-ctx.Done()
	client.Disconnect(250)
	l.logger.Info("mqtt listener stopped")
	return nil
}

func (l *Listener) handle(_ paho.Client, m paho.Message) {
	l.Handle(m.Payload())
}

// event is the subset of a domoticz/out message the bridge uses.
type event struct {
	Idx     json.Number     `json:"idx"`
	NValue  *int            `json:"nvalue"`
	SValue1 string          `json:"svalue1"`
	Level   *int            `json:"Level"`
	Color   json.RawMessage `json:"Color"`
	Type    string          `json:"Type"`
	Status  string          `json:"Status"`
	DType   string          `json:"dtype"`
}

// Handle applies one message and reports whether it matched a light.
func (l *Listener) Handle(payload []byte) bool {
	var ev event
	if err := json.Unmarshal(payload, &ev); err != nil {
		l.logger.Debug("mqtt message ignored", "error", err)
		return false
	}
	if ev.Idx.String() == "" {
		return false
	}
	target, state, ok := decode(ev)
	if !ok {
		return false
	}
	return l.sink.ApplyBackendEvent(target, state)
}

func decode(ev event) (model.Target, model.BackendState, bool) {
	target := model.Target{BackendID: ev.Idx.String()}
	if isScene(ev.Type) || isScene(ev.DType) {
		target.Scene = true
		switch {
		case ev.Status != "":
			return target, model.BackendState{On: !strings.EqualFold(ev.Status, "Off")}, true
		case ev.NValue != nil:
			return target, model.BackendState{On: *ev.NValue != 0}, true
		}
		return target, model.BackendState{}, false
	}

	if ev.NValue == nil {
		return target, model.BackendState{}, false
	}
	state := model.BackendState{On: *ev.NValue != 0}
	switch {
	case ev.Level != nil:
		state.Level, state.HasLevel = *ev.Level, true
	case ev.SValue1 != "":
		if level, err := strconv.Atoi(ev.SValue1); err == nil {
			state.Level, state.HasLevel = level, true
		}
	}
	state.Color = model.ParseRGB(ev.Color)
	return target, state, true
}

func isScene(t string) bool {
	return strings.EqualFold(t, "Scene") || strings.EqualFold(t, "Group")
}
