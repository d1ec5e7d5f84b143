// Package mqtt publishes station telemetry (dose results, plate
// transitions, calibrations) to a lab broker.
package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/labkit/microdoser/core/events"
	"github.com/labkit/microdoser/infra/logger"
	"github.com/labkit/microdoser/internal/eventbus"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Enabled     bool        `json:"enabled"`
	Broker      string      `json:"broker"`
	ClientID    string      `json:"client_id"`
	Username    string      `json:"username"`
	Password    string      `json:"password"`
	TopicPrefix string      `json:"topic_prefix"`
	QoS         byte        `json:"qos"`
	UseTLS      bool        `json:"use_tls"`
	ClientCert  string      `json:"client_cert"`
	ClientKey   string      `json:"client_key"`
	CABundle    string      `json:"ca_bundle"`
	TLSConfig   *tls.Config `json:"-"`
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// TelemetryPublisher forwards station events from the bus to MQTT topics
// under the configured prefix.
type TelemetryPublisher struct {
	cli    pahoClient
	prefix string
	qos    byte
	log    logger.Logger
}

// NewTelemetryPublisher connects to the broker.
func NewTelemetryPublisher(cfg Config) (*TelemetryPublisher, error) {
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log := logger.New("mqtt_telemetry")
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	prefix := cfg.TopicPrefix
	if prefix == "" {
		prefix = "microdoser"
	}
	return &TelemetryPublisher{cli: c, prefix: prefix, qos: cfg.QoS, log: log}, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

// Run forwards bus events until the subscription channel closes.
func (p *TelemetryPublisher) Run(sub <-chan eventbus.Event) {
	for e := range sub {
		switch ev := e.(type) {
		case events.DoseEvent:
			p.publishJSON("doses", doseMessage(ev))
		case events.PlateEvent:
			p.publishJSON("plate", ev)
		case events.CalibrationEvent:
			p.publishJSON("calibration", ev)
		}
	}
}

type doseTelemetry struct {
	BatchID  string    `json:"batch_id,omitempty"`
	Well     string    `json:"well"`
	TargetMg float64   `json:"target_mg"`
	ActualMg float64   `json:"actual_mg"`
	ErrorMg  float64   `json:"error_mg"`
	Verified bool      `json:"verified"`
	Error    string    `json:"error,omitempty"`
	Time     time.Time `json:"time"`
}

func doseMessage(ev events.DoseEvent) doseTelemetry {
	msg := doseTelemetry{
		BatchID:  ev.BatchID,
		Well:     ev.Well,
		TargetMg: ev.TargetMg,
		ActualMg: ev.ActualMg,
		ErrorMg:  ev.ErrorMg,
		Verified: ev.Verified,
		Time:     ev.Time,
	}
	if ev.Err != nil {
		msg.Error = ev.Err.Error()
	}
	return msg
}

func (p *TelemetryPublisher) publishJSON(topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		p.log.Errorf("encode %s telemetry: %v", topic, err)
		return
	}
	full := p.prefix + "/" + topic
	token := p.cli.Publish(full, p.qos, false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		p.log.Errorf("publish %s: %v", full, err)
	}
}

// Disconnect gracefully closes the MQTT connection.
func (p *TelemetryPublisher) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
