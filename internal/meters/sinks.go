package meters

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/mcncl/enphase-api/internal/config"
	"github.com/mcncl/enphase-api/internal/store"
)

// Sink receives every reading the poller takes.
type Sink interface {
	Name() string
	Write(ctx context.Context, r Reading) error
}

// Publisher is the part of an MQTT client a sink needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTSink publishes each reading as {"timestamp": <epoch seconds>,
// "readings": <reports>}.
type MQTTSink struct {
	client  Publisher
	topic   string
	qos     byte
	timeout time.Duration
}

// NewMQTTSink publishes to cfg.Topic through client.
func NewMQTTSink(client Publisher, cfg config.MQTTConfig) *MQTTSink {
	return &MQTTSink{
		client:  client,
		topic:   cfg.Topic,
		qos:     cfg.QoS,
		timeout: 5 * time.Second,
	}
}

// ConnectMQTT connects to the broker in cfg.
func ConnectMQTT(cfg config.MQTTConfig, log logrus.FieldLogger) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.OnConnect = func(mqtt.Client) {
		log.WithField("broker", cfg.Broker).Info("Connected to MQTT broker")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.WithField("broker", cfg.Broker).WithError(err).Warn("MQTT connection lost")
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to %s: %w", cfg.Broker, token.Error())
	}
	return client, nil
}

func (s *MQTTSink) Name() string { return "mqtt" }

type mqttPayload struct {
	Timestamp float64         `json:"timestamp"`
	Readings  json.RawMessage `json:"readings"`
}

func (s *MQTTSink) Write(_ context.Context, r Reading) error {
	payload, err := json.Marshal(mqttPayload{
		Timestamp: float64(r.Timestamp.UnixNano()) / float64(time.Second),
		Readings:  r.Raw,
	})
	if err != nil {
		return err
	}

	token := s.client.Publish(s.topic, s.qos, false, payload)
	if !token.WaitTimeout(s.timeout) {
		return fmt.Errorf("publishing to %s timed out", s.topic)
	}
	return token.Error()
}

// SQLiteSink stores readings in the MeterReading tables.
type SQLiteSink struct {
	store *store.Store
}

// NewSQLiteSink writes readings to s.
func NewSQLiteSink(s *store.Store) *SQLiteSink {
	return &SQLiteSink{store: s}
}

func (s *SQLiteSink) Name() string { return "sqlite" }

func (s *SQLiteSink) Write(ctx context.Context, r Reading) error {
	results, err := r.Results()
	if err != nil {
		return err
	}
	_, err = s.store.SaveMeterReading(ctx, store.MeterReading{Timestamp: r.Timestamp, Results: results})
	return err
}

// PrometheusSink keeps the latest reading of every meter phase in gauges.
type PrometheusSink struct {
	activePower   *prometheus.GaugeVec
	reactivePower *prometheus.GaugeVec
	apparentPower *prometheus.GaugeVec
	voltage       *prometheus.GaugeVec
	current       *prometheus.GaugeVec
	powerFactor   *prometheus.GaugeVec
	frequency     *prometheus.GaugeVec
}

// NewPrometheusSink creates the meter gauges and registers them with reg.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	gauge := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "enphase",
				Subsystem: "meter",
				Name:      name,
				Help:      help,
			},
			[]string{
				// production, net-consumption or total-consumption
				"report_type",
				"phase",
			},
		)
	}

	s := &PrometheusSink{
		activePower:   gauge("active_power_watts", "Active power."),
		reactivePower: gauge("reactive_power_var", "Reactive power."),
		apparentPower: gauge("apparent_power_va", "Apparent power."),
		voltage:       gauge("voltage_volts", "RMS voltage."),
		current:       gauge("current_amperes", "RMS current."),
		powerFactor:   gauge("power_factor", "Power factor."),
		frequency:     gauge("frequency_hertz", "Line frequency."),
	}
	for _, c := range []prometheus.Collector{
		s.activePower, s.reactivePower, s.apparentPower, s.voltage, s.current, s.powerFactor, s.frequency,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *PrometheusSink) Name() string { return "prometheus" }

func (s *PrometheusSink) Write(_ context.Context, r Reading) error {
	if _, err := r.Results(); err != nil {
		return err
	}
	for _, report := range r.Reports {
		for phase, line := range report.Lines {
			labels := prometheus.Labels{"report_type": report.ReportType, "phase": phaseName(phase)}
			s.activePower.With(labels).Set(line.ActPower)
			s.reactivePower.With(labels).Set(line.ReactPwr)
			s.apparentPower.With(labels).Set(line.ApprntPwr)
			s.voltage.With(labels).Set(line.RMSVoltage)
			s.current.With(labels).Set(line.RMSCurrent)
			s.powerFactor.With(labels).Set(line.PwrFactor)
			s.frequency.With(labels).Set(line.FreqHz)
		}
	}
	return nil
}
