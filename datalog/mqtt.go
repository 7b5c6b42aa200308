package datalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/fxamacker/cbor/v2"
	logger "github.com/sirupsen/logrus"
)

const mqttTimeout = 10 * time.Second

var ErrMQTTTimeout = errors.New("mqtt timeout")

type mqttReading struct {
	Name  string `cbor:"n"`
	Value int32  `cbor:"v"`
	Valid bool   `cbor:"ok"`
	Error bool   `cbor:"err,omitempty"`
}

type mqttPayload struct {
	Boot        string        `cbor:"boot"`
	Time        uint64        `cbor:"t"`
	Warnings    string        `cbor:"w"`
	Sensors     []mqttReading `cbor:"s"`
	Controllers []mqttReading `cbor:"c"`
}

// MQTTSink publishes every line as a CBOR document. The connection is only
// held while a sync is running.
type MQTTSink struct {
	client    mqtt.Client
	topic     string
	qos       byte
	mandatory bool
	header    *Header
}

func NewMQTTSink(broker, clientID, topic string, mandatory bool) *MQTTSink {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetConnectTimeout(mqttTimeout).
		SetAutoReconnect(false)
	return newMQTTSink(mqtt.NewClient(opts), topic, mandatory)
}

func newMQTTSink(c mqtt.Client, topic string, mandatory bool) *MQTTSink {
	return &MQTTSink{client: c, topic: topic, qos: 1, mandatory: mandatory}
}

func (s *MQTTSink) Name() string {
	return "mqtt"
}

func (s *MQTTSink) Mandatory() bool {
	return s.mandatory
}

func (s *MQTTSink) Open(_ context.Context, h *Header) error {
	s.header = h
	if s.client.IsConnected() {
		return nil
	}
	return wait(s.client.Connect())
}

func (s *MQTTSink) WriteLine(_ context.Context, snap *Snapshot, _ string) error {
	data, err := cbor.Marshal(s.payload(snap))
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return wait(s.client.Publish(s.topic, s.qos, false, data))
}

func (s *MQTTSink) Close() error {
	if s.client.IsConnected() {
		s.client.Disconnect(250)
	}
	return nil
}

func (s *MQTTSink) payload(snap *Snapshot) mqttPayload {
	p := mqttPayload{
		Time:     snap.Time,
		Warnings: snap.Warnings.String(),
	}
	if s.header != nil {
		p.Boot = s.header.BootID
	}
	for i, r := range snap.Sensors {
		name := ""
		if s.header != nil && i < len(s.header.Sensors) {
			name = s.header.Sensors[i].Name
		}
		p.Sensors = append(p.Sensors, mqttReading{Name: name, Value: r.Value, Valid: r.Valid, Error: r.Error})
	}
	for i, r := range snap.Controllers {
		name := ""
		if s.header != nil && i < len(s.header.Controllers) {
			name = s.header.Controllers[i]
		}
		p.Controllers = append(p.Controllers, mqttReading{Name: name, Value: r.Value, Valid: r.Valid, Error: r.Error})
	}
	return p
}

func wait(t mqtt.Token) error {
	if !t.WaitTimeout(mqttTimeout) {
		logger.Warn("MQTT operation timed out")
		return ErrMQTTTimeout
	}
	return t.Error()
}
