package store

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/zyansaber/dispatching-3-sub000/internal/models"
)

// DefaultSnapshotTopic is the MQTT topic vehicle snapshots are
// mirrored to.
const DefaultSnapshotTopic = "dispatching/vehicles/snapshot"

const mqttConnectTimeout = 10 * time.Second

// MQTTPublisher mirrors every vehicle snapshot to an MQTT topic so
// out-of-process consumers get the same full-collection push stream as
// in-process subscribers. Publishing is best-effort: a broker outage
// never fails a store write.
type MQTTPublisher struct {
	client mqtt.Client
	topic  string
}

// NewMQTTPublisher connects to the broker and returns a publisher on
// the given topic (DefaultSnapshotTopic when empty).
func NewMQTTPublisher(brokerURL, clientID, topic string) (*MQTTPublisher, error) {
	if topic == "" {
		topic = DefaultSnapshotTopic
	}
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(mqttConnectTimeout)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("mqtt connect to %s: timeout", brokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", brokerURL, err)
	}
	return &MQTTPublisher{client: client, topic: topic}, nil
}

// PublishVehicles sends the full vehicle collection as one retained
// JSON payload, so a late subscriber immediately receives the current
// snapshot.
func (p *MQTTPublisher) PublishVehicles(snapshot map[string]models.VehicleRecord) {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		log.WithFields(log.Fields{"error": err}).Warn("snapshot marshal failed, skipping publish")
		return
	}
	token := p.client.Publish(p.topic, 0, true, payload)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			log.WithFields(log.Fields{"topic": p.topic, "error": err}).Warn("snapshot publish failed")
		}
	}()
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
