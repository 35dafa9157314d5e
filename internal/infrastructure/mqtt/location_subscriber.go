// Package mqtt ingests worker location reports published by handhelds
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/wms-platform/task-engine/internal/application"
	"github.com/wms-platform/task-engine/pkg/logging"
)

// LocationTopic matches wms/{warehouseId}/workers/{workerId}/location
const LocationTopic = "wms/+/workers/+/location"

// Config holds the broker settings
type Config struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	QoS       byte
}

// LocationUpdater records worker locations
type LocationUpdater interface {
	UpdateLocation(ctx context.Context, cmd application.UpdateWorkerLocationCommand) (*application.WorkerLocationDTO, error)
}

// locationReport is the JSON body of a location message
type locationReport struct {
	Zone string `json:"zone"`
	Bin  string `json:"bin"`
}

// LocationSubscriber feeds location messages into the location service
type LocationSubscriber struct {
	config  Config
	updater LocationUpdater
	logger  *logging.Logger
	timeout time.Duration
	client  paho.Client
}

// NewLocationSubscriber creates a LocationSubscriber
func NewLocationSubscriber(config Config, updater LocationUpdater, logger *logging.Logger) *LocationSubscriber {
	if config.ClientID == "" {
		config.ClientID = "task-engine"
	}
	return &LocationSubscriber{
		config:  config,
		updater: updater,
		logger:  logger.WithComponent("mqtt-location"),
		timeout: 5 * time.Second,
	}
}

// Start connects to the broker and subscribes to LocationTopic. The
// subscription is restored on every reconnect.
func (s *LocationSubscriber) Start() error {
	opts := paho.NewClientOptions().
		AddBroker(s.config.BrokerURL).
		SetClientID(s.config.ClientID).
		SetAutoReconnect(true).
		SetCleanSession(true).
		SetConnectTimeout(s.timeout).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			s.logger.WithError(err).Warn("MQTT connection lost")
		}).
		SetOnConnectHandler(func(c paho.Client) {
			if token := c.Subscribe(LocationTopic, s.config.QoS, s.onMessage); token.Wait() && token.Error() != nil {
				s.logger.WithError(token.Error()).Error("Failed to subscribe", "topic", LocationTopic)
				return
			}
			s.logger.Info("Subscribed to worker locations", "topic", LocationTopic)
		})
	if s.config.Username != "" {
		opts.SetUsername(s.config.Username)
	}
	if s.config.Password != "" {
		opts.SetPassword(s.config.Password)
	}

	s.client = paho.NewClient(opts)
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return nil
}

// Stop disconnects from the broker
func (s *LocationSubscriber) Stop() {
	if s.client != nil && s.client.IsConnected() {
		s.client.Disconnect(250)
	}
}

func (s *LocationSubscriber) onMessage(_ paho.Client, msg paho.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.HandleMessage(ctx, msg.Topic(), msg.Payload()); err != nil {
		s.logger.WithError(err).Warn("Dropping worker location message", "topic", msg.Topic())
	}
}

// HandleMessage applies one location report
func (s *LocationSubscriber) HandleMessage(ctx context.Context, topic string, payload []byte) error {
	warehouseID, workerID, err := parseTopic(topic)
	if err != nil {
		return err
	}

	var report locationReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return fmt.Errorf("invalid location payload: %w", err)
	}

	_, err = s.updater.UpdateLocation(ctx, application.UpdateWorkerLocationCommand{
		WorkerID:    workerID,
		WarehouseID: warehouseID,
		Zone:        report.Zone,
		Bin:         report.Bin,
	})
	return err
}

func parseTopic(topic string) (warehouseID, workerID string, err error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 5 || parts[0] != "wms" || parts[2] != "workers" || parts[4] != "location" ||
		parts[1] == "" || parts[3] == "" {
		return "", "", fmt.Errorf("unexpected location topic %q", topic)
	}
	return parts[1], parts[3], nil
}
