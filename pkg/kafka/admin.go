package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/segmentio/kafka-go"
)

// EnsureTopics creates any missing topic through the cluster controller.
// Replication is capped at the number of live brokers so a single-broker
// development cluster accepts the production defaults.
func EnsureTopics(ctx context.Context, brokers []string, topics []TopicConfig) error {
	if len(brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}

	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("failed to dial kafka: %w", err)
	}
	defer conn.Close()

	live, err := conn.Brokers()
	if err != nil {
		return fmt.Errorf("failed to list kafka brokers: %w", err)
	}
	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("failed to find kafka controller: %w", err)
	}

	ctrl, err := kafka.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("failed to dial kafka controller: %w", err)
	}
	defer ctrl.Close()

	for _, topic := range topics {
		replication := topic.ReplicationFactor
		if replication > len(live) {
			replication = len(live)
		}
		err := ctrl.CreateTopics(kafka.TopicConfig{
			Topic:             topic.Name,
			NumPartitions:     topic.Partitions,
			ReplicationFactor: replication,
			ConfigEntries: []kafka.ConfigEntry{
				{ConfigName: "retention.ms", ConfigValue: strconv.FormatInt(topic.RetentionMs, 10)},
			},
		})
		if err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
			return fmt.Errorf("failed to create topic %s: %w", topic.Name, err)
		}
	}
	return nil
}
