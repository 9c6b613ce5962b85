package generator

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// TopicCreator makes sure the tick and alert topics exist before anything writes to them.
type TopicCreator struct {
	logger     *zap.Logger
	dialer     KafkaDialer
	clock      Clock
	partitions int
}

func NewTopicCreator(logger *zap.Logger, dialer KafkaDialer, clock Clock) *TopicCreator {
	return &TopicCreator{
		logger:     logger,
		dialer:     dialer,
		clock:      clock,
		partitions: 4,
	}
}

// Create asks the controller for every topic and waits until each is readable.
// Existing topics are not an error.
func (tc *TopicCreator) Create(ctx context.Context, brokers []string, topics ...string) error {
	if len(brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}

	var conn KafkaConn
	var err error
	for _, addr := range brokers {
		conn, err = tc.dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			break
		}
	}
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return err
	}

	controllerAddr := net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port))
	controllerConn, err := tc.dialer.DialContext(ctx, "tcp", controllerAddr)
	if err != nil {
		return err
	}
	defer controllerConn.Close()

	configs := make([]kafka.TopicConfig, 0, len(topics))
	for _, topic := range topics {
		configs = append(configs, kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     tc.partitions,
			ReplicationFactor: 1,
		})
	}

	if err := controllerConn.CreateTopics(configs...); err != nil {
		tc.logger.Info("Topic creation finished (might already exist)", zap.Error(err))
	} else {
		tc.logger.Info("Topic creation request sent", zap.Strings("topics", topics))
	}

	var missing []string
	for _, topic := range topics {
		if !tc.waitForTopic(conn, topic) {
			missing = append(missing, topic)
		}
	}
	if len(missing) > 0 {
		tc.logger.Warn("Timed out waiting for topics", zap.Strings("topics", missing))
	}
	return nil
}

func (tc *TopicCreator) waitForTopic(conn KafkaConn, topic string) bool {
	for i := 0; i < 5; i++ {
		tc.clock.Sleep(200 * time.Millisecond)
		partitions, err := conn.ReadPartitions(topic)
		if err == nil && len(partitions) > 0 {
			tc.logger.Info("Topic is ready", zap.String("topic", topic), zap.Int("partitions", len(partitions)))
			return true
		}
	}
	return false
}
