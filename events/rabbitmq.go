package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"kglogistics/utils"
)

// RabbitPublisher forwards events to a topic exchange, routed by event type.
type RabbitPublisher struct {
	mu         sync.Mutex
	Connection *amqp.Connection
	Channel    *amqp.Channel
	Exchange   string
	log        *logrus.Entry
}

func DialRabbit(url, exchange string) (*RabbitPublisher, error) {
	connection, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial RabbitMQ: %w", err)
	}
	channel, err := connection.Channel()
	if err != nil {
		_ = connection.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	rmq := &RabbitPublisher{
		Connection: connection,
		Channel:    channel,
		Exchange:   exchange,
		log:        logrus.WithField("component", "rabbitmq"),
	}
	if err := rmq.DeclareExchange(exchange, amqp.ExchangeTopic); err != nil {
		_ = rmq.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	rmq.log.WithField("exchange", exchange).Info("Connection established")
	return rmq, nil
}

func (rmq *RabbitPublisher) DeclareExchange(exchange, exType string) error {
	return rmq.Channel.ExchangeDeclare(
		exchange,
		exType,
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	)
}

func (rmq *RabbitPublisher) Publish(ctx context.Context, ev Event) {
	body, err := json.Marshal(ev)
	if err != nil {
		rmq.log.WithError(err).Error("failed to encode event")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rmq.mu.Lock()
	defer rmq.mu.Unlock()
	if rmq.Channel == nil {
		return
	}
	err = rmq.Channel.PublishWithContext(ctx, rmq.Exchange, ev.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    ev.At,
		Body:         body,
	})
	if err != nil {
		utils.LogError("events", "publish_failed", err, logrus.Fields{
			"event_type": ev.Type,
			"entity_id":  ev.EntityID,
			"exchange":   rmq.Exchange,
		})
	}
}

func (rmq *RabbitPublisher) Close() error {
	rmq.mu.Lock()
	defer rmq.mu.Unlock()
	if rmq.Channel != nil {
		if err := rmq.Channel.Close(); err != nil {
			return fmt.Errorf("failed to close channel: %w", err)
		}
		rmq.Channel = nil
	}
	if rmq.Connection != nil {
		if err := rmq.Connection.Close(); err != nil {
			return fmt.Errorf("failed to close connection: %w", err)
		}
		rmq.Connection = nil
	}
	return nil
}
