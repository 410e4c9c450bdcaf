package queue

import (
	"fmt"
	"sync"
	"time"

	"github.com/OFFIS-RIT/outreach/internal/util"
	"github.com/OFFIS-RIT/outreach/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

const (
	DispatchQueue  = "dispatch_queue"
	PubSubExchange = "pubsub_exchange"
)

// Publisher sends messages to a work queue or to the topic exchange.
type Publisher interface {
	PublishFIFO(queueName string, data []byte) error
	PublishTopic(topic string, data []byte) error
}

// ChannelPublisher is a Publisher on a single AMQP channel. Channels must not
// be used for publishing from several goroutines at once, so every publish
// holds a mutex.
type ChannelPublisher struct {
	mu sync.Mutex
	ch *amqp091.Channel
}

func NewChannelPublisher(ch *amqp091.Channel) *ChannelPublisher {
	return &ChannelPublisher{ch: ch}
}

func (p *ChannelPublisher) PublishFIFO(queueName string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PublishFIFO(p.ch, queueName, data)
}

func (p *ChannelPublisher) PublishTopic(topic string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PublishTopic(p.ch, topic, data)
}

func Init() *amqp091.Connection {
	user := util.GetEnv("RABBITMQ_USER")
	pass := util.GetEnv("RABBITMQ_PASSWORD")
	host := util.GetEnv("RABBITMQ_HOST")
	port := util.GetEnv("RABBITMQ_PORT")

	connURL := fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		user,
		pass,
		host,
		port,
	)

	conn, err := amqp091.Dial(connURL)
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}

	return conn
}

// SetupQueues declares the topic exchange, the dispatch work queue and its
// dead letter queue.
func SetupQueues(ch *amqp091.Channel) error {
	err := declareExchange(ch)
	if err != nil {
		return fmt.Errorf("exchange declare failed: %w", err)
	}

	for _, name := range []string{DispatchQueue, DeadLetterQueue(DispatchQueue)} {
		_, err := ch.QueueDeclare(
			name,
			true,  // durable
			false, // autoDelete
			false, // exclusive
			false, // noWait
			nil,   // args
		)
		if err != nil {
			return fmt.Errorf("queue declare %s failed: %w", name, err)
		}
	}

	return nil
}

func DeadLetterQueue(queueName string) string {
	return queueName + "_dlq"
}

func declareExchange(ch *amqp091.Channel) error {
	return ch.ExchangeDeclare(
		PubSubExchange,
		"topic",
		false,
		true,
		false,
		false,
		nil,
	)
}

func PublishFIFO(ch *amqp091.Channel, queueName string, data []byte) error {
	q, err := ch.QueueDeclare(
		queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         data,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	}

	return ch.Publish(
		"",
		q.Name,
		false,
		false,
		publishing,
	)
}

func PublishTopic(ch *amqp091.Channel, topic string, data []byte) error {
	if err := declareExchange(ch); err != nil {
		return err
	}

	publishing := amqp091.Publishing{
		ContentType: "application/json",
		Body:        data,
		Timestamp:   time.Now(),
	}

	return ch.Publish(
		PubSubExchange,
		topic,
		false,
		false,
		publishing,
	)
}

// SubscribeTopic binds a private, server named queue to the exchange for
// pattern and starts consuming it with automatic acks.
func SubscribeTopic(ch *amqp091.Channel, pattern string) (<-chan amqp091.Delivery, error) {
	if err := declareExchange(ch); err != nil {
		return nil, err
	}

	q, err := ch.QueueDeclare(
		"",
		false, // durable
		true,  // autoDelete
		true,  // exclusive
		false,
		nil,
	)
	if err != nil {
		return nil, err
	}

	if err := ch.QueueBind(q.Name, pattern, PubSubExchange, false, nil); err != nil {
		return nil, err
	}

	return ch.Consume(
		q.Name,
		"",
		true,  // autoAck
		true,  // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
}
