package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"token-score-engine/internal/domain/entity"
	"token-score-engine/internal/infrastructure/config"
	"token-score-engine/internal/infrastructure/logger"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSConsumer receives scoring requests over NATS. JetStream is
// preferred when the server offers it; otherwise a core NATS queue
// subscription serves the same subject.
type NATSConsumer struct {
	conn    *nats.Conn
	js      nats.JetStreamContext
	sub     *nats.Subscription
	config  *config.NATSConfig
	logger  *logger.Logger
	reqChan chan *entity.ScoreRequest
	running atomic.Bool
	loopWG  sync.WaitGroup

	// mu serializes enqueues against channel close during shutdown
	mu     sync.Mutex
	closed bool
}

// NewNATSConsumer creates a new NATS consumer
func NewNATSConsumer(cfg *config.NATSConfig, logger *logger.Logger) *NATSConsumer {
	return &NATSConsumer{
		config:  cfg,
		logger:  logger.WithComponent("nats-consumer"),
		reqChan: make(chan *entity.ScoreRequest, cfg.MaxPendingRequests),
	}
}

// Connect connects to NATS server and sets up the request subscription
func (n *NATSConsumer) Connect(ctx context.Context) error {
	if !n.config.Enabled {
		n.logger.Info("NATS is disabled, skipping connection")
		return nil
	}

	n.logger.Info("Connecting to NATS server", zap.String("url", n.config.URL))

	opts := []nats.Option{
		nats.Name("token-score-engine"),
		nats.Timeout(n.config.ConnectTimeout),
		nats.ReconnectWait(n.config.ReconnectDelay),
		nats.MaxReconnects(n.config.ReconnectAttempts),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			n.logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			n.logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			n.logger.Info("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(n.config.URL, opts...)
	if err != nil {
		n.logger.Error("Failed to connect to NATS", zap.Error(err))
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	n.conn = conn

	// Try JetStream first, if not available fall back to core NATS
	js, err := conn.JetStream()
	if err != nil {
		n.logger.Warn("JetStream not available, using core NATS", zap.Error(err))
		return n.setupCoreNATSSubscription()
	}

	n.js = js
	return n.setupJetStreamSubscription()
}

// setupJetStreamSubscription sets up a durable pull subscription on the
// request subject
func (n *NATSConsumer) setupJetStreamSubscription() error {
	subject := fmt.Sprintf("%s.request", n.config.SubjectPrefix)

	n.logger.Info("Setting up JetStream subscription",
		zap.String("subject", subject),
		zap.String("stream", n.config.StreamName))

	sub, err := n.js.PullSubscribe(subject, n.config.ConsumerGroup,
		nats.BindStream(n.config.StreamName))
	if err != nil {
		n.logger.Warn("Failed to set up JetStream consumer, falling back to core NATS", zap.Error(err))
		return n.setupCoreNATSSubscription()
	}

	n.sub = sub
	n.running.Store(true)

	// Start message processing
	n.loopWG.Add(1)
	go n.processJetStreamMessages()

	n.logger.Info("Successfully connected to NATS JetStream",
		zap.String("subject", subject),
		zap.String("consumer", n.config.ConsumerGroup))

	return nil
}

// processJetStreamMessages processes messages from the pull subscription
func (n *NATSConsumer) processJetStreamMessages() {
	defer n.loopWG.Done()
	n.logger.Info("Starting JetStream message processing")

	for n.running.Load() {
		msgs, err := n.sub.Fetch(10, nats.MaxWait(5*time.Second))
		if err != nil {
			if err == nats.ErrTimeout {
				continue
			}
			n.logger.Error("Failed to fetch messages", zap.Error(err))
			continue
		}

		for _, msg := range msgs {
			n.handleMessage(msg)
		}
	}

	n.logger.Info("Stopped JetStream message processing")
}

// setupCoreNATSSubscription sets up core NATS subscription
func (n *NATSConsumer) setupCoreNATSSubscription() error {
	subject := fmt.Sprintf("%s.request", n.config.SubjectPrefix)
	queueGroup := n.config.ConsumerGroup

	n.logger.Info("Setting up core NATS subscription",
		zap.String("subject", subject),
		zap.String("queue_group", queueGroup))

	sub, err := n.conn.QueueSubscribe(subject, queueGroup, func(msg *nats.Msg) {
		n.handleMessage(msg)
	})

	if err != nil {
		n.logger.Error("Failed to subscribe to subject", zap.Error(err))
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	n.sub = sub
	n.running.Store(true)

	n.logger.Info("Successfully connected to core NATS",
		zap.String("subject", subject),
		zap.String("queue_group", queueGroup))

	return nil
}

// handleMessage decodes a scoring request and queues it for the workers
func (n *NATSConsumer) handleMessage(msg *nats.Msg) {
	var req entity.ScoreRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		n.logger.Error("Failed to unmarshal score request", zap.Error(err))
		if msg.Reply != "" {
			msg.Respond([]byte("ERROR: Failed to unmarshal"))
		}
		return
	}

	req.Normalize()
	if !entity.IsValidAddress(req.TokenAddress) {
		n.logger.Warn("Dropping request with invalid token address",
			zap.String("token", req.TokenAddress))
		if msg.Reply != "" {
			msg.Ack()
		}
		return
	}

	if n.enqueue(&req) {
		n.logger.Debug("Queued score request", zap.String("token", req.TokenAddress))
		if msg.Reply != "" {
			msg.Ack()
		}
	} else {
		// Channel full or consumer shutting down
		n.logger.Warn("Rejecting score request",
			zap.String("token", req.TokenAddress))
		if msg.Reply != "" {
			msg.Nak()
		}
	}
}

// enqueue hands a request to the worker channel. The mutex guarantees no
// send can overlap the channel close in Disconnect.
func (n *NATSConsumer) enqueue(req *entity.ScoreRequest) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return false
	}
	select {
	case n.reqChan <- req:
		return true
	default:
		return false
	}
}

// Disconnect stops the fetch loop, tears down the subscription and
// connection, then closes the request channel once no send can be in
// flight.
func (n *NATSConsumer) Disconnect() error {
	n.running.Store(false)

	if n.sub != nil {
		n.sub.Unsubscribe()
		n.sub = nil
	}
	n.loopWG.Wait()
	if n.conn != nil {
		n.conn.Close()
		n.conn = nil
	}

	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.reqChan)
	}
	n.mu.Unlock()

	n.logger.Info("Disconnected from NATS")
	return nil
}

// IsConnected checks if connected to NATS
func (n *NATSConsumer) IsConnected() bool {
	return n.running.Load() && n.conn != nil && n.conn.IsConnected()
}

// GetRequestChannel returns the channel of queued scoring requests
func (n *NATSConsumer) GetRequestChannel() <-chan *entity.ScoreRequest {
	return n.reqChan
}
