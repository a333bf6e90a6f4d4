package journal

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Shopify/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/m-lab/counters/static"
)

var errNoBrokers = errors.New("journal client requires at least one broker")

// WorkerFunc handles one batch. Offsets of the batch are committed only if
// it returns nil.
type WorkerFunc func(ctx context.Context, batch Batch) error

// ClientConfig configures a Client.
type ClientConfig struct {
	Brokers      []string
	GroupID      string
	Prefix       string
	ObjectTypes  []string
	BatchSize    int
	BatchTimeout time.Duration
}

// Client consumes the journal topics of the configured object types with a
// Kafka consumer group and hands batches of messages to a WorkerFunc.
type Client struct {
	config ClientConfig
	group  sarama.ConsumerGroup
}

// NewClient connects a consumer group to the configured brokers.
func NewClient(cfg ClientConfig) (*Client, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errNoBrokers
	}
	cfg = withDefaults(cfg)

	sc := sarama.NewConfig()
	sc.ClientID = cfg.GroupID
	sc.Version = sarama.V2_1_0_0
	sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	sc.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, sc)
	if err != nil {
		return nil, err
	}
	return &Client{config: cfg, group: group}, nil
}

func withDefaults(cfg ClientConfig) ClientConfig {
	if cfg.GroupID == "" {
		cfg.GroupID = static.JournalGroupID
	}
	if cfg.Prefix == "" {
		cfg.Prefix = static.JournalPrefix
	}
	if len(cfg.ObjectTypes) == 0 {
		cfg.ObjectTypes = static.JournalObjectTypes
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = static.JournalBatchSize
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = static.JournalBatchTimeout
	}
	return cfg
}

// Topics returns the topics consumed by the client.
func (c *Client) Topics() []string {
	return topics(c.config.Prefix, c.config.ObjectTypes)
}

func topics(prefix string, types []string) []string {
	t := make([]string, len(types))
	for i, typ := range types {
		t[i] = prefix + "." + typ
	}
	return t
}

// Process consumes messages until ctx is canceled. A session ending on a
// worker error is restarted from the last committed offsets.
func (c *Client) Process(ctx context.Context, worker WorkerFunc) error {
	go func() {
		for err := range c.group.Errors() {
			log.Errorf("journal consumer error: %v", err)
		}
	}()

	h := &batcher{
		worker:  worker,
		prefix:  c.config.Prefix + ".",
		size:    c.config.BatchSize,
		timeout: c.config.BatchTimeout,
	}
	for {
		if err := c.group.Consume(ctx, c.Topics(), h); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Close stops the consumer group.
func (c *Client) Close() error {
	return c.group.Close()
}

// batcher implements sarama.ConsumerGroupHandler. Messages of a claim are
// grouped into batches of up to size messages, flushed at least every
// timeout.
type batcher struct {
	worker  WorkerFunc
	prefix  string
	size    int
	timeout time.Duration
}

func (b *batcher) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (b *batcher) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (b *batcher) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ticker := time.NewTicker(b.timeout)
	defer ticker.Stop()

	batch := Batch{}
	var last *sarama.ConsumerMessage
	n := 0

	flush := func() error {
		if n == 0 {
			return nil
		}
		if err := b.worker(sess.Context(), batch); err != nil {
			return err
		}
		sess.MarkMessage(last, "")
		batch = Batch{}
		n = 0
		return nil
	}

	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return flush()
			}
			typ := strings.TrimPrefix(msg.Topic, b.prefix)
			batch[typ] = append(batch[typ], Message{Key: msg.Key, Value: msg.Value})
			last = msg
			n++
			if n >= b.size {
				if err := flush(); err != nil {
					return err
				}
			}
		case <-ticker.C:
			if err := flush(); err != nil {
				return err
			}
		case <-sess.Context().Done():
			return nil
		}
	}
}
