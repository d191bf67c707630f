package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/azizikri/round-robin-coupon/internal/config"
	"github.com/azizikri/round-robin-coupon/internal/domain"
	"github.com/azizikri/round-robin-coupon/internal/logger"
	"github.com/azizikri/round-robin-coupon/internal/usecase"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

// Consumer serves claim requests from Kafka. Contended claims are parked on
// the retry topic before the requester is told to back off.
type Consumer struct {
	client          *kgo.Client
	producer        Producer
	engine          usecase.ClaimGateway
	maxRedeliveries int
	retryDelay      time.Duration
	now             func() time.Time
	log             *zap.Logger
}

func NewConsumer(cfg *config.Config, client *kgo.Client, engine usecase.ClaimGateway) *Consumer {
	return &Consumer{
		client:          client,
		producer:        client,
		engine:          engine,
		maxRedeliveries: cfg.KafkaMaxRedeliveries,
		retryDelay:      cfg.KafkaRetryDelay,
		now:             time.Now,
		log:             logger.Z().Named("kafka.consumer"),
	}
}

func (c *Consumer) Start(ctx context.Context) {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			for _, fe := range errs {
				c.log.Warn("consumer poll error", zap.String("topic", fe.Topic), zap.Error(fe.Err))
			}
		}

		iter := fetches.RecordIter()
		for !iter.Done() {
			c.processRecord(ctx, iter.Next())
		}

		if err := c.client.CommitRecords(ctx, fetches.Records()...); err != nil {
			c.log.Error("commit records failed", zap.Error(err))
		}
	}
}

// StartRetry moves parked records back to their request topic once their
// x-next-at has passed.
func (c *Consumer) StartRetry(ctx context.Context) {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return
		}
		iter := fetches.RecordIter()
		for !iter.Done() {
			record := iter.Next()

			if nextAt, ok := retryNextAt(record); ok {
				if wait := nextAt.Sub(c.now()); wait > 0 {
					select {
					case <-ctx.Done():
						return
					case <-time.After(wait):
					}
				}
			}

			if err := c.producer.ProduceSync(ctx, requeueRecord(record)).FirstErr(); err != nil {
				c.log.Error("requeue retry record failed", zap.Error(err))
			}
		}
		if err := c.client.CommitRecords(ctx, fetches.Records()...); err != nil {
			c.log.Error("commit retry records failed", zap.Error(err))
		}
	}
}

func (c *Consumer) processRecord(ctx context.Context, record *kgo.Record) {
	switch record.Topic {
	case TopicClaimRequest:
		c.handleClaim(ctx, record)
	default:
		c.log.Warn("record on unexpected topic", zap.String("topic", record.Topic))
	}
}

func (c *Consumer) handleClaim(ctx context.Context, record *kgo.Record) {
	var req ClaimRequest
	if err := json.Unmarshal(record.Value, &req); err != nil {
		c.sendError(ctx, record, StatusInvalidRequest, "invalid request payload")
		return
	}

	// Past the deadline the gateway has already answered the caller.
	if deadline, ok := requestDeadline(record); ok {
		if !c.now().Before(deadline) {
			c.log.Info("dropping expired claim request",
				zap.String("correlation_id", req.CorrelationID), zap.Time("deadline", deadline))
			return
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	alloc, err := c.engine.Claim(ctx, req.Identity)
	if errors.Is(err, domain.ErrConflictRetryExhausted) {
		if attempt := retryAttempt(record); attempt < c.maxRedeliveries {
			c.scheduleRetry(ctx, record, attempt+1)
			return
		}
	}

	c.sendResponse(ctx, req.ReplyTo, responseFor(req.CorrelationID, alloc, err))
}

func (c *Consumer) scheduleRetry(ctx context.Context, record *kgo.Record, attempt int) {
	nextAt := c.now().Add(c.retryDelay * time.Duration(attempt))
	retry := &kgo.Record{
		Topic:   strings.TrimSuffix(record.Topic, TopicRequestSuffix) + TopicRetrySuffix,
		Key:     record.Key,
		Value:   record.Value,
		Headers: withRetryHeaders(record.Headers, attempt, nextAt),
	}
	if err := c.producer.ProduceSync(ctx, retry).FirstErr(); err != nil {
		c.log.Error("schedule retry failed", zap.Error(err))
		var req ClaimRequest
		_ = json.Unmarshal(record.Value, &req)
		c.sendResponse(ctx, req.ReplyTo, responseFor(req.CorrelationID, nil, domain.ErrConflictRetryExhausted))
		return
	}
	c.log.Debug("claim parked for retry", zap.Int("attempt", attempt), zap.Time("next_at", nextAt))
}

func (c *Consumer) sendResponse(ctx context.Context, topic string, resp *ClaimResponse) {
	if topic == "" {
		c.log.Warn("claim request without reply topic", zap.String("correlation_id", resp.CorrelationID))
		return
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		c.log.Error("encode reply failed", zap.Error(err))
		return
	}
	record := &kgo.Record{
		Topic: topic,
		Value: payload,
	}
	if err := c.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		c.log.Error("send reply failed", zap.String("topic", topic), zap.Error(err))
	}
}

func (c *Consumer) sendError(ctx context.Context, record *kgo.Record, status, message string) {
	var req ClaimRequest
	_ = json.Unmarshal(record.Value, &req)

	if req.ReplyTo != "" {
		c.sendResponse(ctx, req.ReplyTo, &ClaimResponse{
			SchemaVersion: schemaVersion,
			CorrelationID: req.CorrelationID,
			Status:        status,
			ErrorMessage:  message,
		})
	}

	dlqRecord := &kgo.Record{
		Topic: record.Topic + TopicDLQSuffix,
		Key:   record.Key,
		Value: record.Value,
		Headers: []kgo.RecordHeader{
			{Key: ErrorHeaderKey, Value: []byte(message)},
		},
	}
	if err := c.producer.ProduceSync(ctx, dlqRecord).FirstErr(); err != nil {
		c.log.Error("dead-letter record failed", zap.Error(err))
	}
}

func requeueRecord(record *kgo.Record) *kgo.Record {
	return &kgo.Record{
		Topic:   strings.TrimSuffix(record.Topic, TopicRetrySuffix) + TopicRequestSuffix,
		Key:     record.Key,
		Value:   record.Value,
		Headers: record.Headers,
	}
}

func withRetryHeaders(headers []kgo.RecordHeader, attempt int, nextAt time.Time) []kgo.RecordHeader {
	out := make([]kgo.RecordHeader, 0, len(headers)+2)
	for _, h := range headers {
		if h.Key == RetryHeaderAttempt || h.Key == RetryHeaderNextAt {
			continue
		}
		out = append(out, h)
	}
	return append(out,
		kgo.RecordHeader{Key: RetryHeaderAttempt, Value: []byte(strconv.Itoa(attempt))},
		kgo.RecordHeader{Key: RetryHeaderNextAt, Value: []byte(nextAt.UTC().Format(time.RFC3339Nano))},
	)
}

func retryAttempt(record *kgo.Record) int {
	for _, header := range record.Headers {
		if header.Key != RetryHeaderAttempt {
			continue
		}
		n, err := strconv.Atoi(string(header.Value))
		if err != nil || n < 0 {
			return 0
		}
		return n
	}
	return 0
}

func retryNextAt(record *kgo.Record) (time.Time, bool) {
	return headerTime(record, RetryHeaderNextAt)
}

func requestDeadline(record *kgo.Record) (time.Time, bool) {
	return headerTime(record, DeadlineHeaderKey)
}

func headerTime(record *kgo.Record, key string) (time.Time, bool) {
	for _, header := range record.Headers {
		if header.Key != key {
			continue
		}
		at, err := time.Parse(time.RFC3339Nano, string(header.Value))
		if err != nil {
			return time.Time{}, false
		}
		return at, true
	}

	return time.Time{}, false
}
