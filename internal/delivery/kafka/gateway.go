package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/azizikri/round-robin-coupon/internal/domain"
	"github.com/azizikri/round-robin-coupon/internal/logger"
	"github.com/azizikri/round-robin-coupon/internal/usecase"
	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

// ErrReplyTimeout is returned when no reply arrives before the request
// deadline. It matches domain.ErrClaimTimeout.
var ErrReplyTimeout = fmt.Errorf("%w: no reply from claim consumer", domain.ErrClaimTimeout)

// Producer is the part of *kgo.Client the gateway and consumer write with.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Gateway claims by publishing a request and waiting for the reply on this
// instance's reply topic.
type Gateway struct {
	producer    Producer
	replyTopic  string
	timeout     time.Duration
	now         func() time.Time
	pendingResp sync.Map
	log         *zap.Logger
}

func NewGateway(producer Producer, instanceID string) *Gateway {
	return &Gateway{
		producer:   producer,
		replyTopic: ReplyTopic(instanceID),
		timeout:    RequestTimeout,
		now:        time.Now,
		log:        logger.Z().Named("kafka.gateway"),
	}
}

func (g *Gateway) Claim(ctx context.Context, identity string) (*domain.Allocation, error) {
	req := ClaimRequest{
		SchemaVersion: schemaVersion,
		CorrelationID: uuid.New().String(),
		ReplyTo:       g.replyTopic,
		Identity:      identity,
	}

	resp, err := g.requestReply(ctx, TopicClaimRequest, []byte(identity), req)
	if err != nil {
		return nil, err
	}
	return resp.toResult()
}

func (g *Gateway) requestReply(ctx context.Context, topic string, key []byte, req ClaimRequest) (*ClaimResponse, error) {
	respChan := make(chan *ClaimResponse, 1)
	g.pendingResp.Store(req.CorrelationID, respChan)
	defer g.pendingResp.Delete(req.CorrelationID)

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode claim request: %w", err)
	}
	deadline := g.now().Add(g.timeout)
	record := &kgo.Record{
		Topic: topic,
		Key:   key,
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: DeadlineHeaderKey, Value: []byte(deadline.UTC().Format(time.RFC3339Nano))},
		},
	}

	if err := g.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return nil, fmt.Errorf("publish claim request: %w", err)
	}

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	select {
	case resp := <-respChan:
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrReplyTimeout
	}
}

// HandleResponse routes a reply to the waiting Claim call, if any.
func (g *Gateway) HandleResponse(payload []byte) {
	var resp ClaimResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		g.log.Warn("decode reply payload failed", zap.Error(err))
		return
	}

	if ch, ok := g.pendingResp.Load(resp.CorrelationID); ok {
		select {
		case ch.(chan *ClaimResponse) <- &resp:
		default:
		}
		return
	}

	g.log.Debug("no pending request for reply", zap.String("correlation_id", resp.CorrelationID))
}

// ConsumeReplies polls the reply topic until ctx ends or client closes.
func (g *Gateway) ConsumeReplies(ctx context.Context, client *kgo.Client) {
	for {
		fetches := client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return
		}
		iter := fetches.RecordIter()
		for !iter.Done() {
			g.HandleResponse(iter.Next().Value)
		}
	}
}

var _ usecase.ClaimGateway = (*Gateway)(nil)
