package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/azizikri/round-robin-coupon/internal/config"
	"github.com/azizikri/round-robin-coupon/internal/logger"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Topics lists every topic an instance needs, its own reply topic included.
func Topics(instanceID string) []string {
	return []string{
		TopicClaimRequest,
		TopicClaimRetry,
		TopicClaimDLQ,
		ReplyTopic(instanceID),
	}
}

func EnsureTopics(ctx context.Context, client *kgo.Client, cfg *config.Config) error {
	adm := kadm.NewClient(client)

	for _, topic := range Topics(cfg.KafkaInstanceID) {
		p := cfg.KafkaTopicPartitions
		if strings.HasSuffix(topic, TopicRetrySuffix) || strings.HasSuffix(topic, TopicDLQSuffix) {
			p = cfg.KafkaRetryPartitions
		}

		resp, err := adm.CreateTopics(ctx, int32(p), cfg.ReplicationFactor(), nil, topic)
		if err != nil {
			return fmt.Errorf("create topic %s: %w", topic, err)
		}
		for _, detail := range resp {
			if detail.Err != nil && !errors.Is(detail.Err, kerr.TopicAlreadyExists) {
				return fmt.Errorf("create topic %s: %w", detail.Topic, detail.Err)
			}
		}
	}

	logger.Infow("kafka topics ensured", "instance", cfg.KafkaInstanceID)
	return nil
}
