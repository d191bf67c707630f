package kafka

import "time"

const (
	TopicClaimRequest  = "coupon.claim.req"
	TopicClaimRetry    = "coupon.claim.retry"
	TopicReplyPrefix   = "coupon.reply."
	TopicRequestSuffix = ".req"
	TopicRetrySuffix   = ".retry"
	TopicDLQSuffix     = ".dlq"

	TopicClaimDLQ = TopicClaimRequest + TopicDLQSuffix

	RequestTimeout = 3 * time.Second

	RetryHeaderNextAt  = "x-next-at"
	RetryHeaderAttempt = "x-attempt"
	ErrorHeaderKey     = "x-error"
	DeadlineHeaderKey  = "x-deadline"

	schemaVersion = 1
)

// ReplyTopic is the per-instance topic a gateway listens on for replies.
func ReplyTopic(instanceID string) string {
	return TopicReplyPrefix + instanceID
}
