package observability

import (
	"context"
)

// Publisher is the subset of rabbitmq.Publisher used for observability events.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

var defaultPublisher Publisher

// SetPublisher installs the publisher used by PublishEvent.
func SetPublisher(publisher Publisher) {
	defaultPublisher = publisher
}

// PublishEvent publishes through the default publisher, counting failures.
// Without a publisher it is a no-op.
func PublishEvent(ctx context.Context, routingKey string, message interface{}) error {
	if defaultPublisher == nil {
		return nil
	}

	err := defaultPublisher.Publish(ctx, routingKey, message)
	if err != nil {
		IncAMQPPublishError()
	}
	return err
}
