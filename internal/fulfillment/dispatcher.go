package fulfillment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pubsubv2 "cloud.google.com/go/pubsub/v2"

	"github.com/karimndoye/sunumarket-backend/pkg/errors"
	"github.com/karimndoye/sunumarket-backend/pkg/logger"
	"github.com/karimndoye/sunumarket-backend/pkg/pubsub"
)

// Dispatcher sends fulfillment events downstream. Dispatch failures never
// affect payment state; callers treat them as best-effort.
type Dispatcher interface {
	Dispatch(ctx context.Context, event Event) error
}

// PubSubDispatcher publishes fulfillment events to the notification topic.
type PubSubDispatcher struct {
	client         *pubsub.Client
	logger         *logger.Logger
	publishTimeout time.Duration
}

type PubSubDispatcherParams struct {
	Client         *pubsub.Client
	Logger         *logger.Logger
	PublishTimeout time.Duration
}

func NewPubSubDispatcher(params PubSubDispatcherParams) (*PubSubDispatcher, error) {
	if params.Client == nil {
		return nil, fmt.Errorf("pubsub client is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	timeout := params.PublishTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PubSubDispatcher{
		client:         params.Client,
		logger:         params.Logger,
		publishTimeout: timeout,
	}, nil
}

// Dispatch publishes the event and waits for the broker acknowledgement.
func (d *PubSubDispatcher) Dispatch(ctx context.Context, event Event) error {
	publisher := d.client.NotificationPublisher()
	if publisher == nil {
		return errors.New(errors.CodeDependency, "notification publisher unavailable")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "encoding fulfillment event")
	}

	ctx, cancel := context.WithTimeout(ctx, d.publishTimeout)
	defer cancel()

	result := publisher.Publish(ctx, &pubsubv2.Message{
		Data:       payload,
		Attributes: map[string]string{"type": string(event.Type)},
	})
	if _, err := result.Get(ctx); err != nil {
		return errors.Wrap(errors.CodeDependency, err, "publishing fulfillment event")
	}

	d.logger.Info(d.logger.WithField(ctx, "event_type", string(event.Type)), "fulfillment event published")
	return nil
}
