package worker

import (
	"context"

	"checkout-service/internal/broker"
	"checkout-service/internal/models"
	"checkout-service/internal/util"

	"go.uber.org/zap"
)

// SubscriberSink receives newsletter signups. The default sink only logs;
// deployments plug in their mailing-list provider here.
type SubscriberSink interface {
	Subscribe(ctx context.Context, email string) error
}

// LogSink is the default SubscriberSink.
type LogSink struct{}

func (LogSink) Subscribe(_ context.Context, email string) error {
	util.GetLogger().Info("Newsletter signup recorded", zap.String("email", email))
	return nil
}

// NewsletterWorker consumes CheckoutCompleted events and forwards opted-in
// customers to the subscriber sink.
type NewsletterWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	sink         SubscriberSink
	logger       *zap.Logger
}

// NewNewsletterWorker creates a newsletter worker
func NewNewsletterWorker(consumer *broker.Consumer, sink SubscriberSink) *NewsletterWorker {
	w := &NewsletterWorker{
		consumer: consumer,
		sink:     sink,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnCheckoutCompleted(w.handleCheckoutCompleted)
	w.eventHandler = eventHandler

	return w
}

func (w *NewsletterWorker) handleCheckoutCompleted(ctx context.Context, event *models.CheckoutCompletedEvent) error {
	if !event.NewsletterOptIn || event.Email == "" {
		return nil
	}

	if err := w.sink.Subscribe(ctx, event.Email); err != nil {
		// signups are best effort; never poison the consumer group over one
		w.logger.Error("Failed to subscribe customer",
			zap.Int64("order_id", event.OrderID),
			zap.Error(err))
	}
	return nil
}

// Start starts the worker
func (w *NewsletterWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting newsletter worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NewsletterWorker) Stop() error {
	w.logger.Info("Stopping newsletter worker")
	return w.consumer.Close()
}
