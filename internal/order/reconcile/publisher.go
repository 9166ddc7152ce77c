package reconcile

import (
	"context"
	"encoding/json"

	"github.com/fekuna/omnipos-checkout-service/internal/order"
)

// Writer is the subset of broker.KafkaProducer the publisher needs.
type Writer interface {
	Publish(ctx context.Context, key string, value []byte) error
}

type KafkaPublisher struct {
	writer Writer
}

var _ order.ReconciliationPublisher = (*KafkaPublisher)(nil)

func NewKafkaPublisher(w Writer) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

// PublishChargeUnrecorded keys by transaction id so replays of one charge
// stay ordered on a single partition.
func (p *KafkaPublisher) PublishChargeUnrecorded(ctx context.Context, ev *order.ChargeUnrecorded) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.writer.Publish(ctx, ev.TransactionID, value)
}
