package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/fekuna/omnipos-checkout-service/internal/order"
	"github.com/fekuna/omnipos-checkout-service/pkg/logger"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

type fakeConsumer struct {
	msgs      []kafka.Message
	committed []kafka.Message
	cancel    context.CancelFunc
}

func (c *fakeConsumer) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(c.msgs) == 0 {
		c.cancel()
		return kafka.Message{}, ctx.Err()
	}
	m := c.msgs[0]
	c.msgs = c.msgs[1:]
	return m, nil
}

func (c *fakeConsumer) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	c.committed = append(c.committed, msgs...)
	return nil
}

type fakeUseCase struct {
	order.UseCase

	calls    int
	recordFn func(ev *order.ChargeUnrecorded) (bool, error)
}

func (f *fakeUseCase) RecordCharge(_ context.Context, ev *order.ChargeUnrecorded) (bool, error) {
	f.calls++
	return f.recordFn(ev)
}

type fakeWriter struct {
	key   string
	value []byte
}

func (w *fakeWriter) Publish(_ context.Context, key string, value []byte) error {
	w.key, w.value = key, value
	return nil
}

func event(t *testing.T, txID, eventType string) kafka.Message {
	t.Helper()
	b, err := json.Marshal(&order.ChargeUnrecorded{
		EventID:       "e-" + txID,
		EventType:     eventType,
		TransactionID: txID,
		Amount:        decimal.RequireFromString("12.00"),
	})
	if err != nil {
		t.Fatal(err)
	}
	return kafka.Message{Key: []byte(txID), Value: b}
}

func run(t *testing.T, uc order.UseCase, msgs ...kafka.Message) *fakeConsumer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	c := &fakeConsumer{msgs: msgs, cancel: cancel}
	l := NewListener(c, uc, logger.NewNop())
	l.backoff = 0
	l.Start(ctx)
	return c
}

func TestListener(t *testing.T) {
	t.Run("Given a charge event When consumed Then it is recorded and committed", func(t *testing.T) {
		var got *order.ChargeUnrecorded
		uc := &fakeUseCase{recordFn: func(ev *order.ChargeUnrecorded) (bool, error) {
			got = ev
			return true, nil
		}}

		c := run(t, uc, event(t, "tx-1", order.EventChargeUnrecorded))

		if got == nil || got.TransactionID != "tx-1" || !got.Amount.Equal(decimal.NewFromInt(12)) {
			t.Fatalf("recorded = %+v", got)
		}
		if len(c.committed) != 1 {
			t.Errorf("committed %d messages, want 1", len(c.committed))
		}
	})

	t.Run("Given a transient failure When consumed Then it retries", func(t *testing.T) {
		uc := &fakeUseCase{}
		uc.recordFn = func(*order.ChargeUnrecorded) (bool, error) {
			if uc.calls < 2 {
				return false, errors.New("db down")
			}
			return true, nil
		}

		run(t, uc, event(t, "tx-2", order.EventChargeUnrecorded))
		if uc.calls != 2 {
			t.Errorf("calls = %d, want 2", uc.calls)
		}
	})

	t.Run("Given a persistent failure When consumed Then it gives up after three attempts and moves on", func(t *testing.T) {
		uc := &fakeUseCase{recordFn: func(*order.ChargeUnrecorded) (bool, error) {
			return false, errors.New("db down")
		}}

		c := run(t, uc, event(t, "tx-3", order.EventChargeUnrecorded))
		if uc.calls != maxAttempts {
			t.Errorf("calls = %d, want %d", uc.calls, maxAttempts)
		}
		if len(c.committed) != 1 {
			t.Errorf("committed %d, want 1", len(c.committed))
		}
	})

	t.Run("Given unrelated or malformed messages When consumed Then they are skipped", func(t *testing.T) {
		uc := &fakeUseCase{recordFn: func(*order.ChargeUnrecorded) (bool, error) { return true, nil }}

		c := run(t, uc, event(t, "tx-4", "OrderCreated"), kafka.Message{Value: []byte("{not json")})
		if uc.calls != 0 {
			t.Errorf("calls = %d, want 0", uc.calls)
		}
		if len(c.committed) != 2 {
			t.Errorf("committed %d, want 2", len(c.committed))
		}
	})
}

type blockingConsumer struct{ fakeConsumer }

func (c *blockingConsumer) FetchMessage(ctx context.Context) (kafka.Message, error) {
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func TestListener_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	l := NewListener(&blockingConsumer{}, &fakeUseCase{}, logger.NewNop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		l.Start(ctx)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

func TestKafkaPublisher(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisher(w)

	ev := &order.ChargeUnrecorded{EventType: order.EventChargeUnrecorded, TransactionID: "tx-9", Amount: decimal.NewFromInt(3)}
	if err := p.PublishChargeUnrecorded(context.Background(), ev); err != nil {
		t.Fatal(err)
	}
	if w.key != "tx-9" {
		t.Errorf("key = %q, want transaction id", w.key)
	}
	var decoded order.ChargeUnrecorded
	if err := json.Unmarshal(w.value, &decoded); err != nil || decoded.TransactionID != "tx-9" {
		t.Errorf("payload = %s (%v)", w.value, err)
	}
}
