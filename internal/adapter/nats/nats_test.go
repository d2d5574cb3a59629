package nats

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/NoteVault/internal/domain/event"
	"github.com/Strob0t/NoteVault/internal/logger"
)

// testConnect connects to NATS or skips the test if NATS_URL is not set.
func testConnect(t *testing.T) *Queue {
	t.Helper()

	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("requires NATS_URL")
	}

	q, err := Connect(context.Background(), url, "NOTEVAULT_TEST")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() {
		if err := q.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return q
}

// envelope builds a valid note event for a fresh tenant so parallel runs
// never observe each other's messages.
func envelope(t *testing.T, typ event.Type) (tenantID string, data []byte) {
	t.Helper()
	tenantID = uuid.NewString()
	payload, _ := json.Marshal(event.NotePayload{NoteID: uuid.NewString()})
	data, err := json.Marshal(event.Envelope{
		ID:       uuid.NewString(),
		Type:     typ,
		TenantID: tenantID,
		Payload:  payload,
	})
	if err != nil {
		t.Fatal(err)
	}
	return tenantID, data
}

func TestQueue_PublishSubscribe(t *testing.T) {
	q := testConnect(t)
	tenantID, data := envelope(t, event.TypeNoteCreated)

	var (
		mu   sync.Mutex
		got  *event.Envelope
		done = make(chan struct{})
		once sync.Once
	)

	stop, err := q.Subscribe(context.Background(), string(event.TypeNoteCreated), func(_ context.Context, _ string, d []byte) error {
		var env event.Envelope
		if err := json.Unmarshal(d, &env); err != nil {
			return err
		}
		if env.TenantID != tenantID {
			return nil
		}
		mu.Lock()
		got = &env
		mu.Unlock()
		once.Do(func() { close(done) })
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer stop()

	if err := q.Publish(context.Background(), string(event.TypeNoteCreated), data); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}

	mu.Lock()
	defer mu.Unlock()
	if got == nil || got.Type != event.TypeNoteCreated {
		t.Fatalf("unexpected envelope %+v", got)
	}
}

func TestQueue_RequestIDPropagation(t *testing.T) {
	q := testConnect(t)
	tenantID, data := envelope(t, event.TypeNoteDeleted)

	const wantReqID = "req-abc-123"
	var (
		mu       sync.Mutex
		gotReqID string
		done     = make(chan struct{})
		once     sync.Once
	)

	stop, err := q.Subscribe(context.Background(), string(event.TypeNoteDeleted), func(ctx context.Context, _ string, d []byte) error {
		var env event.Envelope
		_ = json.Unmarshal(d, &env)
		if env.TenantID != tenantID {
			return nil
		}
		mu.Lock()
		gotReqID = logger.RequestID(ctx)
		mu.Unlock()
		once.Do(func() { close(done) })
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer stop()

	ctx := logger.WithRequestID(context.Background(), wantReqID)
	if err := q.Publish(ctx, string(event.TypeNoteDeleted), data); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}

	mu.Lock()
	defer mu.Unlock()
	if gotReqID != wantReqID {
		t.Errorf("request ID = %q, want %q", gotReqID, wantReqID)
	}
}

// consumeDLQ reads dead letters with a raw consumer so they bypass validation.
func consumeDLQ(t *testing.T, q *Queue, subject string) <-chan []byte {
	t.Helper()
	ctx := context.Background()
	c, err := q.js.CreateOrUpdateConsumer(ctx, q.stream, jetstream.ConsumerConfig{
		FilterSubject: subject + dlqSuffix,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		t.Fatalf("create DLQ consumer: %v", err)
	}
	out := make(chan []byte, 16)
	sub, err := c.Consume(func(msg jetstream.Msg) {
		out <- msg.Data()
		_ = msg.Ack()
	})
	if err != nil {
		t.Fatalf("consume DLQ: %v", err)
	}
	t.Cleanup(sub.Stop)
	return out
}

func TestQueue_DLQ_InvalidEnvelope(t *testing.T) {
	q := testConnect(t)
	ctx := context.Background()
	subject := string(event.TypeNoteArchived)
	dlq := consumeDLQ(t, q, subject)

	stop, err := q.Subscribe(ctx, subject, func(context.Context, string, []byte) error { return nil })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer stop()

	if err := q.Publish(ctx, subject, []byte("not-json")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	for {
		select {
		case data := <-dlq:
			if string(data) == "not-json" {
				return
			}
		case <-time.After(10 * time.Second):
			t.Fatal("timed out waiting for DLQ message")
		}
	}
}

func TestQueue_DLQ_RetryExhaustion(t *testing.T) {
	q := testConnect(t)
	ctx := context.Background()
	subject := string(event.TypeNoteUpdated)
	dlq := consumeDLQ(t, q, subject)

	stop, err := q.Subscribe(ctx, subject, func(context.Context, string, []byte) error {
		return errAlwaysFail
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer stop()

	_, data := envelope(t, event.TypeNoteUpdated)
	msg := &nats.Msg{Subject: subject, Data: data, Header: nats.Header{}}
	msg.Header.Set(headerRetryCount, "3")
	if _, err := q.js.PublishMsg(ctx, msg); err != nil {
		t.Fatalf("PublishMsg: %v", err)
	}

	for {
		select {
		case got := <-dlq:
			if string(got) == string(data) {
				return
			}
		case <-time.After(10 * time.Second):
			t.Fatal("timed out waiting for DLQ message after retry exhaustion")
		}
	}
}

func TestQueue_KeyValue(t *testing.T) {
	q := testConnect(t)
	ctx := context.Background()

	kv, err := q.KeyValue(ctx, "notevault-test-kv", 30*time.Second)
	if err != nil {
		t.Fatalf("KeyValue: %v", err)
	}

	if _, err := kv.Put(ctx, "stats.t1", []byte("hello")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	entry, err := kv.Get(ctx, "stats.t1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(entry.Value()) != "hello" {
		t.Errorf("value = %q, want hello", entry.Value())
	}
	if err := kv.Delete(ctx, "stats.t1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := kv.Get(ctx, "stats.t1"); err == nil {
		t.Error("expected error after delete, got nil")
	}
}

func TestQueue_IsConnected(t *testing.T) {
	q := testConnect(t)
	if !q.IsConnected() {
		t.Error("IsConnected() = false after Connect, want true")
	}
}

func TestRetryCount(t *testing.T) {
	h := nats.Header{}
	if retryCount(h) != 0 {
		t.Error("missing header should count as zero")
	}
	h.Set(headerRetryCount, "2")
	if retryCount(h) != 2 {
		t.Errorf("retryCount = %d, want 2", retryCount(h))
	}
	h.Set(headerRetryCount, "x")
	if retryCount(h) != 0 {
		t.Error("malformed header should count as zero")
	}
	if retryCount(nil) != 0 {
		t.Error("nil header should count as zero")
	}
}

var errAlwaysFail = errSentinel("handler always fails")

type errSentinel string

func (e errSentinel) Error() string { return string(e) }
