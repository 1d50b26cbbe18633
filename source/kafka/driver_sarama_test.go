package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
)

type fakeSession struct {
	ctx context.Context

	mu      sync.Mutex
	marked  []int64
	commits int
}

func (s *fakeSession) Claims() map[string][]int32 { return nil }
func (s *fakeSession) MemberID() string { return "m" }
func (s *fakeSession) GenerationID() int32 { return 1 }
func (s *fakeSession) MarkOffset(string, int32, int64, string) {}
func (s *fakeSession) ResetOffset(string, int32, int64, string) {}
func (s *fakeSession) Context() context.Context { return s.ctx }
func (s *fakeSession) Commit() { s.mu.Lock(); s.commits++; s.mu.Unlock() }
func (s *fakeSession) MarkMessage(m *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	s.marked = append(s.marked, m.Offset)
	s.mu.Unlock()
}

func (s *fakeSession) markedOffsets() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.marked...)
}

type fakeClaim struct {
	msgs chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Topic() string { return "requests" }
func (c *fakeClaim) Partition() int32 { return 0 }
func (c *fakeClaim) InitialOffset() int64 { return 0 }
func (c *fakeClaim) HighWaterMarkOffset() int64 { return 0 }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.msgs }

func message(offset int64, value string) *sarama.ConsumerMessage {
	return &sarama.ConsumerMessage{Topic: "requests", Partition: 0, Offset: offset, Value: []byte(value)}
}

func newDriver(mode CommitMode, capacity int64) *SaramaDriver {
	d := &SaramaDriver{}
	d.init(Config{CommitMode: mode, BackPressure: BackPressureCfg{Capacity: capacity}})
	return d
}

func TestConsumeClaim_AutoCommitMarksAfterEmit(t *testing.T) {
	d := newDriver(CommitAuto, 4)
	claim := &fakeClaim{msgs: make(chan *sarama.ConsumerMessage, 3)}
	claim.msgs <- message(1, `{"provider":"cds","product_type":"ERA5_SL","args":{"a":1}}`)
	claim.msgs <- message(2, `not json`)
	claim.msgs <- message(3, `{"provider":"cds"}`)
	close(claim.msgs)

	var got []Request
	h := &groupHandler{driver: d, emit: func(_ context.Context, r Request) error {
		got = append(got, r)
		return nil
	}}
	sess := &fakeSession{ctx: context.Background()}
	if err := h.ConsumeClaim(sess, claim); err != nil {
		t.Fatalf("ConsumeClaim: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("want 2 requests, got %d", len(got))
	}
	if got[0].Search.Provider != "cds" || got[0].Search.ProductType != "ERA5_SL" || got[0].Checkpoint.Offset != 1 {
		t.Fatalf("unexpected first request: %+v", got[0])
	}
	if m := sess.markedOffsets(); len(m) != 3 {
		t.Fatalf("want every message marked, got %v", m)
	}
	if sess.commits == 0 {
		t.Fatal("expected a commit")
	}
}

func TestConsumeClaim_E2EMarksOnAck(t *testing.T) {
	d := newDriver(CommitE2E, 1)
	claim := &fakeClaim{msgs: make(chan *sarama.ConsumerMessage, 2)}
	claim.msgs <- message(7, `{"provider":"cds"}`)
	claim.msgs <- message(8, `{"provider":"cds"}`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sess := &fakeSession{ctx: ctx}

	emitted := make(chan Request, 2)
	h := &groupHandler{driver: d, emit: func(_ context.Context, r Request) error {
		emitted <- r
		return nil
	}}
	done := make(chan error, 1)
	go func() { done <- h.ConsumeClaim(sess, claim) }()

	first := <-emitted
	// capacity 1: the second request waits for the first ack
	select {
	case r := <-emitted:
		t.Fatalf("request %d emitted before ack", r.Checkpoint.Offset)
	case <-time.After(30 * time.Millisecond):
	}
	if m := sess.markedOffsets(); len(m) != 0 {
		t.Fatalf("marked before ack: %v", m)
	}

	d.OnAck(first.Checkpoint)
	second := <-emitted
	if second.Checkpoint.Offset != 8 {
		t.Fatalf("unexpected second request %+v", second)
	}
	d.OnAck(second.Checkpoint)

	deadline := time.Now().Add(time.Second)
	for len(sess.markedOffsets()) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if m := sess.markedOffsets(); len(m) != 2 || m[0] != 7 || m[1] != 8 {
		t.Fatalf("want offsets 7 and 8 marked, got %v", m)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("ConsumeClaim: %v", err)
	}
}

func TestConsumeClaim_EmitErrorStops(t *testing.T) {
	d := newDriver(CommitE2E, 2)
	claim := &fakeClaim{msgs: make(chan *sarama.ConsumerMessage, 1)}
	claim.msgs <- message(1, `{"provider":"cds"}`)

	boom := errors.New("boom")
	h := &groupHandler{driver: d, emit: func(context.Context, Request) error { return boom }}
	if err := h.ConsumeClaim(&fakeSession{ctx: context.Background()}, claim); !errors.Is(err, boom) {
		t.Fatalf("want emit error, got %v", err)
	}
	if d.cp.Pending() != 0 {
		t.Fatalf("pending not cleared: %d", d.cp.Pending())
	}
}

func TestOnAck_KeepsEveryAck(t *testing.T) {
	d := newDriver(CommitE2E, 1)
	for i := int64(1); i <= 5; i++ {
		d.OnAck(Checkpoint{Offset: i})
	}
	if n := d.acks.len(); n != 5 {
		t.Fatalf("want 5 queued acks, got %d", n)
	}
	got := d.acks.drain()
	if got[0].Offset != 1 || got[4].Offset != 5 {
		t.Fatalf("acks out of order: %+v", got)
	}

	auto := newDriver(CommitAuto, 1)
	auto.OnAck(Checkpoint{Offset: 1})
	if n := auto.acks.len(); n != 0 {
		t.Fatalf("auto mode queued %d acks", n)
	}
}

func TestCleanup_FreesSlotsOfDroppedRequests(t *testing.T) {
	d := newDriver(CommitE2E, 1)
	h := &groupHandler{driver: d, emit: func(context.Context, Request) error { return nil }}

	// first generation: one request emitted, never acked
	ctx, cancel := context.WithCancel(context.Background())
	claim := &fakeClaim{msgs: make(chan *sarama.ConsumerMessage, 1)}
	claim.msgs <- message(1, `{"provider":"cds"}`)
	done := make(chan error, 1)
	sess := &fakeSession{ctx: ctx}
	go func() { done <- h.ConsumeClaim(sess, claim) }()

	deadline := time.Now().Add(time.Second)
	for d.cp.Pending() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("ConsumeClaim: %v", err)
	}
	if err := h.Cleanup(sess); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	// late ack for the dropped request
	d.OnAck(Checkpoint{Topic: "requests", Offset: 1})

	// next generation still reads
	emitted := make(chan Request, 1)
	h.emit = func(_ context.Context, r Request) error {
		emitted <- r
		return nil
	}
	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	claim2 := &fakeClaim{msgs: make(chan *sarama.ConsumerMessage, 1)}
	claim2.msgs <- message(2, `{"provider":"cds"}`)
	go func() { done <- h.ConsumeClaim(&fakeSession{ctx: ctx2}, claim2) }()

	select {
	case r := <-emitted:
		if r.Checkpoint.Offset != 2 {
			t.Fatalf("unexpected request %+v", r)
		}
	case <-time.After(time.Second):
		t.Fatal("no request consumed after rebalance")
	}
	cancel2()
	if err := <-done; err != nil {
		t.Fatalf("ConsumeClaim: %v", err)
	}
}

func TestCommitterDue(t *testing.T) {
	c := NewCommitter(time.Minute)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }
	if !c.Due() {
		t.Fatal("first call should be due")
	}
	if c.Due() {
		t.Fatal("second call within the period should not be due")
	}
	now = now.Add(time.Minute)
	if !c.Due() {
		t.Fatal("due after the period")
	}
}

func TestController(t *testing.T) {
	c := NewController(2)
	if !c.TryAcquire() || !c.TryAcquire() {
		t.Fatal("want two slots")
	}
	if c.TryAcquire() {
		t.Fatal("third slot granted")
	}
	c.Release()
	if !c.TryAcquire() {
		t.Fatal("released slot not reusable")
	}
}
