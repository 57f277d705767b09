package notification

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// fakeTransport replays scripted Deliver errors; once the script runs out
// every call succeeds.
type fakeTransport struct {
	mu         sync.Mutex
	configured bool
	errs       []error
	calls      int
	sent       []*Message
	verifyErr  error
	verifyHook func()
	verified   int
}

func (f *fakeTransport) IsConfigured() bool { return f.configured }
func (f *fakeTransport) Name() string       { return "fake" }

func (f *fakeTransport) Deliver(ctx context.Context, msg *Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= len(f.errs) && f.errs[f.calls-1] != nil {
		return "", f.errs[f.calls-1]
	}
	f.sent = append(f.sent, msg)
	return fmt.Sprintf("msg-%d", f.calls), nil
}

func (f *fakeTransport) Verify(ctx context.Context) error {
	f.mu.Lock()
	f.verified++
	f.mu.Unlock()
	if f.verifyHook != nil {
		f.verifyHook()
	}
	return f.verifyErr
}

func (f *fakeTransport) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeResolver renders a fixed message per kind.
type fakeResolver struct{}

func (fakeResolver) Resolve(kind Kind, p Payload) (RenderedMessage, error) {
	if !kind.Valid() {
		return RenderedMessage{}, &UnknownKindError{Kind: kind}
	}
	return RenderedMessage{
		Subject: string(kind) + " " + p.Reference(),
		Body:    "<p>" + p.Reference() + "</p>",
		Text:    p.Reference(),
	}, nil
}

// memStore is an in-memory LogStore.
type memStore struct {
	mu      sync.Mutex
	logs    map[string]*DeliveryLog
	seq     int
	failGet error
	now     func() time.Time
}

func newMemStore() *memStore {
	return &memStore{logs: make(map[string]*DeliveryLog), now: time.Now}
}

func (m *memStore) Create(ctx context.Context, log *DeliveryLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	log.ID = fmt.Sprintf("log-%d", m.seq)
	log.CreatedAt = m.now()
	log.UpdatedAt = log.CreatedAt
	cp := *log
	m.logs[log.ID] = &cp
	return nil
}

// put stores log as is, keeping its timestamps.
func (m *memStore) put(log *DeliveryLog) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *log
	m.logs[log.ID] = &cp
}

func (m *memStore) get(id string) *DeliveryLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.logs[id]; ok {
		cp := *l
		return &cp
	}
	return nil
}

func (m *memStore) GetByID(ctx context.Context, id string) (*DeliveryLog, error) {
	if m.failGet != nil {
		return nil, m.failGet
	}
	return m.get(id), nil
}

func (m *memStore) GetByIdempotencyKey(ctx context.Context, key string) (*DeliveryLog, error) {
	if m.failGet != nil {
		return nil, m.failGet
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.logs {
		if l.IdempotencyKey == key {
			cp := *l
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) Update(ctx context.Context, id string, u LogUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.logs[id]
	if !ok {
		return errors.New("no such log")
	}
	l.Status = u.Status
	if u.Attempts > 0 {
		l.Attempts = u.Attempts
	}
	if u.ProviderMessageID != "" {
		l.ProviderMessageID = u.ProviderMessageID
	}
	if u.ErrorMessage != "" {
		l.ErrorMessage = u.ErrorMessage
	}
	l.UpdatedAt = m.now()
	return nil
}

func (m *memStore) List(ctx context.Context, f ListFilter) ([]*DeliveryLog, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*DeliveryLog
	for _, l := range m.logs {
		if f.Status != "" && string(l.Status) != f.Status {
			continue
		}
		if f.Kind != "" && string(l.Kind) != f.Kind {
			continue
		}
		cp := *l
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *memStore) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]*DeliveryLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*DeliveryLog
	for _, l := range m.logs {
		if (l.Status == StatusQueued || l.Status == StatusProcessing) && l.UpdatedAt.Before(olderThan) {
			cp := *l
			out = append(out, &cp)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeEnqueuer struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (f *fakeEnqueuer) EnqueueDelivery(logID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.ids = append(f.ids, logID)
	return nil
}

type fakeLimiter struct {
	allow bool
	err   error
}

func (f fakeLimiter) Allow(ctx context.Context, recipient string) (bool, error) {
	return f.allow, f.err
}

func testOrder(number string) Order {
	return Order{
		OrderNumber:  number,
		CustomerName: "Ada Lovelace",
		Email:        "ada@example.com",
		Card:         CardConfig{FirstName: "Ada", LastName: "Lovelace", Quantity: 1},
		Shipping: Address{
			FullName:     "Ada Lovelace",
			AddressLine1: "1 Analytical Way",
			City:         "London",
			Country:      "UK",
			PostalCode:   "N1",
		},
		Pricing: Pricing{Subtotal: 29, Shipping: 5, Tax: 2.5, Total: 36.5},
	}
}

// noSleep records requested delays without waiting.
type noSleep struct {
	mu     sync.Mutex
	delays []time.Duration
	err    error
}

func (n *noSleep) sleep(ctx context.Context, d time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.delays = append(n.delays, d)
	return n.err
}
