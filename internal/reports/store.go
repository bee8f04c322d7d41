package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotifyChannel is the Postgres channel report changes are announced on.
const NotifyChannel = "crowdshield_reports"

// Store is the durable report collection.
type Store interface {
	Insert(ctx context.Context, f Fields) (Report, error)
	Get(ctx context.Context, id string) (Report, error)
	// Query returns reports created at or after since, newest first.
	Query(ctx context.Context, since time.Time) ([]Report, error)
	Update(ctx context.Context, id string, p Patch) (Report, error)
	// Subscribe delivers insert and update events until ctx is done.
	Subscribe(ctx context.Context) <-chan Event
}

type notification struct {
	Type EventType `json:"type"`
	ID   string    `json:"id"`
}

// GormStore keeps reports in Postgres. With notify set, every write also
// issues pg_notify in the same transaction and events reach subscribers via
// a Listener; otherwise the store publishes to the broker itself.
type GormStore struct {
	db     *gorm.DB
	broker *Broker
	notify bool
	now    func() time.Time
}

func NewGormStore(db *gorm.DB, broker *Broker, notify bool) *GormStore {
	return &GormStore{db: db, broker: broker, notify: notify, now: time.Now}
}

func (s *GormStore) Insert(ctx context.Context, f Fields) (Report, error) {
	if err := f.Validate(); err != nil {
		return Report{}, err
	}
	r := f.Report(uuid.NewString(), s.now())

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&r).Error; err != nil {
			return fmt.Errorf("insert report: %w", err)
		}
		return s.announce(tx, EventInsert, r.ID)
	})
	if err != nil {
		return Report{}, err
	}

	if !s.notify {
		s.broker.Publish(Event{Type: EventInsert, Report: r})
	}
	return r, nil
}

// validID reports whether id can name a stored report. Ids are uuids; any
// other value cannot match and is answered as not found.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (s *GormStore) Get(ctx context.Context, id string) (Report, error) {
	if !validID(id) {
		return Report{}, ErrNotFound
	}
	var r Report
	err := s.db.WithContext(ctx).First(&r, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Report{}, ErrNotFound
	}
	if err != nil {
		return Report{}, fmt.Errorf("get report %s: %w", id, err)
	}
	return r, nil
}

func (s *GormStore) Query(ctx context.Context, since time.Time) ([]Report, error) {
	var out []Report
	err := s.db.WithContext(ctx).
		Where("created_at >= ?", since.UTC()).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	return out, nil
}

func (s *GormStore) Update(ctx context.Context, id string, p Patch) (Report, error) {
	if err := p.Validate(); err != nil {
		return Report{}, err
	}
	if !validID(id) {
		return Report{}, ErrNotFound
	}

	var r Report
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&r, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("load report %s: %w", id, err)
		}

		r = p.Apply(r)
		changes := map[string]any{}
		if p.Text != nil {
			changes["text"] = r.Text
		}
		if p.CreatedAt != nil {
			changes["created_at"] = r.CreatedAt
		}
		if err := tx.Model(&Report{}).Where("id = ?", id).Updates(changes).Error; err != nil {
			return fmt.Errorf("update report %s: %w", id, err)
		}
		return s.announce(tx, EventUpdate, id)
	})
	if err != nil {
		return Report{}, err
	}

	if !s.notify {
		s.broker.Publish(Event{Type: EventUpdate, Report: r})
	}
	return r, nil
}

func (s *GormStore) Subscribe(ctx context.Context) <-chan Event {
	return s.broker.Subscribe(ctx)
}

func (s *GormStore) announce(tx *gorm.DB, typ EventType, id string) error {
	if !s.notify {
		return nil
	}
	payload, err := json.Marshal(notification{Type: typ, ID: id})
	if err != nil {
		return err
	}
	if err := tx.Exec("SELECT pg_notify(?, ?)", NotifyChannel, string(payload)).Error; err != nil {
		return fmt.Errorf("notify %s: %w", typ, err)
	}
	return nil
}

// MemoryStore is an in-process Store. It publishes events directly.
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[string]Report
	broker  *Broker
	now     func() time.Time

	// FailInserts makes Insert fail, for exercising error paths.
	FailInserts error
}

func NewMemoryStore(broker *Broker) *MemoryStore {
	if broker == nil {
		broker = NewBroker()
	}
	return &MemoryStore{reports: make(map[string]Report), broker: broker, now: time.Now}
}

// WithClock replaces the clock used to stamp created_at.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) Insert(ctx context.Context, f Fields) (Report, error) {
	if err := f.Validate(); err != nil {
		return Report{}, err
	}

	s.mu.Lock()
	if s.FailInserts != nil {
		err := s.FailInserts
		s.mu.Unlock()
		return Report{}, fmt.Errorf("insert report: %w", err)
	}
	r := f.Report(uuid.NewString(), s.now())
	s.reports[r.ID] = r
	s.mu.Unlock()

	s.broker.Publish(Event{Type: EventInsert, Report: r})
	return r, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reports[id]
	if !ok {
		return Report{}, ErrNotFound
	}
	return r, nil
}

func (s *MemoryStore) Query(ctx context.Context, since time.Time) ([]Report, error) {
	s.mu.RLock()
	out := make([]Report, 0, len(s.reports))
	for _, r := range s.reports {
		if !r.CreatedAt.Before(since) {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()

	SortNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, p Patch) (Report, error) {
	if err := p.Validate(); err != nil {
		return Report{}, err
	}

	s.mu.Lock()
	r, ok := s.reports[id]
	if !ok {
		s.mu.Unlock()
		return Report{}, ErrNotFound
	}
	r = p.Apply(r)
	s.reports[id] = r
	s.mu.Unlock()

	s.broker.Publish(Event{Type: EventUpdate, Report: r})
	return r, nil
}

func (s *MemoryStore) Subscribe(ctx context.Context) <-chan Event {
	return s.broker.Subscribe(ctx)
}

// SortNewestFirst orders reports by created_at descending, then id.
func SortNewestFirst(rs []Report) {
	sort.SliceStable(rs, func(i, j int) bool {
		if !rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].CreatedAt.After(rs[j].CreatedAt)
		}
		return rs[i].ID > rs[j].ID
	})
}
