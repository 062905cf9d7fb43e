// Package memory is an in-process Store. Records are spread over shards
// keyed by a hash of (subject, topic) so writers to different keys rarely
// contend and a single key is always updated under one mutex.
package memory

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arxon-dev/topicperf/internal/adapters/repository"
	"github.com/arxon-dev/topicperf/internal/domain/model"
)

const defaultShardCount = 32

type shard struct {
	mu      sync.RWMutex
	records map[model.Key]*model.PerformanceRecord
}

// Store implements repository.Store in memory.
type Store struct {
	shards []*shard
	clock  repository.Clock

	tmu      sync.RWMutex
	timeline map[string]map[string]model.DailyTimelineEntry

	closed atomic.Bool
}

// Option configures a Store.
type Option func(*Store)

// WithShardCount sets the number of shards.
func WithShardCount(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.shards = make([]*shard, n)
		}
	}
}

// WithClock overrides time.Now.
func WithClock(c repository.Clock) Option {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		shards:   make([]*shard, defaultShardCount),
		clock:    time.Now,
		timeline: make(map[string]map[string]model.DailyTimelineEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	for i := range s.shards {
		s.shards[i] = &shard{records: make(map[model.Key]*model.PerformanceRecord)}
	}
	return s
}

func (s *Store) shardFor(k model.Key) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(k.SubjectID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(k.Topic))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

func (s *Store) check(ctx context.Context) error {
	if s.closed.Load() {
		return repository.ErrClosed
	}
	return ctx.Err()
}

// upsert runs fn on the key's record under the shard lock, creating a zeroed
// record first when needed.
func (s *Store) upsert(ctx context.Context, subjectID, topic string, fn func(r *model.PerformanceRecord, now time.Time) error) (model.PerformanceRecord, error) {
	if err := s.check(ctx); err != nil {
		return model.PerformanceRecord{}, err
	}
	if err := repository.ValidateKey(subjectID, topic); err != nil {
		return model.PerformanceRecord{}, err
	}
	k := model.Key{SubjectID: subjectID, Topic: topic}
	sh := s.shardFor(k)
	now := s.clock()

	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec, ok := sh.records[k]
	if !ok {
		created := model.NewPerformanceRecord(subjectID, topic, now)
		rec = &created
	}
	next := *rec
	if fn != nil {
		if err := fn(&next, now); err != nil {
			return model.PerformanceRecord{}, err
		}
	}
	*rec = next
	sh.records[k] = rec
	return next, nil
}

func (s *Store) GetOrCreate(ctx context.Context, subjectID, topic string) (model.PerformanceRecord, error) {
	return s.upsert(ctx, subjectID, topic, nil)
}

func (s *Store) RecordOutcome(ctx context.Context, subjectID, topic string, correct bool) (model.PerformanceRecord, error) {
	return s.upsert(ctx, subjectID, topic, func(r *model.PerformanceRecord, now time.Time) error {
		r.Apply(correct, now)
		return nil
	})
}

func (s *Store) BulkReconcile(ctx context.Context, subjectID, topic string, total, correct uint64) (model.PerformanceRecord, error) {
	if err := repository.ValidateCounts(total, correct); err != nil {
		return model.PerformanceRecord{}, err
	}
	return s.upsert(ctx, subjectID, topic, func(r *model.PerformanceRecord, now time.Time) error {
		return r.Reconcile(total, correct, now)
	})
}

func (s *Store) GetPerformance(ctx context.Context, subjectID, topic string) (model.PerformanceRecord, bool, error) {
	if err := s.check(ctx); err != nil {
		return model.PerformanceRecord{}, false, err
	}
	if err := repository.ValidateKey(subjectID, topic); err != nil {
		return model.PerformanceRecord{}, false, err
	}
	k := model.Key{SubjectID: subjectID, Topic: topic}
	sh := s.shardFor(k)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	rec, ok := sh.records[k]
	if !ok {
		return model.PerformanceRecord{}, false, nil
	}
	return *rec, true, nil
}

func (s *Store) Insert(ctx context.Context, rec model.PerformanceRecord) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("%w: %w", repository.ErrInvalid, err)
	}
	k := rec.Key()
	sh := s.shardFor(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, exists := sh.records[k]; exists {
		return fmt.Errorf("%w: duplicate key %s", repository.ErrIntegrity, k)
	}
	cp := rec
	sh.records[k] = &cp
	return nil
}

// snapshot copies the records accepted by keep, sorted by subject then topic.
func (s *Store) snapshot(keep func(r *model.PerformanceRecord) bool) []model.PerformanceRecord {
	var out []model.PerformanceRecord
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, r := range sh.records {
			if keep(r) {
				out = append(out, *r)
			}
		}
		sh.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SubjectID != out[j].SubjectID {
			return out[i].SubjectID < out[j].SubjectID
		}
		return out[i].Topic < out[j].Topic
	})
	return out
}

func (s *Store) ListBySubject(ctx context.Context, subjectID string) ([]model.PerformanceRecord, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	return s.snapshot(func(r *model.PerformanceRecord) bool { return r.SubjectID == subjectID }), nil
}

func (s *Store) ListAll(ctx context.Context) ([]model.PerformanceRecord, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	return s.snapshot(func(*model.PerformanceRecord) bool { return true }), nil
}

func (s *Store) ListActiveBetween(ctx context.Context, subjectID string, from, to time.Time) ([]model.PerformanceRecord, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	return s.snapshot(func(r *model.PerformanceRecord) bool {
		return r.SubjectID == subjectID && !r.LastActivity.Before(from) && r.LastActivity.Before(to)
	}), nil
}

func (s *Store) Subjects(ctx context.Context) ([]string, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	set := make(map[string]struct{})
	for _, sh := range s.shards {
		sh.mu.RLock()
		for k := range sh.records {
			set[k.SubjectID] = struct{}{}
		}
		sh.mu.RUnlock()
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) deleteWhere(match func(k model.Key) bool) int64 {
	var n int64
	for _, sh := range s.shards {
		sh.mu.Lock()
		for k := range sh.records {
			if match(k) {
				delete(sh.records, k)
				n++
			}
		}
		sh.mu.Unlock()
	}
	return n
}

func (s *Store) DeleteSubject(ctx context.Context, subjectID string) (int64, error) {
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	if err := repository.ValidateSubject(subjectID); err != nil {
		return 0, err
	}
	n := s.deleteWhere(func(k model.Key) bool { return k.SubjectID == subjectID })
	s.tmu.Lock()
	delete(s.timeline, subjectID)
	s.tmu.Unlock()
	return n, nil
}

func (s *Store) DeleteTopic(ctx context.Context, topic string) (int64, error) {
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	return s.deleteWhere(func(k model.Key) bool { return k.Topic == topic }), nil
}

func (s *Store) ReplaceTimeline(ctx context.Context, subjectID, date string, entry *model.DailyTimelineEntry) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if err := repository.ValidateSubject(subjectID); err != nil {
		return err
	}
	s.tmu.Lock()
	defer s.tmu.Unlock()
	days := s.timeline[subjectID]
	if days == nil {
		days = make(map[string]model.DailyTimelineEntry)
		s.timeline[subjectID] = days
	}
	delete(days, date)
	if entry != nil {
		days[date] = *entry
	}
	return nil
}

func (s *Store) Timeline(ctx context.Context, subjectID, fromDate, toDate string) ([]model.DailyTimelineEntry, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	s.tmu.RLock()
	defer s.tmu.RUnlock()
	var out []model.DailyTimelineEntry
	for date, e := range s.timeline[subjectID] {
		if date >= fromDate && date <= toDate {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// Close marks the store closed. Data is discarded with the process.
func (s *Store) Close() error {
	s.closed.Store(true)
	return nil
}
