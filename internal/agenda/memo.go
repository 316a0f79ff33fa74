package agenda

import (
	"sync"
	"time"

	"github.com/mitchellh/hashstructure/v2"

	appLog "trackmyevents/internal/log"
	"trackmyevents/internal/model"
	"trackmyevents/internal/recurrence"
)

// MemoConfig holds configuration for the expansion memo.
type MemoConfig struct {
	TTL        time.Duration // How long entries stay valid
	MaxEntries int           // Maximum number of entries kept
}

var DefaultMemoConfig = MemoConfig{
	TTL:        10 * time.Minute,
	MaxEntries: 2000,
}

type memoEntry struct {
	occs       []model.Occurrence
	status     expandStatus
	expiresAt  time.Time
	accessedAt time.Time
}

// Memo caches per-event expansions. Views that re-render every second
// (countdowns) ask for the same expansion over and over; the memo turns that
// into a map lookup. Entries are keyed by a hash of everything the
// expansion depends on, so an edited event simply misses.
type Memo struct {
	mu      sync.Mutex
	entries map[uint64]*memoEntry
	ttl     time.Duration
	max     int
	now     func() time.Time

	hits, misses int
}

func NewMemo(cfg MemoConfig) *Memo {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultMemoConfig.TTL
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMemoConfig.MaxEntries
	}
	return &Memo{
		entries: make(map[uint64]*memoEntry),
		ttl:     cfg.TTL,
		max:     cfg.MaxEntries,
		now:     time.Now,
	}
}

// memoKey lists the inputs of a single event expansion. The window is not
// part of it: expansions are cached unwindowed and filtered per call.
type memoKey struct {
	ID          string
	TargetDate  string
	SnoozeDates string
	Title       string
	Description string
	Category    string
	Location    string
	Offsets     [2]int
	Limits      recurrence.Limits
}

// zoneOffsets returns loc's UTC offset at the event's target instant and half
// a year later. Zones sharing a name (time.FixedZone) differ here.
func zoneOffsets(loc *time.Location, target string) [2]int {
	if loc == nil {
		loc = time.UTC
	}
	at, _, err := recurrence.ParseMoment(target, loc)
	if err != nil {
		at = time.Time{}
	}
	at = at.In(loc)
	_, first := at.Zone()
	_, later := at.AddDate(0, 6, 0).Zone()
	return [2]int{first, later}
}

func (m *Memo) key(ev model.Event, cfg ExpandConfig) (uint64, error) {
	return hashstructure.Hash(memoKey{
		ID:          ev.ID,
		TargetDate:  ev.TargetDate,
		SnoozeDates: string(ev.SnoozeDates),
		Title:       ev.Title,
		Description: ev.Description,
		Category:    CategoryPath(cfg.Categories, ev.CategoryID),
		Location:    cfg.DisplayLocation.String(),
		Offsets:     zoneOffsets(cfg.DisplayLocation, ev.TargetDate),
		Limits:      cfg.Limits,
	}, hashstructure.FormatV2, nil)
}

func (m *Memo) expand(ev model.Event, cfg ExpandConfig) ([]model.Occurrence, expandStatus) {
	key, err := m.key(ev, cfg)
	if err != nil {
		appLog.Error("memo: hash failed", err, "event", ev.ID)
		return expandEvent(ev, cfg)
	}

	now := m.now()
	m.mu.Lock()
	if e, ok := m.entries[key]; ok && now.Before(e.expiresAt) {
		e.accessedAt = now
		m.hits++
		m.mu.Unlock()
		return e.occs, e.status
	}
	m.misses++
	m.mu.Unlock()

	occs, status := expandEvent(ev, cfg)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = &memoEntry{occs: occs, status: status, expiresAt: now.Add(m.ttl), accessedAt: now}
	if len(m.entries) > m.max {
		m.cleanup(now)
	}
	return occs, status
}

// cleanup removes expired entries and then the least recently used ones
// until the memo is back under its limit. Callers hold m.mu.
func (m *Memo) cleanup(now time.Time) {
	for k, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, k)
		}
	}
	for len(m.entries) > m.max {
		var oldest uint64
		var oldestAt time.Time
		first := true
		for k, e := range m.entries {
			if first || e.accessedAt.Before(oldestAt) {
				oldest, oldestAt, first = k, e.accessedAt, false
			}
		}
		delete(m.entries, oldest)
	}
}

// Reset drops every entry, e.g. after the source document was reloaded.
func (m *Memo) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[uint64]*memoEntry)
}

// MemoStats provides information about memo performance.
type MemoStats struct {
	Entries int
	Hits    int
	Misses  int
}

func (m *Memo) Stats() MemoStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MemoStats{Entries: len(m.entries), Hits: m.hits, Misses: m.misses}
}

// Expander is ExpandOccurrences backed by a Memo.
type Expander struct {
	Memo *Memo
}

func NewExpander(cfg MemoConfig) *Expander {
	return &Expander{Memo: NewMemo(cfg)}
}

func (x *Expander) ExpandOccurrences(events []model.Event, cfg ExpandConfig) (ExpandResult, error) {
	if err := cfg.normalize(); err != nil {
		return ExpandResult{}, err
	}
	return expandAll(events, cfg, x.Memo.expand), nil
}
