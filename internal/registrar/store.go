package registrar

import (
	"net"
	"sort"
	"sync"
	"time"

	"github.com/zurustar/sipproxy/internal/logging"
	"github.com/zurustar/sipproxy/internal/transport"
)

// Store is the in-memory registrar keyed by address-of-record.
//
// Staleness is only discovered on access: nothing evicts entries in the
// background. All operations are serialized by a single mutex.
type Store struct {
	mu      sync.Mutex
	entries map[string]*Entry
	clock   func() time.Time
	logger  logging.Logger
}

// Option configures a Store
type Option func(*Store)

// WithClock replaces the wall clock used for expiry computations
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		s.clock = clock
	}
}

// NewStore creates an empty registrar
func NewStore(logger logging.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	s := &Store{
		entries: make(map[string]*Entry),
		clock:   time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the store's current Unix time
func (s *Store) Now() int64 {
	return s.clock().Unix()
}

// Register records the location of aor for expires seconds.
//
// An expires of 0 removes an existing entry. When aor is not registered a
// zero expires still stores an entry that is already stale.
func (s *Store) Register(aor, contact string, tr transport.Sender, source *net.UDPAddr, expires int) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now()
	if expires == 0 {
		if _, ok := s.entries[aor]; ok {
			delete(s.entries, aor)
			s.logger.Info("registration removed", logging.AORField(aor))
			return Unregistered
		}
	}

	s.entries[aor] = &Entry{
		AOR:       aor,
		Contact:   contact,
		Transport: tr,
		Source:    source,
		Expiry:    now + int64(expires),
	}
	s.logger.Info("registration stored",
		logging.AORField(aor),
		logging.StringField("contact", contact),
		logging.AddressField("source", source),
		logging.IntField("expires", expires))
	return Registered
}

// LookupValid returns the entry for aor if it has not expired.
// An expired entry is deleted and reported as missing.
func (s *Store) LookupValid(aor string) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[aor]
	if !ok {
		return nil, false
	}
	if entry.Expiry > s.Now() {
		e := *entry
		return &e, true
	}
	delete(s.entries, aor)
	s.logger.Warn("registration has expired", logging.AORField(aor))
	return nil, false
}

// LookupRaw returns the entry for aor whether or not it has expired
func (s *Store) LookupRaw(aor string) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[aor]
	if !ok {
		return nil, false
	}
	e := *entry
	return &e, true
}

// Unregister deletes aor and reports whether it was present
func (s *Store) Unregister(aor string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[aor]; !ok {
		return false
	}
	delete(s.entries, aor)
	return true
}

// Len returns the number of stored entries, stale ones included
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Snapshot returns a copy of every entry sorted by AOR. Stale entries are kept.
func (s *Store) Snapshot() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].AOR < entries[j].AOR
	})
	return entries
}

// Peek returns a copy of the entry for aor without checking or purging it
func (s *Store) Peek(aor string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[aor]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Dump writes every entry to the debug log
func (s *Store) Dump() {
	for _, e := range s.Snapshot() {
		s.logger.Debug("registrar entry",
			logging.AORField(e.AOR),
			logging.StringField("contact", e.Contact),
			logging.AddressField("source", e.Source))
	}
}

var (
	_ Registrar = (*Store)(nil)
	_ Viewer    = (*Store)(nil)
)
