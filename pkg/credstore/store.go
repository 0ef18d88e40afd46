// Package credstore holds the in-memory username to password mapping used to
// authenticate clients.
//
// The mapping is copy-on-write: Load builds a brand new map and publishes it
// with a single atomic pointer swap, Clear publishes an empty one. Lookups
// read whatever snapshot is current without taking a lock, so they always see
// the complete result of exactly one Load or Clear. Writers serialize on a
// mutex and never block readers.
package credstore

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/marmos91/yamlauth/internal/logger"
	"github.com/marmos91/yamlauth/pkg/credentials"
)

// State is the lifecycle state of a Store.
type State int

const (
	// StateEmpty is the initial state and the state after Clear.
	StateEmpty State = iota
	// StatePopulated is the state after a successful Load.
	StatePopulated
)

func (s State) String() string {
	if s == StatePopulated {
		return "populated"
	}
	return "empty"
}

// snapshot is published once and never mutated afterwards.
type snapshot struct {
	users map[string]string
	state State
}

var emptySnapshot = &snapshot{users: map[string]string{}, state: StateEmpty}

// Store is the credential authority for one plugin instance.
type Store struct {
	current atomic.Pointer[snapshot]

	// writeMu orders Load and Clear against each other.
	writeMu sync.Mutex

	log     *slog.Logger
	metrics *Metrics
}

// Option configures a Store.
type Option func(*Store)

// WithLogger routes store debug output to l instead of the process logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.log = l
	}
}

// WithMetrics attaches Prometheus metrics. A nil *Metrics is allowed.
func WithMetrics(m *Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}
	s.current.Store(emptySnapshot)
	return s
}

// Load replaces the whole mapping with records folded left to right, so a
// later duplicate username overwrites an earlier one.
func (s *Store) Load(records []credentials.Record) {
	users := make(map[string]string, len(records))
	for _, r := range records {
		users[r.Username] = r.Password
	}
	next := &snapshot{users: users, state: StatePopulated}

	s.writeMu.Lock()
	s.current.Store(next)
	s.metrics.recordSwap(opLoad, len(users))
	s.writeMu.Unlock()

	s.debug("credentials loaded", logger.Count(len(records)), slog.Int("users", len(users)))
}

// Clear drops every credential. Clearing an empty store is a no-op apart from
// the metric.
func (s *Store) Clear() {
	s.writeMu.Lock()
	s.current.Store(emptySnapshot)
	s.metrics.recordSwap(opClear, 0)
	s.writeMu.Unlock()

	s.debug("credentials cleared")
}

// HasUser reports whether username is known. The empty string is an
// ordinary key.
func (s *Store) HasUser(username string) bool {
	return s.View().HasUser(username)
}

// CheckUser reports whether password matches the stored password for
// username. Comparison is plain byte-for-byte string equality.
func (s *Store) CheckUser(username, password string) bool {
	v := s.View()
	result := v.check(username, password)

	s.metrics.recordCheck(result)
	s.debug("credential check", logger.Username(username), logger.Result(result))

	return result == ResultSuccess
}

// State returns the current lifecycle state.
func (s *Store) State() State {
	return s.current.Load().state
}

// Len returns the number of distinct usernames currently loaded.
func (s *Store) Len() int {
	return len(s.current.Load().users)
}

// Usernames returns the loaded usernames in sorted order.
func (s *Store) Usernames() []string {
	return s.View().Usernames()
}

// View returns the current snapshot. Successive lookups on the same View are
// answered from one mapping even if the store is reloaded in between.
func (s *Store) View() View {
	return View{snap: s.current.Load()}
}

func (s *Store) debug(msg string, args ...any) {
	if s.log != nil {
		s.log.Debug(msg, args...)
		return
	}
	if !logger.IsDebug() {
		return
	}
	logger.Debug(msg, append([]any{logger.Component("credstore")}, args...)...)
}

// View is a read-only snapshot of a Store.
type View struct {
	snap *snapshot
}

// HasUser reports whether username is present in the snapshot.
func (v View) HasUser(username string) bool {
	_, ok := v.snap.users[username]
	return ok
}

// CheckUser reports whether username/password match the snapshot.
func (v View) CheckUser(username, password string) bool {
	return v.check(username, password) == ResultSuccess
}

// State returns the state the store was in when the snapshot was taken.
func (v View) State() State {
	return v.snap.state
}

// Len returns the number of users in the snapshot.
func (v View) Len() int {
	return len(v.snap.users)
}

// Usernames returns the snapshot's usernames, sorted.
func (v View) Usernames() []string {
	names := make([]string, 0, len(v.snap.users))
	for name := range v.snap.users {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (v View) check(username, password string) string {
	stored, ok := v.snap.users[username]
	if !ok {
		return ResultUnknownUser
	}
	if stored != password {
		return ResultBadPassword
	}
	return ResultSuccess
}
