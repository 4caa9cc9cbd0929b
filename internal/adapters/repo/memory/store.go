package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/peertube-pod/internal/core/domain"
	"github.com/peertube-pod/internal/core/services"
)

type rateKey struct {
	accountID int64
	videoID   int64
}

type state struct {
	accounts   map[int64]*domain.Account
	channels   map[int64]*domain.VideoChannel
	videos     map[int64]*domain.Video
	rates      map[rateKey]*domain.AccountVideoRate
	follows    map[int64]*domain.Follow
	pods       map[string]*domain.Pod
	blacklist  map[int64]*domain.VideoBlacklist
	ownerships map[int64]*domain.VideoChangeOwnership
	sequence   int64
}

func newState() *state {
	return &state{
		accounts:   make(map[int64]*domain.Account),
		channels:   make(map[int64]*domain.VideoChannel),
		videos:     make(map[int64]*domain.Video),
		rates:      make(map[rateKey]*domain.AccountVideoRate),
		follows:    make(map[int64]*domain.Follow),
		pods:       make(map[string]*domain.Pod),
		blacklist:  make(map[int64]*domain.VideoBlacklist),
		ownerships: make(map[int64]*domain.VideoChangeOwnership),
	}
}

func cloneMap[K comparable, V any](m map[K]*V) map[K]*V {
	out := make(map[K]*V, len(m))
	for k, v := range m {
		copied := *v
		out[k] = &copied
	}
	return out
}

func (s *state) clone() *state {
	return &state{
		accounts:   cloneMap(s.accounts),
		channels:   cloneMap(s.channels),
		videos:     cloneMap(s.videos),
		rates:      cloneMap(s.rates),
		follows:    cloneMap(s.follows),
		pods:       cloneMap(s.pods),
		blacklist:  cloneMap(s.blacklist),
		ownerships: cloneMap(s.ownerships),
		sequence:   s.sequence,
	}
}

func (s *state) nextID() int64 {
	s.sequence++
	return s.sequence
}

// Store keeps every entity in memory. A transaction works on a private copy of the
// data that replaces the shared one on commit. Writes outside a transaction wait for
// running transactions so a commit never overwrites them.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	data *state
	inTx bool
}

var _ services.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{data: newState()}
}

func (s *Store) Accounts() services.AccountRepository     { return &AccountRepository{s} }
func (s *Store) Channels() services.ChannelRepository     { return &ChannelRepository{s} }
func (s *Store) Videos() services.VideoRepository         { return &VideoRepository{s} }
func (s *Store) Rates() services.RateRepository           { return &RateRepository{s} }
func (s *Store) Follows() services.FollowRepository       { return &FollowRepository{s} }
func (s *Store) Pods() services.PodRepository             { return &PodRepository{s} }
func (s *Store) Blacklist() services.BlacklistRepository  { return &BlacklistRepository{s} }
func (s *Store) Ownerships() services.OwnershipRepository { return &OwnershipRepository{s} }

func (s *Store) lock() {
	if !s.inTx {
		s.txMu.Lock()
	}
	s.mu.Lock()
}

func (s *Store) unlock() {
	s.mu.Unlock()
	if !s.inTx {
		s.txMu.Unlock()
	}
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx services.Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	tx := &Store{data: s.data.clone(), inTx: true}
	s.mu.RUnlock()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = tx.data
	s.mu.Unlock()
	return nil
}

// sortBy orders items by one of id, name, createdAt or likes, "-" meaning descending.
// Ties are broken by id.
func sortBy[T any](items []T, sortKey string, id func(T) int64, less map[string]func(a, b T) bool) {
	desc := strings.HasPrefix(sortKey, "-")
	key := strings.TrimPrefix(sortKey, "-")
	cmp, ok := less[key]
	if !ok {
		cmp = func(a, b T) bool { return id(a) < id(b) }
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if desc {
			a, b = b, a
		}
		if cmp(a, b) {
			return true
		}
		if cmp(b, a) {
			return false
		}
		return id(a) < id(b)
	})
}

func page[T any](items []T, start, count int) []T {
	if start >= len(items) {
		return []T{}
	}
	end := len(items)
	if count > 0 && start+count < end {
		end = start + count
	}
	return items[start:end]
}
