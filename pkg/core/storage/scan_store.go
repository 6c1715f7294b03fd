package storage

import (
	"errors"
	"math"
	"sync"

	"github.com/auditoracle/audit-oracle/pkg/core/state"
	"github.com/ethereum/go-ethereum/common"
)

// DefaultScanStoreCapacity is the number of scan results kept by default.
const DefaultScanStoreCapacity = 1000

// ErrNotFound is returned when there is no scan result for the given address.
var ErrNotFound = errors.New("scan result not found")

// ScanStore is a fixed-capacity insertion-ordered in-memory ledger of scan
// results. When it's full, every new result evicts the oldest one. It's safe
// for concurrent use.
type ScanStore struct {
	mtx sync.RWMutex
	// buf is a ring, head points to the oldest element.
	buf  []state.ScanResult
	head int
	size int

	subsMtx sync.RWMutex
	subs    map[chan<- state.ScanResult]struct{}
}

// NewScanStore creates a store holding up to capacity results, non-positive
// capacity means DefaultScanStoreCapacity.
func NewScanStore(capacity int) *ScanStore {
	if capacity <= 0 {
		capacity = DefaultScanStoreCapacity
	}
	return &ScanStore{
		buf:  make([]state.ScanResult, capacity),
		subs: make(map[chan<- state.ScanResult]struct{}),
	}
}

// Add appends the result evicting the oldest one if the store is full. Append
// and eviction happen under the same lock, so the store never exceeds its
// capacity. Subscribers are notified after the result is stored.
func (s *ScanStore) Add(r state.ScanResult) {
	s.mtx.Lock()
	if s.size < len(s.buf) {
		s.buf[(s.head+s.size)%len(s.buf)] = r
		s.size++
	} else {
		s.buf[s.head] = r
		s.head = (s.head + 1) % len(s.buf)
	}
	s.mtx.Unlock()

	s.notify(r)
}

// at returns i-th element counting from the oldest one, it's supposed to be
// called with mutex held.
func (s *ScanStore) at(i int) state.ScanResult {
	return s.buf[(s.head+i)%len(s.buf)]
}

// Len returns the number of stored results.
func (s *ScanStore) Len() int {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.size
}

// Cap returns store capacity.
func (s *ScanStore) Cap() int {
	return len(s.buf)
}

// Recent returns up to limit results starting from the most recent one.
func (s *ScanStore) Recent(limit int) []state.ScanResult {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	if limit > s.size {
		limit = s.size
	}
	if limit <= 0 {
		return []state.ScanResult{}
	}
	res := make([]state.ScanResult, 0, limit)
	for i := s.size - 1; i >= s.size-limit; i-- {
		res = append(res, s.at(i))
	}
	return res
}

// ByAddress returns the earliest stored result for the given address. Later
// results for the same contract are not considered while the earliest one is
// still in the store.
func (s *ScanStore) ByAddress(addr common.Address) (state.ScanResult, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	for i := 0; i < s.size; i++ {
		if r := s.at(i); r.ContractAddress == addr {
			return r, nil
		}
	}
	return state.ScanResult{}, ErrNotFound
}

// Stats returns aggregated statistics over the stored results. AverageScore is
// rounded to two decimal places and is zero for an empty store.
func (s *ScanStore) Stats() state.Stats {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	var (
		st  = state.Stats{TotalScans: s.size}
		sum int
	)
	for i := 0; i < s.size; i++ {
		r := s.at(i)
		sum += int(r.Score)
		if r.HasCertificate {
			st.TotalCertificates++
		}
	}
	if s.size != 0 {
		st.AverageScore = math.Round(float64(sum)*100/float64(s.size)) / 100
	}
	return st
}

// SubscribeForScans adds the given channel to the list of new scan result
// receivers. Notifications are not blocking, a receiver that doesn't keep up
// misses results.
func (s *ScanStore) SubscribeForScans(ch chan<- state.ScanResult) {
	s.subsMtx.Lock()
	s.subs[ch] = struct{}{}
	s.subsMtx.Unlock()
}

// UnsubscribeFromScans removes the given channel from the list of receivers.
// The channel is not closed.
func (s *ScanStore) UnsubscribeFromScans(ch chan<- state.ScanResult) {
	s.subsMtx.Lock()
	delete(s.subs, ch)
	s.subsMtx.Unlock()
}

func (s *ScanStore) notify(r state.ScanResult) {
	s.subsMtx.RLock()
	defer s.subsMtx.RUnlock()
	for ch := range s.subs {
		select {
		case ch <- r:
		default:
		}
	}
}
