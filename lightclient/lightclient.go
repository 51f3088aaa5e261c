// Package lightclient implements the light-client service (C10): compact
// headers, Merkle proof construction/verification, and SPV confirmation
// counting for mobile and constrained clients (spec §4.10).
package lightclient

import (
	"github.com/xai-network/xaid/block"
	"github.com/xai-network/xaid/chainstore"
	"github.com/xai-network/xaid/logger"

	"github.com/btcsuite/btclog"
)

// DefaultMinConfirmations is the number of confirmations a transaction
// proof needs before a light client should treat it as final.
const DefaultMinConfirmations = 6

// DefaultHeaderCount bounds get_recent_headers's default page size.
const DefaultHeaderCount = 20

// MaxHeaderCount bounds how many headers a single request may return.
const MaxHeaderCount = 200

// Service exposes the chain store's headers and blocks to light clients
// without requiring them to hold the full chain.
type Service struct {
	store *chainstore.Store
	log   btclog.Logger
}

// New constructs a Service bound to store.
func New(store *chainstore.Store) *Service {
	log, _ := logger.Get(logger.SubsystemTags.SPVC)
	return &Service{store: store, log: log}
}

// HeaderPage is the response to get_recent_headers: a contiguous slice of
// compact headers plus the range actually returned.
type HeaderPage struct {
	LatestHeight int64
	Headers      []*block.Header
	Start        uint64
	End          int64
}

// GetRecentHeaders returns up to count compact headers (no transaction
// bodies), starting at start. If count is zero or exceeds MaxHeaderCount
// it is clamped; the teacher's header-sync RPCs apply the same page-size
// discipline (spec §4.10: "get_recent_headers(count, start)").
func (s *Service) GetRecentHeaders(start, count uint64) HeaderPage {
	if count == 0 {
		count = DefaultHeaderCount
	}
	if count > MaxHeaderCount {
		count = MaxHeaderCount
	}

	tipHeight, ok := s.store.Height()
	if !ok {
		return HeaderPage{LatestHeight: -1, Start: 0, End: -1}
	}

	headers := s.store.RecentHeaders(start, count)
	end := int64(-1)
	if len(headers) > 0 {
		end = int64(start) + int64(len(headers)) - 1
	}
	return HeaderPage{
		LatestHeight: int64(tipHeight),
		Headers:      headers,
		Start:        start,
		End:          end,
	}
}

// Checkpoint is a light client's minimal "where is the chain" snapshot.
type Checkpoint struct {
	LatestHeader *block.Header
	Height       int64
}

// GetCheckpoint returns the current tip's header, for clients that only
// want to confirm they are caught up.
func (s *Service) GetCheckpoint() Checkpoint {
	tip := s.store.Tip()
	if tip == nil {
		return Checkpoint{Height: -1}
	}
	h := tip.Header
	return Checkpoint{LatestHeader: &h, Height: int64(tip.Header.Index)}
}
