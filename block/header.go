package block

import (
	"sort"
	"strconv"
	"strings"

	"github.com/xai-network/xaid/crypto"
)

// Header is the consensus-hashed block header (spec §3).
type Header struct {
	Index        uint64 `json:"index"`
	PreviousHash string `json:"previous_hash"`
	MerkleRoot   string `json:"merkle_root"`
	Timestamp    int64  `json:"timestamp"`
	Difficulty   int    `json:"difficulty"`
	Nonce        uint64 `json:"nonce"`
}

// Hash computes the header's content hash: SHA-256 over a canonical,
// field-sorted encoding (spec §3: "Block hash = SHA-256 over canonical
// header encoding").
func (h *Header) Hash() string {
	var sb strings.Builder
	fields := []string{
		"difficulty:" + strconv.Itoa(h.Difficulty),
		"index:" + strconv.FormatUint(h.Index, 10),
		"merkle_root:" + h.MerkleRoot,
		"nonce:" + strconv.FormatUint(h.Nonce, 10),
		"previous_hash:" + h.PreviousHash,
		"timestamp:" + strconv.FormatInt(h.Timestamp, 10),
	}
	sort.Strings(fields)
	sb.WriteString(strings.Join(fields, "|"))
	return crypto.Sha256Hex([]byte(sb.String()))
}

// MeetsDifficulty reports whether hash has at least difficulty leading
// zero hex digits (spec §3, §4.6).
func MeetsDifficulty(hash string, difficulty int) bool {
	if difficulty <= 0 {
		return true
	}
	if len(hash) < difficulty {
		return false
	}
	for i := 0; i < difficulty; i++ {
		if hash[i] != '0' {
			return false
		}
	}
	return true
}

// MaxFutureSkewSeconds bounds how far into the future a block's timestamp
// may sit relative to the receiving node's clock (spec §3: "a few
// minutes").
const MaxFutureSkewSeconds = 120

// ValidateLinkage checks a header's parent linkage, proof-of-work, and
// timestamp rules (spec §3, §4.7). medianTimePast is the median timestamp
// of the last 11 ancestor headers (or fewer, near genesis); nowUnix is the
// validating node's current clock reading.
func (h *Header) ValidateLinkage(parent *Header, medianTimePast int64, nowUnix int64) error {
	if h.Index != parent.Index+1 {
		return newHeaderError("index %d does not follow parent index %d", h.Index, parent.Index)
	}
	if h.PreviousHash != parent.Hash() {
		return newHeaderError("previous_hash does not match parent hash")
	}
	if h.Timestamp <= parent.Timestamp {
		return newHeaderError("timestamp %d does not exceed parent timestamp %d", h.Timestamp, parent.Timestamp)
	}
	if h.Timestamp < medianTimePast {
		return newHeaderError("timestamp %d is before median-time-past %d", h.Timestamp, medianTimePast)
	}
	if h.Timestamp > nowUnix+MaxFutureSkewSeconds {
		return newHeaderError("timestamp %d is too far in the future", h.Timestamp)
	}
	if !MeetsDifficulty(h.Hash(), h.Difficulty) {
		return newHeaderError("hash does not meet difficulty %d", h.Difficulty)
	}
	return nil
}

// MedianTimePast returns the median timestamp among the given ancestor
// headers (spec §3: "median(last 11 parents)"), most-recent-first or in
// any order — the median is order-independent.
func MedianTimePast(ancestors []*Header) int64 {
	if len(ancestors) == 0 {
		return 0
	}
	timestamps := make([]int64, len(ancestors))
	for i, a := range ancestors {
		timestamps[i] = a.Timestamp
	}
	sortInt64s(timestamps)
	return timestamps[len(timestamps)/2]
}

func sortInt64s(s []int64) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
