package mempool

import "sort"

// Order returns descs arranged for block assembly: fee-rate descending,
// ties broken by admission time ascending, with the constraint that a
// given sender's transactions never leave nonce order (spec §4.5). maxCount
// trims the result after ordering; zero or negative means unlimited.
func Order(descs []*TxDesc, maxCount int) []*TxDesc {
	ordered := make([]*TxDesc, len(descs))
	copy(ordered, descs)
	sort.Sort(byPriority(ordered))

	result := enforceNonceOrder(ordered)

	if maxCount > 0 && len(result) > maxCount {
		result = result[:maxCount]
	}
	return result
}

// byPriority implements sort.Interface for the fee-rate/timestamp
// ordering, following the teacher's SortableInputSlice shape (Len/Swap
// trivial, Less carries the comparison).
type byPriority []*TxDesc

func (s byPriority) Len() int      { return len(s) }
func (s byPriority) Swap(i, j int) { s[i], s[j] = s[j], s[i] }

func (s byPriority) Less(i, j int) bool {
	if s[i].FeeRate != s[j].FeeRate {
		return s[i].FeeRate > s[j].FeeRate
	}
	return s[i].Added.Before(s[j].Added)
}

// enforceNonceOrder takes a fee-rate-prioritized sequence and re-threads
// it so that, for every sender, transactions appear in non-decreasing
// nonce order, without disturbing the relative order across senders more
// than necessary: each sender's own transactions are stable-sorted by
// nonce, then interleaved back into the original priority slots in the
// order they become ready.
func enforceNonceOrder(ordered []*TxDesc) []*TxDesc {
	bySender := make(map[string][]*TxDesc)
	for _, d := range ordered {
		bySender[d.Tx.Sender] = append(bySender[d.Tx.Sender], d)
	}
	for sender, descs := range bySender {
		sorted := make([]*TxDesc, len(descs))
		copy(sorted, descs)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Tx.Nonce < sorted[j].Tx.Nonce
		})
		bySender[sender] = sorted
	}

	cursor := make(map[string]int)
	result := make([]*TxDesc, 0, len(ordered))
	for _, d := range ordered {
		sender := d.Tx.Sender
		i := cursor[sender]
		if i >= len(bySender[sender]) {
			continue
		}
		result = append(result, bySender[sender][i])
		cursor[sender] = i + 1
	}
	return result
}

// IsNonceOrdered reports whether, within descs, every sender's
// transactions appear in non-decreasing nonce order.
func IsNonceOrdered(descs []*TxDesc) bool {
	last := make(map[string]uint64)
	seen := make(map[string]bool)
	for _, d := range descs {
		sender := d.Tx.Sender
		if seen[sender] && d.Tx.Nonce < last[sender] {
			return false
		}
		last[sender] = d.Tx.Nonce
		seen[sender] = true
	}
	return true
}
