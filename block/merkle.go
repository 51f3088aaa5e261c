package block

import "github.com/xai-network/xaid/crypto"

// Position marks which side of a pair a sibling hash sits on, needed to
// fold a proof back into a root in the right order.
type Position int

const (
	PositionLeft Position = iota
	PositionRight
)

// ProofStep is one level of a Merkle proof: the sibling hash at that level
// and which side it sits on relative to the hash being folded.
type ProofStep struct {
	Sibling  string
	Position Position
}

// MerkleRoot computes the root of a binary hash tree over txIDs, leaves in
// order, duplicating the last element of any odd-length level (spec §3).
func MerkleRoot(txIDs []string) string {
	if len(txIDs) == 0 {
		return crypto.Sha256Hex(nil)
	}
	level := make([]string, len(txIDs))
	copy(level, txIDs)

	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([]string, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next[i/2] = pairHash(level[i], level[i+1])
		}
		level = next
	}
	return level[0]
}

func pairHash(left, right string) string {
	return crypto.Sha256Hex([]byte(left + right))
}

// BuildMerkleProof returns the ordered sibling path from leaf txID up to
// the root, following the same odd-level duplication rule as MerkleRoot
// (spec §4.10). The second return value is false if txID is not among
// txIDs.
func BuildMerkleProof(txIDs []string, txID string) ([]ProofStep, bool) {
	index := -1
	for i, id := range txIDs {
		if id == txID {
			index = i
			break
		}
	}
	if index == -1 {
		return nil, false
	}

	level := make([]string, len(txIDs))
	copy(level, txIDs)

	var proof []ProofStep
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		isRightNode := index%2 == 1
		var siblingIndex int
		var pos Position
		if isRightNode {
			siblingIndex = index - 1
			pos = PositionLeft
		} else {
			siblingIndex = index + 1
			pos = PositionRight
		}
		proof = append(proof, ProofStep{Sibling: level[siblingIndex], Position: pos})

		next := make([]string, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next[i/2] = pairHash(level[i], level[i+1])
		}
		level = next
		index /= 2
	}
	return proof, true
}

// VerifyMerkleProof folds proof starting from leafHash and compares the
// result against root.
func VerifyMerkleProof(leafHash string, proof []ProofStep, root string) bool {
	current := leafHash
	for _, step := range proof {
		switch step.Position {
		case PositionLeft:
			current = pairHash(step.Sibling, current)
		case PositionRight:
			current = pairHash(current, step.Sibling)
		default:
			return false
		}
	}
	return current == root
}
