// Package liquidity keeps every depositor's exact proportional share of a
// shared pool while profit and loss are applied to the pool as a whole.
package liquidity

import (
	"fmt"
	"math/bits"

	"poolbet/internal/domain"
	"poolbet/pkg/quant"
	"poolbet/pkg/safe"
)

const (
	// DefaultDepth gives 2^40 deposit slots.
	DefaultDepth = 40
	maxDepth     = 48
	rootIndex    = 1
)

// Node is one subtree total, correct as of SyncVersion.
type Node struct {
	Amount      int64  `json:"amount"`
	SyncVersion uint64 `json:"sync_version"`
}

// Tree is a fixed-depth binary tree over deposit slots. Node i has children
// 2i and 2i+1; leaves are [2^depth, 2^(depth+1)). Empty nodes are not stored.
//
// Pool deltas touch only the root. A node learns about them when a walk from
// the root passes it: the left child replays the log from its own version and
// the right child takes what is left of the parent, so both always sum to the
// parent exactly. A profit limited to a prefix of leaves also rewrites the
// path to the last leaf of the prefix.
//
// Leaves are handed out in order and never reused, so a prefix of leaves is
// exactly the deposits made before some point in time.
type Tree struct {
	depth     uint
	firstLeaf uint64
	total     int64
	nodes     map[uint64]Node
	log       *UpdateLog
	nextLeaf  uint64
}

// NewTree creates an empty tree with 2^depth leaves.
func NewTree(depth uint) *Tree {
	if depth == 0 || depth > maxDepth {
		panic(fmt.Sprintf("TREE_DEPTH_OUT_OF_RANGE: %d", depth))
	}
	first := uint64(1) << depth
	return &Tree{
		depth:     depth,
		firstLeaf: first,
		nodes:     make(map[uint64]Node),
		log:       newUpdateLog(),
		nextLeaf:  first,
	}
}

// Total is the pool value held by all leaves.
func (t *Tree) Total() int64 { return t.total }

// FirstLeaf is the index of the first deposit slot.
func (t *Tree) FirstLeaf() uint64 { return t.firstLeaf }

// LastLeaf is the index of the last deposit slot.
func (t *Tree) LastLeaf() uint64 { return 2*t.firstLeaf - 1 }

// LastUsedLeaf is the last leaf handed out so far, or FirstLeaf()-1 before
// the first deposit.
func (t *Tree) LastUsedLeaf() uint64 { return t.nextLeaf - 1 }

// Log exposes the update log for inspection.
func (t *Tree) Log() *UpdateLog { return t.log }

// IsLeaf reports whether index addresses a deposit slot.
func (t *Tree) IsLeaf(index uint64) bool {
	return index >= t.firstLeaf && index <= t.LastLeaf()
}

// span returns the first and last leaf under node i.
func (t *Tree) span(i uint64) (lo, hi uint64) {
	shift := t.depth - uint(bits.Len64(i)-1)
	lo = i << shift
	return lo, lo + (uint64(1) << shift) - 1
}

func (t *Tree) get(i uint64) Node {
	if i == rootIndex {
		return Node{Amount: t.total, SyncVersion: t.log.Version()}
	}
	return t.nodes[i]
}

func (t *Tree) set(i uint64, n Node) {
	if i == rootIndex {
		t.total = n.Amount
		return
	}
	if old, ok := t.nodes[i]; ok {
		t.log.release(old.SyncVersion)
	}
	if n.Amount == 0 {
		delete(t.nodes, i)
		return
	}
	if n.Amount < 0 {
		panic(fmt.Sprintf("TREE_NEGATIVE_NODE: index=%d amount=%d", i, n.Amount))
	}
	t.nodes[i] = n
	t.log.retain(n.SyncVersion)
}

// split returns the children of node i as of the parent's version p.
// stale is false when the stored children are already current.
func (t *Tree) split(i uint64, p Node) (left, right Node, stale bool) {
	left, right = t.get(2*i), t.get(2*i+1)
	if p.Amount == 0 {
		return Node{}, Node{}, left.Amount != 0 || right.Amount != 0
	}
	if left.Amount == 0 && right.Amount == 0 {
		panic(fmt.Sprintf("TREE_ORPHAN_AMOUNT: index=%d amount=%d", i, p.Amount))
	}
	version := left.SyncVersion
	if left.Amount == 0 {
		version = right.SyncVersion
	}
	if version == p.SyncVersion {
		return left, right, false
	}

	// An empty side has no depositors and never receives a share.
	var l int64
	switch {
	case right.Amount == 0:
		l = p.Amount
	case left.Amount == 0:
		l = 0
	default:
		lo, hi := t.span(2 * i)
		l = t.log.replay(left.Amount, version, p.SyncVersion, lo, hi)
		l = min(max(l, 0), p.Amount)
	}
	return Node{Amount: l, SyncVersion: p.SyncVersion},
		Node{Amount: p.Amount - l, SyncVersion: p.SyncVersion}, true
}

func (t *Tree) pushDown(i uint64) {
	left, right, stale := t.split(i, t.get(i))
	if stale {
		t.set(2*i, left)
		t.set(2*i+1, right)
	}
}

func (t *Tree) syncPath(leaf uint64) {
	for level := t.depth; level > 0; level-- {
		t.pushDown(leaf >> level)
	}
}

// addPath adds delta to leaf and every ancestor. The path must be synced.
func (t *Tree) addPath(leaf uint64, delta int64) {
	version := t.log.Version()
	for i := leaf; i >= rootIndex; i >>= 1 {
		n := t.get(i)
		t.set(i, Node{Amount: safe.SafeAdd(n.Amount, delta), SyncVersion: version})
	}
}

func (t *Tree) allocLeaf() (uint64, error) {
	if t.nextLeaf > t.LastLeaf() {
		return 0, domain.ErrNoFreeLeaf
	}
	leaf := t.nextLeaf
	t.nextLeaf++
	return leaf, nil
}

// Deposit places amount in a free leaf and returns its index.
func (t *Tree) Deposit(amount int64) (uint64, error) {
	if amount <= 0 {
		return 0, domain.ErrAmountNotSufficient
	}
	leaf, err := t.allocLeaf()
	if err != nil {
		return 0, err
	}
	t.syncPath(leaf)
	t.addPath(leaf, amount)
	t.log.compact()
	return leaf, nil
}

// Remove takes fraction (of quant.FractionScale) of the leaf's current value
// out of the tree. An emptied leaf stays empty.
func (t *Tree) Remove(leaf uint64, fraction int64) (int64, error) {
	amount, err := t.removable(leaf, fraction)
	if err != nil {
		return 0, err
	}
	t.syncPath(leaf)
	t.addPath(leaf, -amount)
	t.log.compact()
	return amount, nil
}

func (t *Tree) removable(leaf uint64, fraction int64) (int64, error) {
	if fraction <= 0 || fraction > quant.FractionScale {
		return 0, domain.ErrWrongFraction
	}
	if !t.IsLeaf(leaf) {
		return 0, domain.ErrNoLiquidity
	}
	value := t.View(leaf)
	if value == 0 {
		return 0, domain.ErrNoLiquidity
	}
	return quant.Share(value, fraction), nil
}

// ApplyPoolDelta spreads delta over every leaf in proportion to its value.
// Only the root and the log are written.
func (t *Tree) ApplyPoolDelta(delta int64) error {
	return t.ApplyPoolDeltaUpTo(delta, t.LastLeaf())
}

// ApplyPoolDeltaUpTo spreads a profit over the leaves [FirstLeaf, upTo] in
// proportion to their value. Leaves after upTo keep their value. A loss, or
// a profit whose range holds nothing, is spread over every leaf.
func (t *Tree) ApplyPoolDeltaUpTo(delta int64, upTo uint64) error {
	if err := t.CheckPoolDelta(delta); err != nil || delta == 0 {
		return err
	}
	if delta < 0 || upTo >= t.LastUsedLeaf() {
		t.log.append(delta, t.total, 0)
		t.total += delta
		t.log.compact()
		return nil
	}
	var base int64
	if upTo >= t.firstLeaf {
		base = t.rangeValue(upTo)
	}
	if base == 0 {
		return t.ApplyPoolDeltaUpTo(delta, t.LastLeaf())
	}

	t.syncPath(upTo)
	version := t.log.append(delta, base, upTo)
	t.total += delta

	// Walk the nodes that straddle upTo. in is the part of the node inside
	// the range and share what the node gains. Both children of every node
	// on the walk are rewritten at the new version.
	i, old, in, share := uint64(rootIndex), t.total-delta, base, delta
	for !t.IsLeaf(i) && old != 0 {
		if _, hi := t.span(i); hi <= upTo {
			break
		}
		left, right := t.get(2*i), t.get(2*i+1)
		var leftShare int64
		if _, mid := t.span(2 * i); upTo > mid {
			switch {
			case share == 0:
			case in == left.Amount:
				leftShare = share
			default:
				leftShare = quant.MulDivSigned(share, left.Amount, in)
			}
			t.set(2*i, Node{Amount: left.Amount + leftShare, SyncVersion: version})
			t.set(2*i+1, Node{Amount: right.Amount + share - leftShare, SyncVersion: version})
			i, old, in, share = 2*i+1, right.Amount, in-left.Amount, share-leftShare
		} else {
			t.set(2*i, Node{Amount: left.Amount + share, SyncVersion: version})
			t.set(2*i+1, Node{Amount: right.Amount, SyncVersion: version})
			i, old = 2*i, left.Amount
		}
	}
	t.log.compact()
	return nil
}

// rangeValue is the value of leaves [FirstLeaf, upTo]. Nothing is written.
func (t *Tree) rangeValue(upTo uint64) int64 {
	var sum int64
	i, cur := uint64(rootIndex), t.get(rootIndex)
	for cur.Amount != 0 {
		if _, hi := t.span(i); hi <= upTo {
			return sum + cur.Amount
		}
		if t.IsLeaf(i) {
			break
		}
		left, right, _ := t.split(i, cur)
		if _, mid := t.span(2 * i); upTo > mid {
			sum += left.Amount
			i, cur = 2*i+1, right
		} else {
			i, cur = 2*i, left
		}
	}
	return sum
}

// CheckPoolDelta reports whether ApplyPoolDelta(delta) would succeed.
func (t *Tree) CheckPoolDelta(delta int64) error {
	if delta == 0 {
		return nil
	}
	if t.total == 0 || t.total+delta < 0 {
		return domain.ErrNoLiquidity
	}
	return nil
}

// Query returns the value of leaves in [from, to], syncing visited nodes.
func (t *Tree) Query(from, to uint64) int64 {
	from = max(from, t.firstLeaf)
	to = min(to, t.LastLeaf())
	if from > to {
		return 0
	}
	sum := t.query(rootIndex, t.firstLeaf, t.LastLeaf(), from, to)
	t.log.compact()
	return sum
}

func (t *Tree) query(i, lo, hi, from, to uint64) int64 {
	n := t.get(i)
	if n.Amount == 0 || to < lo || hi < from {
		return 0
	}
	if from <= lo && hi <= to {
		return n.Amount
	}
	t.pushDown(i)
	mid := lo + (hi-lo)/2
	return t.query(2*i, lo, mid, from, to) + t.query(2*i+1, mid+1, hi, from, to)
}

// View returns the current value of a leaf without writing anything.
func (t *Tree) View(leaf uint64) int64 {
	if !t.IsLeaf(leaf) {
		return 0
	}
	cur := t.get(rootIndex)
	for level := t.depth; level > 0; level-- {
		if cur.Amount == 0 {
			return 0
		}
		left, right, _ := t.split(leaf>>level, cur)
		if (leaf>>(level-1))&1 == 0 {
			cur = left
		} else {
			cur = right
		}
	}
	return cur.Amount
}

// Snapshot returns the stored nodes for a state dump.
func (t *Tree) Snapshot() map[uint64]Node {
	out := make(map[uint64]Node, len(t.nodes)+1)
	for i, n := range t.nodes {
		out[i] = n
	}
	out[rootIndex] = t.get(rootIndex)
	return out
}
