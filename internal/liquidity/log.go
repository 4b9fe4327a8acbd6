package liquidity

import (
	"fmt"

	"poolbet/pkg/quant"
)

// LogEntry is one profit or loss applied to the root. A non-zero UpTo
// limits it to leaves at or below UpTo, and TotalBefore is then the value
// those leaves held.
type LogEntry struct {
	Version     uint64 `json:"version"`
	Delta       int64  `json:"delta"`
	TotalBefore int64  `json:"total_before"`
	UpTo        uint64 `json:"up_to,omitempty"`
}

// UpdateLog is the append-only record of pool deltas.
//
// Every stored node retains the version it is synced to. Entries at or below
// the oldest retained version can never be replayed again and are dropped,
// so the log only holds what some node still needs.
type UpdateLog struct {
	entries []LogEntry // entries[i].Version == base+1+i
	base    uint64
	version uint64
	refs    map[uint64]int
}

func newUpdateLog() *UpdateLog {
	return &UpdateLog{refs: make(map[uint64]int)}
}

// Version is the version of the latest entry.
func (l *UpdateLog) Version() uint64 {
	return l.version
}

// Len is the number of entries still held.
func (l *UpdateLog) Len() int {
	return len(l.entries)
}

// Entries returns a copy of the held entries.
func (l *UpdateLog) Entries() []LogEntry {
	out := make([]LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *UpdateLog) append(delta, totalBefore int64, upTo uint64) uint64 {
	l.version++
	l.entries = append(l.entries, LogEntry{Version: l.version, Delta: delta, TotalBefore: totalBefore, UpTo: upTo})
	return l.version
}

// replay brings the amount of a node covering leaves [lo, hi], synced at
// version from, up to version to. Entries apply one after another, so
// replaying in two steps gives the same result as replaying once.
//
// A node that straddles an entry's bound was rewritten when the entry was
// added, so it never replays that entry.
func (l *UpdateLog) replay(amount int64, from, to, lo, hi uint64) int64 {
	if amount == 0 || from >= to {
		return amount
	}
	if from < l.base {
		panic(fmt.Sprintf("LOG_REPLAY_COMPACTED: from=%d base=%d", from, l.base))
	}
	for v := from + 1; v <= to; v++ {
		e := l.entries[v-l.base-1]
		if e.TotalBefore == 0 || (e.UpTo != 0 && lo > e.UpTo) {
			continue
		}
		if e.UpTo != 0 && hi > e.UpTo {
			panic(fmt.Sprintf("LOG_REPLAY_STRADDLES_BOUND: version=%d up_to=%d node=[%d,%d]", v, e.UpTo, lo, hi))
		}
		amount += quant.MulDivSigned(e.Delta, amount, e.TotalBefore)
	}
	return amount
}

func (l *UpdateLog) retain(version uint64) {
	l.refs[version]++
}

func (l *UpdateLog) release(version uint64) {
	n := l.refs[version] - 1
	if n < 0 {
		panic(fmt.Sprintf("LOG_REFCOUNT_NEGATIVE: version=%d", version))
	}
	if n == 0 {
		delete(l.refs, version)
		return
	}
	l.refs[version] = n
}

// compact advances base past every version nothing retains.
func (l *UpdateLog) compact() {
	old := l.base
	for l.base < l.version && l.refs[l.base] == 0 {
		l.base++
	}
	if n := l.base - old; n > 0 {
		l.entries = l.entries[n:]
	}
}
