package multicast

import (
	"sync"

	apperrors "github.com/kbukum/seqkit/errors"
)

type recordKind uint8

const (
	kindValue recordKind = iota
	kindFailure
	kindCompleted
)

func (k recordKind) String() string {
	switch k {
	case kindValue:
		return "value"
	case kindFailure:
		return "failure"
	case kindCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// record is one entry of the item log. Immutable once appended.
type record[T any] struct {
	kind  recordKind
	value T
	err   error
	index int
}

func (r record[T]) terminal() bool { return r.kind != kindValue }

var errLogSealed = apperrors.New(apperrors.ErrCodeInternal, "item log is sealed")

// itemLog is the append-only record of everything a source produced.
// Record k always has index k and nothing is appended after a terminal record.
type itemLog[T any] struct {
	mu      sync.RWMutex
	records []record[T]
	sealed  bool
}

func (l *itemLog[T]) len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

func (l *itemLog[T]) isSealed() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sealed
}

// at returns the record at index i. Reads at or past the end of a sealed log
// return the terminal record.
func (l *itemLog[T]) at(i int) (record[T], bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i < len(l.records) {
		return l.records[i], true
	}
	if l.sealed {
		return l.records[len(l.records)-1], true
	}
	return record[T]{}, false
}

func (l *itemLog[T]) append(kind recordKind, value T, err error) (record[T], error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sealed {
		return record[T]{}, errLogSealed
	}
	rec := record[T]{kind: kind, value: value, err: err, index: len(l.records)}
	l.records = append(l.records, rec)
	l.sealed = rec.terminal()
	return rec, nil
}
