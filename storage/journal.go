package storage

import (
	"errors"
	"sync"
)

var errJournalClosed = errors.New("storage: journal already committed or discarded")

// Journal buffers writes on top of a parent database. Reads observe the
// buffered writes first and fall through to the parent. Nothing reaches the
// parent until Commit, which applies the buffer atomically when the parent
// implements Batcher.
//
// A journal is single use: after Commit or Discard every method fails.
type Journal struct {
	mu      sync.Mutex
	parent  Database
	puts    map[string][]byte
	deletes map[string]struct{}
	closed  bool
}

// NewJournal opens a write buffer over parent.
func NewJournal(parent Database) *Journal {
	return &Journal{
		parent:  parent,
		puts:    make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

func (j *Journal) Put(key []byte, value []byte) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return errJournalClosed
	}
	k := string(key)
	delete(j.deletes, k)
	j.puts[k] = append([]byte(nil), value...)
	return nil
}

func (j *Journal) Get(key []byte) ([]byte, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil, errJournalClosed
	}
	k := string(key)
	if value, ok := j.puts[k]; ok {
		return append([]byte(nil), value...), nil
	}
	if _, ok := j.deletes[k]; ok {
		return nil, ErrNotFound
	}
	return j.parent.Get(key)
}

func (j *Journal) Has(key []byte) (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return false, errJournalClosed
	}
	k := string(key)
	if _, ok := j.puts[k]; ok {
		return true, nil
	}
	if _, ok := j.deletes[k]; ok {
		return false, nil
	}
	return j.parent.Has(key)
}

func (j *Journal) Delete(key []byte) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return errJournalClosed
	}
	k := string(key)
	delete(j.puts, k)
	j.deletes[k] = struct{}{}
	return nil
}

// Pending reports how many writes are buffered.
func (j *Journal) Pending() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.puts) + len(j.deletes)
}

// Commit flushes the buffered writes to the parent.
func (j *Journal) Commit() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return errJournalClosed
	}
	j.closed = true
	if batcher, ok := j.parent.(Batcher); ok {
		return batcher.WriteBatch(j.puts, j.deletes)
	}
	for key := range j.deletes {
		if err := j.parent.Delete([]byte(key)); err != nil {
			return err
		}
	}
	for key, value := range j.puts {
		if err := j.parent.Put([]byte(key), value); err != nil {
			return err
		}
	}
	return nil
}

// Discard drops every buffered write.
func (j *Journal) Discard() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.closed = true
	j.puts = nil
	j.deletes = nil
}

// Close satisfies Database. The parent stays open.
func (j *Journal) Close() {
	j.Discard()
}
