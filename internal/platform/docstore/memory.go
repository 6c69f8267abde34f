package docstore

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps documents in process memory. Documents are stored in
// their JSON encoding so values read back have the same types as from SQLStore.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
	opts options
}

func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		docs: make(map[string][]byte),
		opts: newOptions(opts),
	}
}

func (s *MemoryStore) Get(ctx context.Context, path string) (*Snapshot, error) {
	_, id, err := SplitPath(path)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	raw, ok := s.docs[path]
	s.mu.RUnlock()

	snap := &Snapshot{Path: path, ID: id, Exists: ok}
	if !ok {
		return snap, nil
	}
	if snap.Data, err = decode(raw); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *MemoryStore) Query(ctx context.Context, collection, field string, value interface{}) ([]*Snapshot, error) {
	all, err := s.List(ctx, collection)
	if err != nil {
		return nil, err
	}
	var matched []*Snapshot
	for _, snap := range all {
		v, ok := snap.Data[field]
		if ok && ValuesEqual(v, value) {
			matched = append(matched, snap)
		}
	}
	return matched, nil
}

func (s *MemoryStore) List(ctx context.Context, collection string) ([]*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var snaps []*Snapshot
	for p, raw := range s.docs {
		col, id, err := SplitPath(p)
		if err != nil || col != collection {
			continue
		}
		doc, err := decode(raw)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, &Snapshot{Path: p, ID: id, Exists: true, Data: doc})
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Path < snaps[j].Path })
	return snaps, nil
}

func (s *MemoryStore) NewBatch() Batch {
	return &batch{commit: s.commit}
}

func (s *MemoryStore) commit(ctx context.Context, ops []op) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.now()
	// a nil entry marks a document deleted by this batch
	staged := make(map[string]Document)

	load := func(p string) (Document, bool, error) {
		if doc, ok := staged[p]; ok {
			return doc, doc != nil, nil
		}
		raw, ok := s.docs[p]
		if !ok {
			return nil, false, nil
		}
		doc, err := decode(raw)
		return doc, true, err
	}

	for _, o := range ops {
		current, exists, err := load(o.path)
		if err != nil {
			return err
		}
		next, keep, err := apply(o, current, exists, now)
		if err != nil {
			return err
		}
		if keep {
			staged[o.path] = next
		} else {
			staged[o.path] = nil
		}
	}

	encoded := make(map[string][]byte, len(staged))
	for p, doc := range staged {
		if doc == nil {
			continue
		}
		raw, err := encode(doc)
		if err != nil {
			return err
		}
		encoded[p] = raw
	}

	for p := range staged {
		if raw, ok := encoded[p]; ok {
			s.docs[p] = raw
		} else {
			delete(s.docs, p)
		}
	}
	return nil
}
