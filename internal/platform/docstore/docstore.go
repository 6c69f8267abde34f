// Package docstore is a small document database abstraction: documents are
// JSON objects addressed by slash separated paths ("businesses/b1/cards/c1"),
// grouped into collections ("businesses/b1/cards"), and mutated through
// atomic batches. Reads never observe writes staged in an uncommitted batch.
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound           = errors.New("document not found")
	ErrInvalidPath        = errors.New("invalid document path")
	ErrPreconditionFailed = errors.New("precondition failed")
)

// Document is the untyped body of a stored document.
type Document map[string]interface{}

// Snapshot is the committed state of one document at read time.
type Snapshot struct {
	Path   string
	ID     string
	Exists bool
	Data   Document
}

type Reader interface {
	// Get returns a snapshot with Exists=false when the document is missing.
	Get(ctx context.Context, path string) (*Snapshot, error)
	// Query returns the documents of a collection whose top-level field equals value.
	Query(ctx context.Context, collection, field string, value interface{}) ([]*Snapshot, error)
	List(ctx context.Context, collection string) ([]*Snapshot, error)
}

type Store interface {
	Reader
	NewBatch() Batch
}

// Batch stages writes that are applied all-or-nothing on Commit.
type Batch interface {
	// Set overwrites the whole document.
	Set(path string, data Document)
	// Merge upserts the given top-level fields, keeping the others.
	Merge(path string, data Document)
	// Update patches top-level fields of an existing document; committing
	// fails with ErrNotFound when the document does not exist.
	Update(path string, fields Document)
	Delete(path string)
	// Require fails the commit with ErrPreconditionFailed unless the
	// document exists and its field equals value at commit time.
	Require(path, field string, value interface{})
	// Len is the number of staged writes; preconditions are not counted.
	Len() int
	Commit(ctx context.Context) error
}

type fieldValue int

const (
	// DeleteField removes the key when used as a value in Update or Merge.
	DeleteField fieldValue = iota + 1
	// ServerTimestamp is replaced with the store clock at commit time.
	ServerTimestamp
)

type opKind int

const (
	opSet opKind = iota
	opMerge
	opUpdate
	opDelete
	opRequire
)

type op struct {
	kind  opKind
	path  string
	data  Document
	field string
	value interface{}
}

type options struct {
	now func() time.Time
}

type Option func(*options)

// WithClock overrides the clock used to resolve ServerTimestamp.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func newOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// batch collects ops; stores provide the commit function.
type batch struct {
	ops    []op
	writes int
	commit func(ctx context.Context, ops []op) error
}

func (b *batch) Set(path string, data Document) {
	b.ops = append(b.ops, op{kind: opSet, path: path, data: data})
	b.writes++
}

func (b *batch) Merge(path string, data Document) {
	b.ops = append(b.ops, op{kind: opMerge, path: path, data: data})
	b.writes++
}

func (b *batch) Update(path string, fields Document) {
	b.ops = append(b.ops, op{kind: opUpdate, path: path, data: fields})
	b.writes++
}

func (b *batch) Delete(path string) {
	b.ops = append(b.ops, op{kind: opDelete, path: path})
	b.writes++
}

func (b *batch) Require(path, field string, value interface{}) {
	b.ops = append(b.ops, op{kind: opRequire, path: path, field: field, value: value})
}

func (b *batch) Len() int { return b.writes }

func (b *batch) Commit(ctx context.Context) error {
	if len(b.ops) == 0 {
		return nil
	}
	for _, o := range b.ops {
		if _, _, err := SplitPath(o.path); err != nil {
			return err
		}
	}
	return b.commit(ctx, b.ops)
}

// apply computes the next state of a document for one op.
func apply(o op, current Document, exists bool, now time.Time) (Document, bool, error) {
	switch o.kind {
	case opSet:
		next := Document{}
		for k, v := range o.data {
			if v == DeleteField {
				continue
			}
			next[k] = resolve(v, now)
		}
		return next, true, nil
	case opMerge, opUpdate:
		if o.kind == opUpdate && !exists {
			return nil, false, fmt.Errorf("update %s: %w", o.path, ErrNotFound)
		}
		next := Document{}
		for k, v := range current {
			next[k] = v
		}
		for k, v := range o.data {
			if v == DeleteField {
				delete(next, k)
				continue
			}
			next[k] = resolve(v, now)
		}
		return next, true, nil
	case opDelete:
		return nil, false, nil
	case opRequire:
		if !exists || !ValuesEqual(current[o.field], o.value) {
			return nil, false, fmt.Errorf("%s: %s != %v: %w", o.path, o.field, o.value, ErrPreconditionFailed)
		}
		return current, true, nil
	}
	return nil, false, fmt.Errorf("unknown op %d", o.kind)
}

func resolve(v interface{}, now time.Time) interface{} {
	if v == ServerTimestamp {
		return now.UTC().Format(time.RFC3339Nano)
	}
	return v
}

// ValuesEqual compares two document values by their JSON encoding, so that
// an int and the json.Number it decodes to are considered equal.
func ValuesEqual(a, b interface{}) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(ab) == string(bb)
}

func encode(doc Document) ([]byte, error) {
	return json.Marshal(doc)
}

// decode keeps numbers as json.Number so a rewrite stores them unchanged.
func decode(raw []byte) (Document, error) {
	doc := Document{}
	if err := Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Unmarshal is json.Unmarshal with numbers decoded as json.Number.
func Unmarshal(raw []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}

// SplitPath returns the collection and id of a document path. Document paths
// have an even number of non-empty segments.
func SplitPath(path string) (collection, id string, err error) {
	segments := strings.Split(path, "/")
	if len(segments) < 2 || len(segments)%2 != 0 {
		return "", "", fmt.Errorf("%q: %w", path, ErrInvalidPath)
	}
	for _, s := range segments {
		if s == "" {
			return "", "", fmt.Errorf("%q: %w", path, ErrInvalidPath)
		}
	}
	i := strings.LastIndex(path, "/")
	return path[:i], path[i+1:], nil
}
