// Package changelog encodes engine mutations as an append-only log of
// checksummed, optionally compressed frames, and replays such logs.
//
// Each frame carries one Entry encoded with msgpack:
//
//	[CRC32C:4][Compression:1][LSN:8][RawLen:4][Length:4][Payload:Length]
//
// The checksum covers everything after itself. Replaying a log applies the
// entries in order through an Applier.
package changelog

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/hupe1980/vecspace/metadata"
	"github.com/hupe1980/vecspace/model"
	"github.com/hupe1980/vecspace/namespace"
)

// Op identifies the mutation carried by an Entry.
type Op uint8

const (
	// OpUpsert inserts or replaces Records.
	OpUpsert Op = 1
	// OpDelete removes the records chosen by Delete.
	OpDelete Op = 2
	// OpUpdate applies Update.
	OpUpdate Op = 3
)

func (o Op) String() string {
	switch o {
	case OpUpsert:
		return "upsert"
	case OpDelete:
		return "delete"
	case OpUpdate:
		return "update"
	default:
		return fmt.Sprintf("op(%d)", uint8(o))
	}
}

// Entry is one logged mutation of one namespace.
type Entry struct {
	// LSN is assigned by the Writer and restored by the Reader.
	LSN       uint64
	Op        Op
	Namespace string

	Records []model.Record
	Delete  namespace.Selector
	Update  namespace.UpdateRequest
}

// Validate checks that the entry carries a payload for its operation.
func (e *Entry) Validate() error {
	switch e.Op {
	case OpUpsert:
		return nil
	case OpDelete:
		return e.Delete.Validate()
	case OpUpdate:
		return e.Update.Validate()
	default:
		return fmt.Errorf("%w: %v", ErrInvalidOp, e.Op)
	}
}

// wire types keep the encoded form independent of the in-memory types.
// Metadata travels as plain maps so that msgpack can encode it.

type wireSparse struct {
	Indices []uint32  `msgpack:"i"`
	Values  []float32 `msgpack:"v"`
}

type wireRecord struct {
	ID       string         `msgpack:"id"`
	Values   []float32      `msgpack:"v,omitempty"`
	Sparse   *wireSparse    `msgpack:"s,omitempty"`
	Metadata map[string]any `msgpack:"m,omitempty"`
}

type wireEntry struct {
	Op        Op             `msgpack:"op"`
	Namespace string         `msgpack:"ns"`
	Records   []wireRecord   `msgpack:"r,omitempty"`
	IDs       []string       `msgpack:"ids,omitempty"`
	Filter    map[string]any `msgpack:"f,omitempty"`
	DeleteAll bool           `msgpack:"all,omitempty"`
	Update    *wireUpdate    `msgpack:"u,omitempty"`
}

type wireUpdate struct {
	ID          string         `msgpack:"id"`
	Values      []float32      `msgpack:"v,omitempty"`
	Sparse      *wireSparse    `msgpack:"s,omitempty"`
	SetMetadata map[string]any `msgpack:"m,omitempty"`
}

func toWireSparse(sv *model.SparseValues) *wireSparse {
	if sv == nil {
		return nil
	}
	return &wireSparse{Indices: sv.Indices, Values: sv.Values}
}

func fromWireSparse(ws *wireSparse) *model.SparseValues {
	if ws == nil {
		return nil
	}
	return &model.SparseValues{Indices: ws.Indices, Values: ws.Values}
}

// marshalEntry encodes the payload of e. The LSN lives in the frame header.
func marshalEntry(e *Entry) ([]byte, error) {
	w := wireEntry{Op: e.Op, Namespace: e.Namespace}
	switch e.Op {
	case OpUpsert:
		w.Records = make([]wireRecord, len(e.Records))
		for i := range e.Records {
			r := &e.Records[i]
			w.Records[i] = wireRecord{
				ID:       r.ID,
				Values:   r.Values,
				Sparse:   toWireSparse(r.Sparse),
				Metadata: r.Metadata.ToMap(),
			}
		}
	case OpDelete:
		w.IDs = e.Delete.IDs
		w.Filter = e.Delete.Filter.ToMap()
		w.DeleteAll = e.Delete.DeleteAll
	case OpUpdate:
		w.Update = &wireUpdate{
			ID:          e.Update.ID,
			Values:      e.Update.Values,
			Sparse:      toWireSparse(e.Update.Sparse),
			SetMetadata: e.Update.SetMetadata.ToMap(),
		}
	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalidOp, e.Op)
	}
	return msgpack.Marshal(&w)
}

// unmarshalEntry decodes a payload written by marshalEntry.
func unmarshalEntry(data []byte, e *Entry) error {
	var w wireEntry
	if err := msgpack.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	*e = Entry{LSN: e.LSN, Op: w.Op, Namespace: w.Namespace}
	switch w.Op {
	case OpUpsert:
		e.Records = make([]model.Record, len(w.Records))
		for i, wr := range w.Records {
			md, err := metadata.DocumentFromAny(wr.Metadata)
			if err != nil {
				return fmt.Errorf("%w: record %q: %w", ErrCorrupt, wr.ID, err)
			}
			e.Records[i] = model.Record{
				ID:       wr.ID,
				Values:   wr.Values,
				Sparse:   fromWireSparse(wr.Sparse),
				Metadata: md,
			}
		}
	case OpDelete:
		filter, err := metadata.DocumentFromAny(w.Filter)
		if err != nil {
			return fmt.Errorf("%w: delete filter: %w", ErrCorrupt, err)
		}
		e.Delete = namespace.Selector{IDs: w.IDs, Filter: filter, DeleteAll: w.DeleteAll}
	case OpUpdate:
		if w.Update == nil {
			return fmt.Errorf("%w: update entry without payload", ErrCorrupt)
		}
		md, err := metadata.DocumentFromAny(w.Update.SetMetadata)
		if err != nil {
			return fmt.Errorf("%w: update %q: %w", ErrCorrupt, w.Update.ID, err)
		}
		e.Update = namespace.UpdateRequest{
			ID:          w.Update.ID,
			Values:      w.Update.Values,
			Sparse:      fromWireSparse(w.Update.Sparse),
			SetMetadata: md,
		}
	default:
		return fmt.Errorf("%w: %v", ErrInvalidOp, w.Op)
	}
	return nil
}
