package api

import (
	"bytes"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/hupe1980/vecspace/metadata"
)

// Metadata is a metadata document on the wire. It uses the JSON mapping of
// google.protobuf.Struct, the type metadata, filters and metadata patches
// have in the vector API contract. Numbers are doubles; integral ones decode
// as integers.
type Metadata metadata.Document

// Document returns m as a metadata.Document.
func (m Metadata) Document() metadata.Document {
	return metadata.Document(m)
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*m = nil
		return nil
	}
	var s structpb.Struct
	if err := protojson.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("metadata: %w", err)
	}
	*m = Metadata(metadata.FromStruct(&s))
	return nil
}

// MarshalJSON implements json.Marshaler.
func (m Metadata) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	s, err := metadata.ToStruct(metadata.Document(m))
	if err != nil {
		return nil, err
	}
	return protojson.Marshal(s)
}
