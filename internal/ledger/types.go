package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SequenceNumber is an object version. The node encodes it as a JSON
// string on objects and as a JSON number on dynamic field listings.
type SequenceNumber string

func (s *SequenceNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = SequenceNumber(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("sequence number: %w", err)
	}
	*s = SequenceNumber(n.String())
	return nil
}

// ObjectData is the common part of every object response.
type ObjectData struct {
	ObjectID string          `json:"objectId"`
	Version  SequenceNumber  `json:"version"`
	Digest   string          `json:"digest"`
	Type     string          `json:"type,omitempty"`
	Content  json.RawMessage `json:"content,omitempty"`
}

// OwnedObject is one entry of an owned-objects listing.
type OwnedObject struct {
	Data  *ObjectData     `json:"data,omitempty"`
	Error json.RawMessage `json:"error,omitempty"`
}

// ID returns the object id, or "" when the entry carries no usable data.
func (o OwnedObject) ID() string {
	if o.Data == nil {
		return ""
	}
	return o.Data.ObjectID
}

type DynamicFieldName struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

// DynamicField references a child object attached to a parent object.
// ParentID is not part of the node response; the client stamps it.
type DynamicField struct {
	Name       DynamicFieldName `json:"name"`
	BcsName    string           `json:"bcsName,omitempty"`
	Type       string           `json:"type"`
	ObjectType string           `json:"objectType"`
	ObjectID   string           `json:"objectId"`
	Version    SequenceNumber   `json:"version"`
	Digest     string           `json:"digest"`
	ParentID   string           `json:"parentId"`
}

// ObjectDetail is the full content of an object fetched by id, augmented
// with the id of the blob its dynamic field hangs off.
type ObjectDetail struct {
	ObjectData
	ParentID string `json:"parentId"`
}

// Page is one cursor-paginated response.
type Page[T any] struct {
	Data        []T     `json:"data"`
	NextCursor  *string `json:"nextCursor"`
	HasNextPage bool    `json:"hasNextPage"`
}

type objectResponse struct {
	Data  *ObjectData `json:"data"`
	Error *struct {
		Code     string `json:"code"`
		ObjectID string `json:"object_id,omitempty"`
	} `json:"error,omitempty"`
}
