package telegram

import (
	"encoding/base64"
	"encoding/json"
	"errors"
)

// CursorVersion is the current cursor schema version.
const CursorVersion = 1

// ErrInvalidCursor indicates a page token this client did not issue.
var ErrInvalidCursor = errors.New("telegram: invalid cursor")

// Cursor is the opaque page token handed to the channel fetcher.
type Cursor struct {
	// Version is the schema version for future migrations.
	Version int `json:"v"`

	// OffsetID is the message id the next page starts below.
	OffsetID int64 `json:"offset_id"`
}

// Encode serializes the cursor to a base64-encoded JSON string.
func (c Cursor) Encode() string {
	c.Version = CursorVersion
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeCursor deserializes a page token. The empty token starts at the
// newest message.
func DecodeCursor(s string) (Cursor, error) {
	if s == "" {
		return Cursor{Version: CursorVersion}, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, ErrInvalidCursor
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil || c.OffsetID < 0 {
		return Cursor{}, ErrInvalidCursor
	}
	return c, nil
}
