package query

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/ridge/must/v2"
)

// Cursor is an opaque token marking a position in the ordered result set of
// a query: immediately after the last entity returned. Callers must treat
// it as unparseable and only resubmit it verbatim to a logically identical
// query.
type Cursor string

func (c Cursor) String() string {
	return string(c)
}

// DecodeCursor validates a cursor token received from the outside, such as
// a web client resuming pagination.
func DecodeCursor(s string) (Cursor, error) {
	if s == "" {
		return "", nil
	}
	if _, err := cursorPosition(Cursor(s)); err != nil {
		return "", err
	}
	return Cursor(s), nil
}

type cursorPayload struct {
	// After is the encoded key of the last entity before the position.
	After string `json:"after"`
}

func makeCursor(encodedKey string) Cursor {
	raw := must.OK1(json.Marshal(cursorPayload{After: encodedKey}))
	return Cursor(base64.RawURLEncoding.EncodeToString(raw))
}

func cursorPosition(c Cursor) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(string(c))
	if err != nil {
		return "", fmt.Errorf("invalid cursor: %w", err)
	}
	var payload cursorPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("invalid cursor: %w", err)
	}
	if payload.After == "" {
		return "", fmt.Errorf("invalid cursor: no position")
	}
	return payload.After, nil
}
