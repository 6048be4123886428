package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bobmcallan/intellivest/internal/models"
)

// Seal wraps data in an envelope stamped with origin and revision.
func Seal(origin string, revision int64, at time.Time, data any) (json.RawMessage, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", data, err)
	}
	env := models.Envelope{
		Origin:    origin,
		Revision:  revision,
		UpdatedAt: at.UTC(),
		Data:      payload,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return raw, nil
}

// Open decodes an envelope into out and returns its metadata. A bare value
// written without an envelope (for example by hand or an older release) is
// decoded directly and reported with an empty origin.
func Open(raw json.RawMessage, out any) (models.Envelope, error) {
	var env models.Envelope
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &probe); err == nil {
			if _, ok := probe["data"]; ok {
				if err := json.Unmarshal(trimmed, &env); err != nil {
					return env, fmt.Errorf("decode envelope: %w", err)
				}
				raw = env.Data
			}
		}
	}

	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return env, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return env, fmt.Errorf("decode %T: %w", out, err)
	}
	return env, nil
}
