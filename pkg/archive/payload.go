package archive

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/fikri/engram/pkg/store"
)

// PayloadVersion is the current archive format version. Restore refuses
// payloads written by a different version.
const PayloadVersion = 1

// Counts records how many rows of each kind a payload carries
type Counts struct {
	Items         int `json:"items"`
	Chunks        int `json:"chunks"`
	Conversations int `json:"conversations"`
	Decisions     int `json:"decisions"`
	Usage         int `json:"usage"`
	Purchases     int `json:"purchases"`
	AccessLogs    int `json:"access_logs"`
}

// Payload is one self-contained archive snapshot. Vectors are serialized as
// plain float arrays so the payload survives storage-engine changes.
type Payload struct {
	Version    int       `json:"version"`
	OrgID      string    `json:"org_id"`
	ExportedAt time.Time `json:"exported_at"`
	From       time.Time `json:"from,omitempty"`
	To         time.Time `json:"to,omitempty"`
	Counts     Counts    `json:"counts"`

	Items         []store.MemoryItem    `json:"items"`
	Chunks        []store.Chunk         `json:"chunks"`
	Conversations []store.Conversation  `json:"conversations,omitempty"`
	Decisions     []store.Decision      `json:"decisions,omitempty"`
	Usage         []store.UsageEntry    `json:"usage,omitempty"`
	Purchases     []store.PurchaseEntry `json:"purchases,omitempty"`
	AccessLogs    []store.AccessLog     `json:"access_logs,omitempty"`
}

// payloadSchema validates the shape of an incoming payload before anything
// touches the database.
const payloadSchema = `{
	"type": "object",
	"required": ["version", "org_id", "exported_at", "counts", "items", "chunks"],
	"properties": {
		"version": {"type": "integer", "minimum": 1},
		"org_id": {"type": "string"},
		"exported_at": {"type": "string"},
		"counts": {
			"type": "object",
			"required": ["items", "chunks"],
			"properties": {
				"items": {"type": "integer", "minimum": 0},
				"chunks": {"type": "integer", "minimum": 0}
			}
		},
		"items": {
			"type": ["array", "null"],
			"items": {
				"type": "object",
				"required": ["id", "content"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"content": {"type": "string"},
					"tier": {"type": "string"},
					"embedding": {
						"type": ["array", "null"],
						"items": {"type": "number"}
					}
				}
			}
		},
		"chunks": {
			"type": ["array", "null"],
			"items": {
				"type": "object",
				"required": ["id", "memory_id", "index", "content"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"memory_id": {"type": "string", "minLength": 1},
					"index": {"type": "integer", "minimum": 0},
					"content": {"type": "string"},
					"embedding": {
						"type": ["array", "null"],
						"items": {"type": "number"}
					}
				}
			}
		}
	}
}`

// validatePayload checks raw payload bytes against the archive schema
func validatePayload(data []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(payloadSchema),
		gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("failed to validate payload: %w", err)
	}
	if !result.Valid() {
		errs := result.Errors()
		first := "unknown"
		if len(errs) > 0 {
			first = errs[0].String()
		}
		return fmt.Errorf("payload failed schema validation (%d problems, first: %s)", len(errs), first)
	}
	return nil
}

// Marshal serializes the payload for storage or transport
func (p *Payload) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal archive payload: %w", err)
	}
	return data, nil
}
