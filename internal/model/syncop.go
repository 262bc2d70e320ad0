package model

import (
	"encoding/json"
	"time"
)

// SyncOpKind distinguishes the two remote mutations the queue can carry.
type SyncOpKind string

const (
	SyncOpPut    SyncOpKind = "put"
	SyncOpDelete SyncOpKind = "delete"
)

// SyncOp is a durably queued remote mutation. Every local change is written
// to the sync queue in the same transaction as the entry itself, so a crash
// between the local write and the remote push never drops a change.
type SyncOp struct {
	ID        int64           `json:"id"`
	Kind      SyncOpKind      `json:"kind"`
	EntryID   string          `json:"entry_id"`
	Payload   json.RawMessage `json:"payload,omitempty"` // marshaled ReorderEntry for puts
	Attempts  int             `json:"attempts"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
