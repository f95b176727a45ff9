package pgkit

import (
	"context"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// BaseModel provides common fields for all models: ID and timestamps.
// Embed this in your model structs for standard ID and timestamp handling.
//
// Usage:
//
//	type User struct {
//	    bun.BaseModel `bun:"table:users,alias:u"`
//	    pgkit.BaseModel
//	    Email string `bun:"email,notnull,unique"`
//	}
type BaseModel struct {
	ID        string    `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// ExceptFields marks the generated columns as absent from external
// payloads, so Populate never overwrites them and ToMapping leaves them
// out. Embedding models inherit this; define your own ExceptFields to
// override the set.
func (BaseModel) ExceptFields() []string {
	return []string{"id", "created_at", "updated_at"}
}

// TimestampedModel carries only the timestamp fields. Use this when the
// model brings its own primary key.
//
// Usage:
//
//	type AuditLog struct {
//	    bun.BaseModel `bun:"table:audit_logs,alias:al"`
//	    ID            int64 `bun:"id,pk,autoincrement"`
//	    pgkit.TimestampedModel
//	    Action string `bun:"action,notnull"`
//	}
type TimestampedModel struct {
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// ExceptFields marks the timestamps as absent from external payloads
func (TimestampedModel) ExceptFields() []string {
	return []string{"created_at", "updated_at"}
}

// BeforeAppendModel is a Bun hook that updates the UpdatedAt timestamp
// before insert or update operations.
var _ bun.BeforeAppendModelHook = (*BaseModel)(nil)

func (m *BaseModel) BeforeAppendModel(ctx context.Context, query schema.Query) error {
	switch query.(type) {
	case *bun.InsertQuery:
		now := time.Now()
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		m.UpdatedAt = now
	case *bun.UpdateQuery:
		m.UpdatedAt = time.Now()
	}
	return nil
}

// BeforeAppendModel is a Bun hook for TimestampedModel.
var _ bun.BeforeAppendModelHook = (*TimestampedModel)(nil)

func (m *TimestampedModel) BeforeAppendModel(ctx context.Context, query schema.Query) error {
	switch query.(type) {
	case *bun.InsertQuery:
		now := time.Now()
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		m.UpdatedAt = now
	case *bun.UpdateQuery:
		m.UpdatedAt = time.Now()
	}
	return nil
}
