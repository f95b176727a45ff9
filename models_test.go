package pgkit

import (
	"context"
	"testing"
	"time"

	"github.com/uptrace/bun"
)

// pgkitBase lets test structs embed this package's BaseModel alongside
// bun.BaseModel without the two embedded field names colliding.
type pgkitBase = BaseModel

type modelUser struct {
	bun.BaseModel `bun:"table:users,alias:u"`
	pgkitBase
	Email string `bun:"email,notnull,unique"`
}

func TestBaseModel_Fields(t *testing.T) {
	model := BaseModel{
		ID:        "test-uuid",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if model.ID != "test-uuid" {
		t.Errorf("Expected ID 'test-uuid', got %s", model.ID)
	}
	if model.CreatedAt.IsZero() {
		t.Error("CreatedAt should not be zero")
	}
	if model.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should not be zero")
	}
}

func TestBaseModel_ExceptFields(t *testing.T) {
	got := BaseModel{}.ExceptFields()
	want := map[string]bool{"id": true, "created_at": true, "updated_at": true}

	if len(got) != len(want) {
		t.Fatalf("expected %d excluded fields, got %v", len(want), got)
	}
	for _, f := range got {
		if !want[f] {
			t.Errorf("unexpected excluded field %q", f)
		}
	}
}

func TestTimestampedModel_Fields(t *testing.T) {
	now := time.Now()
	model := TimestampedModel{
		CreatedAt: now,
		UpdatedAt: now,
	}

	if model.CreatedAt.IsZero() {
		t.Error("CreatedAt should not be zero")
	}
	if model.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should not be zero")
	}

	got := model.ExceptFields()
	if len(got) != 2 {
		t.Errorf("expected created_at and updated_at excluded, got %v", got)
	}
}

func TestBaseModel_BeforeAppendModel(t *testing.T) {
	pool, _ := newMockPool(t)
	ctx := context.Background()

	m := &BaseModel{}
	insert := pool.DB().NewInsert()
	if err := m.BeforeAppendModel(ctx, insert); err != nil {
		t.Fatalf("BeforeAppendModel failed: %v", err)
	}
	if m.CreatedAt.IsZero() || m.UpdatedAt.IsZero() {
		t.Error("insert hook should set both timestamps")
	}

	created := m.CreatedAt
	time.Sleep(time.Millisecond)

	update := pool.DB().NewUpdate()
	if err := m.BeforeAppendModel(ctx, update); err != nil {
		t.Fatalf("BeforeAppendModel failed: %v", err)
	}
	if !m.CreatedAt.Equal(created) {
		t.Error("update hook should not touch CreatedAt")
	}
	if !m.UpdatedAt.After(created) {
		t.Error("update hook should advance UpdatedAt")
	}
}

func TestTimestampedModel_BeforeAppendModel(t *testing.T) {
	pool, _ := newMockPool(t)
	ctx := context.Background()

	m := &TimestampedModel{}
	insert := pool.DB().NewInsert()
	if err := m.BeforeAppendModel(ctx, insert); err != nil {
		t.Fatalf("BeforeAppendModel failed: %v", err)
	}
	if m.CreatedAt.IsZero() || m.UpdatedAt.IsZero() {
		t.Error("insert hook should set both timestamps")
	}
}

func TestBaseModel_SerializerIntegration(t *testing.T) {
	u := modelUser{Email: "ada@example.com"}
	u.ID = "abc"

	// Embedders inherit the exclusion set
	out, err := ToMapping(&u)
	if err != nil {
		t.Fatalf("ToMapping failed: %v", err)
	}
	if _, ok := out["id"]; ok {
		t.Error("inherited exclusion should keep id out of mappings")
	}
	if out["email"] != "ada@example.com" {
		t.Errorf("expected email in the mapping, got %v", out)
	}

	var in modelUser
	src := map[string]any{"id": "server-owned", "email": "new@example.com"}
	if err := Populate(&in, src); err != nil {
		t.Fatalf("Populate failed: %v", err)
	}
	if in.ID != "" {
		t.Errorf("inherited exclusion should keep id from being populated, got %q", in.ID)
	}
	if in.Email != "new@example.com" {
		t.Errorf("expected email populated, got %q", in.Email)
	}
}
