// internal/vectorstore/memory/memory_test.go
package memory

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"docquery/internal/vectorstore"
)

func record(id, fileID string, vec []float32) vectorstore.Record {
	return vectorstore.Record{
		ID:     id,
		Values: vec,
		Metadata: vectorstore.Metadata{
			Text:   "text for " + id,
			FileID: fileID,
		},
	}
}

func TestQueryOrdersBySimilarity(t *testing.T) {
	s := New(2)
	ctx := context.Background()

	err := s.Upsert(ctx, "tenant-a", []vectorstore.Record{
		record("a", "f1", []float32{1, 0}),
		record("b", "f1", []float32{0, 1}),
		record("c", "f1", []float32{1, 1}),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	matches, err := s.Query(ctx, "tenant-a", []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(matches))
	}
	if matches[0].ID != "a" {
		t.Fatalf("expected top match a, got %s", matches[0].ID)
	}
}

func TestNamespaceIsolation(t *testing.T) {
	s := New(3)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	// Randomized fixtures across two tenants.
	for i := 0; i < 20; i++ {
		tenant := "tenant-a"
		if i%2 == 1 {
			tenant = "tenant-b"
		}
		vec := []float32{rng.Float32(), rng.Float32(), rng.Float32()}
		rec := record(fmt.Sprintf("%s-doc-%d", tenant, i), "file-x", vec)
		rec.Metadata.Text = "secret of " + tenant
		if err := s.Upsert(ctx, tenant, []vectorstore.Record{rec}); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	matches, err := s.Query(ctx, "tenant-b", []float32{0.5, 0.5, 0.5}, 50)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 10 {
		t.Fatalf("expected 10 tenant-b matches, got %d", len(matches))
	}
	for _, m := range matches {
		if m.Metadata.Text != "secret of tenant-b" {
			t.Fatalf("tenant-a record leaked into tenant-b query: %+v", m)
		}
	}
}

func TestQueryEmptyNamespaceReturnsNothing(t *testing.T) {
	s := New(2)
	matches, err := s.Query(context.Background(), "tenant-x", []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected no matches, got %d", len(matches))
	}
}

func TestUpsertRequiresNamespace(t *testing.T) {
	s := New(2)
	err := s.Upsert(context.Background(), "", []vectorstore.Record{record("a", "f", []float32{1, 0})})
	if err != vectorstore.ErrEmptyNamespace {
		t.Fatalf("expected ErrEmptyNamespace, got %v", err)
	}
}

func TestUpsertReplacesByID(t *testing.T) {
	s := New(2)
	ctx := context.Background()
	if err := s.Upsert(ctx, "t", []vectorstore.Record{record("a", "f1", []float32{1, 0})}); err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(ctx, "t", []vectorstore.Record{record("a", "f2", []float32{0, 1})}); err != nil {
		t.Fatal(err)
	}
	count, err := s.Count(ctx, "t")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record after replace, got %d", count)
	}
}

func TestDeleteFile(t *testing.T) {
	s := New(2)
	ctx := context.Background()
	err := s.Upsert(ctx, "t", []vectorstore.Record{
		record("a", "f1", []float32{1, 0}),
		record("b", "f1", []float32{0, 1}),
		record("c", "f2", []float32{1, 1}),
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteFile(ctx, "t", "f1"); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	count, err := s.Count(ctx, "t")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record after delete, got %d", count)
	}
	matches, err := s.Query(ctx, "t", []float32{1, 1}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 || matches[0].Metadata.FileID != "f2" {
		t.Fatalf("unexpected survivors: %+v", matches)
	}
}

func TestDimensionMismatchRejected(t *testing.T) {
	s := New(3)
	err := s.Upsert(context.Background(), "t", []vectorstore.Record{record("a", "f", []float32{1, 0})})
	if err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}
