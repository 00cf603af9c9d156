package memory

import (
	"context"
	"testing"

	"smartxerox/internal/domain"
)

func doc(id string) domain.Document {
	return domain.Document{ID: id, Text: "order " + id, Metadata: map[string]string{"order_id": id}}
}

func TestStorage_UpsertSearch(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	if err := s.Init(ctx, 2); err != nil {
		t.Fatal(err)
	}
	err := s.Upsert(ctx,
		[]domain.Document{doc("1"), doc("2"), doc("3")},
		[][]float64{{1, 0}, {0, 1}, {0.7, 0.7}},
	)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	res, err := s.Search(ctx, []float64{1, 0.1}, 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("len = %d, want 2", len(res))
	}
	if res[0].Document.ID != "1" || res[1].Document.ID != "3" {
		t.Errorf("order = %s, %s; want 1, 3", res[0].Document.ID, res[1].Document.ID)
	}
	if res[0].Score < res[1].Score {
		t.Error("results should be sorted by score")
	}
}

func TestStorage_UpsertReplacesByID(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	_ = s.Init(ctx, 1)
	_ = s.Upsert(ctx, []domain.Document{doc("1")}, [][]float64{{1}})
	_ = s.Upsert(ctx, []domain.Document{doc("1")}, [][]float64{{-1}})

	if n, _ := s.Count(ctx); n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}

func TestStorage_Errors(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	if err := s.Init(ctx, 0); err == nil {
		t.Error("Init(0) should fail")
	}
	_ = s.Init(ctx, 2)
	if err := s.Upsert(ctx, []domain.Document{doc("1")}, nil); err == nil {
		t.Error("length mismatch should fail")
	}
	if err := s.Upsert(ctx, []domain.Document{doc("1")}, [][]float64{{1, 2, 3}}); err == nil {
		t.Error("dimension mismatch should fail")
	}
}

func TestStorage_InitNewDimensionClears(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	_ = s.Init(ctx, 1)
	_ = s.Upsert(ctx, []domain.Document{doc("1")}, [][]float64{{1}})

	_ = s.Init(ctx, 1)
	if n, _ := s.Count(ctx); n != 1 {
		t.Errorf("same-dimension Init should keep documents, Count() = %d", n)
	}
	_ = s.Init(ctx, 3)
	if n, _ := s.Count(ctx); n != 0 {
		t.Errorf("new-dimension Init should drop documents, Count() = %d", n)
	}

	_ = s.Upsert(ctx, []domain.Document{doc("2")}, [][]float64{{1, 1, 1}})
	_ = s.Clear(ctx)
	if n, _ := s.Count(ctx); n != 0 {
		t.Errorf("Clear() left %d documents", n)
	}
}
