package vector

import (
	"context"
	"math"
	"testing"
)

func TestMemoryIndex_UpsertSearch(t *testing.T) {
	idx, err := NewMemoryIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()

	err = idx.Upsert(ctx, []string{"a", "b", "c"}, [][]float32{{1, 0, 0}, {0, 1, 0}, {0.6, 0.8, 0}})
	if err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 3 {
		t.Errorf("Size=%d, want 3", idx.Size())
	}

	res, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 2 {
		t.Fatalf("len=%d, want 2", len(res))
	}
	if res[0].ID != "a" || res[1].ID != "c" {
		t.Errorf("order = %s,%s, want a,c", res[0].ID, res[1].ID)
	}
	if res[0].Score < res[1].Score {
		t.Error("scores should be non-increasing")
	}
}

func TestMemoryIndex_UpsertOverwrites(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Upsert(ctx, []string{"a"}, [][]float32{{1, 0}})
	_ = idx.Upsert(ctx, []string{"a"}, [][]float32{{0, 1}})
	if idx.Size() != 1 {
		t.Errorf("Size=%d, want 1", idx.Size())
	}
	res, _ := idx.Search(ctx, []float32{0, 1}, 1)
	if len(res) != 1 || math.Abs(res[0].Score-1) > 1e-6 {
		t.Errorf("expected overwritten vector to match, got %+v", res)
	}
}

func TestMemoryIndex_KLargerThanSize(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Upsert(ctx, []string{"x", "y"}, [][]float32{{1, 0}, {1, 0}})
	res, err := idx.Search(ctx, []float32{1, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 2 {
		t.Fatalf("len=%d, want 2", len(res))
	}
	if res[0].ID != "x" {
		t.Errorf("ties should order by id, got %s first", res[0].ID)
	}
}

func TestMemoryIndex_DimensionMismatch(t *testing.T) {
	idx, _ := NewMemoryIndex(3)
	if err := idx.Upsert(context.Background(), []string{"a"}, [][]float32{{1, 0}}); err == nil {
		t.Error("expected dimension error")
	}
	if _, err := idx.Search(context.Background(), []float32{1}, 1); err == nil {
		t.Error("expected query dimension error")
	}
	if _, err := NewMemoryIndex(0); err == nil {
		t.Error("expected error for zero dimensions")
	}
}

func TestEncodeDecode(t *testing.T) {
	v := []float32{0.25, -1.5, 3}
	got, err := Decode(Encode(v))
	if err != nil {
		t.Fatal(err)
	}
	for i := range v {
		if got[i] != v[i] {
			t.Errorf("index %d: got %v, want %v", i, got[i], v[i])
		}
	}
	if _, err := Decode([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated blob")
	}
}
