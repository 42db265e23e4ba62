package sha256

import "testing"

func TestHashDeterministic(t *testing.T) {
	t.Parallel()

	h := New()
	got, err := h.Hash([]byte(`[{"name":"Samsung Galaxy A16"}]`))
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if len(got) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(got))
	}
	again, err := h.Hash([]byte(`[{"name":"Samsung Galaxy A16"}]`))
	if err != nil {
		t.Fatalf("Hash() repeat error = %v", err)
	}
	if again != got {
		t.Fatalf("expected deterministic hash, got %s vs %s", got, again)
	}
	other, err := h.Hash([]byte(`[]`))
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if other == got {
		t.Fatal("different inputs produced the same digest")
	}
}
