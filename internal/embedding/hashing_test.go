package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/hyperjump/lexrag/internal/vector"
)

func newTestHashing(t *testing.T, dim int) *HashingEmbedder {
	t.Helper()
	e, err := NewHashingEmbedder(dim)
	if err != nil {
		t.Fatalf("NewHashingEmbedder: %v", err)
	}
	return e
}

func TestHashingEmbedder_Deterministic(t *testing.T) {
	e := newTestHashing(t, 256)
	ctx := context.Background()
	a, _ := e.Embed(ctx, "The licensee may terminate this agreement.")
	b, _ := e.Embed(ctx, "The licensee may terminate this agreement.")
	if len(a) != 256 {
		t.Fatalf("len = %d, want 256", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embedding differs at %d", i)
		}
	}
}

func TestHashingEmbedder_Normalized(t *testing.T) {
	e := newTestHashing(t, 128)
	v, _ := e.Embed(context.Background(), "Personal data is processed lawfully and fairly.")
	if n := vector.L2Norm(v); math.Abs(n-1) > 1e-5 {
		t.Errorf("norm = %v, want 1", n)
	}

	zero, _ := e.Embed(context.Background(), "   ")
	if vector.L2Norm(zero) != 0 {
		t.Error("text without terms should embed to the zero vector")
	}
}

func TestHashingEmbedder_SharedStemsRankHigher(t *testing.T) {
	e := newTestHashing(t, 1024)
	ctx := context.Background()
	query, _ := e.Embed(ctx, "How do I terminate my contract?")
	termination, _ := e.Embed(ctx, "Contracts may be terminated with 30 days notice.")
	marketing, _ := e.Embed(ctx, "Marketing contact requires consent.")

	near := vector.InnerProduct(query, termination)
	far := vector.InnerProduct(query, marketing)
	if near <= far {
		t.Errorf("termination chunk score %v should exceed marketing chunk score %v", near, far)
	}
}

func TestHashingEmbedder_Terms(t *testing.T) {
	e := newTestHashing(t, 64)
	terms := e.Terms("Contracts terminated")
	if len(terms) != 2 {
		t.Fatalf("terms = %v", terms)
	}
	if terms[0] != "contract" {
		t.Errorf("expected stemmed term contract, got %q", terms[0])
	}
}

func TestHashingEmbedder_IdentityAndBatch(t *testing.T) {
	e := newTestHashing(t, 64)
	if e.Identity() != "hashing-en/64" {
		t.Errorf("Identity = %s", e.Identity())
	}
	out, err := e.EmbedBatch(context.Background(), []string{"a contract", "consent"})
	if err != nil || len(out) != 2 {
		t.Fatalf("EmbedBatch = %d, %v", len(out), err)
	}
	if _, err := NewHashingEmbedder(0); err == nil {
		t.Error("expected error for zero dimensions")
	}
}
