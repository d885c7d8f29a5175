package embedder

import (
	"context"
	"math"
	"testing"
)

func TestDeterministicEmbedIsStable(t *testing.T) {
	d := NewDeterministic(16)
	ctx := context.Background()

	a, err := d.Embed(ctx, "the user likes espresso")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	b, err := d.Embed(ctx, "the user likes espresso")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}

	if len(a) != 16 {
		t.Fatalf("len(a) = %d, want 16", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("a[%d] = %v, b[%d] = %v, want equal", i, a[i], i, b[i])
		}
	}
}

func TestDeterministicEmbedDiffersByInput(t *testing.T) {
	d := NewDeterministic(16)
	ctx := context.Background()

	a, _ := d.Embed(ctx, "the user likes espresso")
	b, _ := d.Embed(ctx, "the user dislikes espresso")

	equal := true
	for i := range a {
		if a[i] != b[i] {
			equal = false
			break
		}
	}
	if equal {
		t.Error("expected different inputs to produce different vectors")
	}
}

func TestDeterministicEmbedIsNormalized(t *testing.T) {
	d := NewDeterministic(32)
	v, err := d.Embed(context.Background(), "normalize me")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}

	var sumSquares float64
	for _, f := range v {
		sumSquares += float64(f) * float64(f)
	}
	norm := math.Sqrt(sumSquares)
	if math.Abs(norm-1.0) > 1e-6 {
		t.Errorf("norm = %v, want ~1.0", norm)
	}
}

func TestDeterministicEmbedBatch(t *testing.T) {
	d := NewDeterministic(8)
	out, err := d.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("len(out) = %d, want 3", len(out))
	}
	single, _ := d.Embed(context.Background(), "b")
	for i := range single {
		if out[1][i] != single[i] {
			t.Errorf("batch item 1 differs from single Embed at %d", i)
		}
	}
}

func TestDeterministicDimensionsAndModel(t *testing.T) {
	d := NewDeterministic(64)
	if d.Dimensions() != 64 {
		t.Errorf("Dimensions() = %d, want 64", d.Dimensions())
	}
	if d.ModelIdentifier() == "" {
		t.Error("ModelIdentifier() should not be empty")
	}
}
