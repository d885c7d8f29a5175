package profile

import "testing"

func TestClassifyDeclarativePattern(t *testing.T) {
	got := Classify("My name is Alice", 0.3, nil, 0.9)
	if !got.IsStatic {
		t.Error("expected static classification for declarative pattern")
	}
	if got.Reason != "declarative_pattern" {
		t.Errorf("Reason = %q", got.Reason)
	}
}

func TestClassifyImportanceThreshold(t *testing.T) {
	got := Classify("the bus was late today", 0.95, nil, 0.9)
	if !got.IsStatic {
		t.Error("expected static classification above importance threshold")
	}
}

func TestClassifyEntityPredicate(t *testing.T) {
	got := Classify("works remotely most days", 0.3, []string{"employer:Acme"}, 0.9)
	if !got.IsStatic {
		t.Error("expected static classification for employer entity predicate")
	}
}

func TestClassifyFavoritePredicate(t *testing.T) {
	got := Classify("prefers dark roast", 0.3, []string{"favorite_drink:espresso"}, 0.9)
	if !got.IsStatic {
		t.Error("expected static classification for favorite_ predicate")
	}
}

func TestClassifyDynamic(t *testing.T) {
	got := Classify("had a rough meeting today", 0.3, []string{"mood:stressed"}, 0.9)
	if got.IsStatic {
		t.Error("expected dynamic classification")
	}
	if got.Reason != "dynamic" {
		t.Errorf("Reason = %q", got.Reason)
	}
}
