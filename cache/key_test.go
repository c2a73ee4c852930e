package cache

import "testing"

func TestKey_Deterministic(t *testing.T) {
	input := map[string]any{"query": "hello", "limit": 5}
	params := map[string]any{"temperature": 0.1}

	k1 := Key("summarize", input, params)
	k2 := Key("summarize", input, params)

	if k1 != k2 {
		t.Errorf("identical triples must produce identical keys: %s vs %s", k1, k2)
	}
	if len(k1) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(k1))
	}
}

func TestKey_MapOrderIrrelevant(t *testing.T) {
	// encoding/json sorts map keys, so construction order must not matter.
	a := map[string]any{"x": 1, "y": 2, "z": 3}
	b := map[string]any{"z": 3, "x": 1, "y": 2}

	if Key("s", a, nil) != Key("s", b, nil) {
		t.Error("map construction order changed the key")
	}
}

func TestKey_DistinguishesComponents(t *testing.T) {
	base := Key("stage", "input", "params")

	if Key("other", "input", "params") == base {
		t.Error("stage name must affect the key")
	}
	if Key("stage", "other", "params") == base {
		t.Error("input must affect the key")
	}
	if Key("stage", "input", "other") == base {
		t.Error("params must affect the key")
	}
}

func TestKey_NilComponents(t *testing.T) {
	k1 := Key("stage", nil, nil)
	k2 := Key("stage", nil, nil)
	if k1 != k2 {
		t.Error("nil components must hash deterministically")
	}
}
