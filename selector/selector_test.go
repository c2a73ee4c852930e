package selector

import (
	"context"
	"errors"
	"testing"

	"github.com/lspecian/chain-of-experts/llm"
)

// fakeProvider fails Complete calls until failures is exhausted.
type fakeProvider struct {
	name      string
	failures  int
	calls     int
	available bool
}

func newFakeProvider(name string) *fakeProvider {
	return &fakeProvider{name: name, available: true}
}

func (f *fakeProvider) Name() string                       { return f.name }
func (f *fakeProvider) IsAvailable(_ context.Context) bool { return f.available }

func (f *fakeProvider) Complete(_ context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.calls++
	if f.failures > 0 {
		f.failures--
		return nil, errors.New(f.name + " unavailable")
	}
	return &llm.CompletionResponse{Content: "from " + f.name, Model: f.name + "-model"}, nil
}

func (f *fakeProvider) Embed(_ context.Context, req llm.EmbeddingRequest) (*llm.EmbeddingResponse, error) {
	if f.failures > 0 {
		f.failures--
		return nil, errors.New(f.name + " unavailable")
	}
	return &llm.EmbeddingResponse{Embeddings: make([][]float64, len(req.Input))}, nil
}

func candidates(ps ...*fakeProvider) []llm.Provider {
	out := make([]llm.Provider, len(ps))
	for i, p := range ps {
		out[i] = p
	}
	return out
}

// --- Default ---

func TestDefault_FirstCandidate(t *testing.T) {
	a, b := newFakeProvider("a"), newFakeProvider("b")

	p, err := Default{}.Select(candidates(a, b), Context{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "a" {
		t.Errorf("expected a, got %s", p.Name())
	}
}

func TestDefault_HonorsPreferred(t *testing.T) {
	a, b := newFakeProvider("a"), newFakeProvider("b")

	p, err := Default{}.Select(candidates(a, b), Context{PreferredProvider: "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "b" {
		t.Errorf("expected b, got %s", p.Name())
	}
}

func TestDefault_UnknownPreferredFallsBack(t *testing.T) {
	a := newFakeProvider("a")

	p, err := Default{}.Select(candidates(a), Context{PreferredProvider: "ghost"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "a" {
		t.Errorf("expected a, got %s", p.Name())
	}
}

func TestDefault_EmptyCandidates(t *testing.T) {
	_, err := Default{}.Select(nil, Context{})
	if err == nil {
		t.Fatal("expected error for empty candidates")
	}
}

// --- FallbackChain ---

func TestFallbackChain_UsesSecondOnFailure(t *testing.T) {
	a, b := newFakeProvider("a"), newFakeProvider("b")
	a.failures = 1000 // always fails

	p, err := FallbackChain{}.Select(candidates(a, b), Context{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resp, err := p.Complete(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("expected fallback success, got %v", err)
	}
	if resp.Content != "from b" {
		t.Errorf("expected result from b, got %q", resp.Content)
	}
	if a.calls != 1 {
		t.Errorf("expected a tried once, got %d", a.calls)
	}
}

func TestFallbackChain_SurfacesFinalError(t *testing.T) {
	a, b := newFakeProvider("a"), newFakeProvider("b")
	a.failures = 1000
	b.failures = 1000

	p, _ := FallbackChain{}.Select(candidates(a, b), Context{})

	_, err := p.Complete(context.Background(), llm.CompletionRequest{})
	if err == nil {
		t.Fatal("expected error when all candidates fail")
	}
	if err.Error() != "b unavailable" {
		t.Errorf("expected final candidate's error, got %q", err)
	}
}

func TestFallbackChain_InnerStrategyPicksPrimary(t *testing.T) {
	a, b := newFakeProvider("a"), newFakeProvider("b")

	p, err := FallbackChain{Inner: Default{}}.Select(candidates(a, b), Context{PreferredProvider: "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resp, err := p.Complete(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "from b" {
		t.Errorf("expected preferred candidate first, got %q", resp.Content)
	}
	if a.calls != 0 {
		t.Errorf("expected a untouched, got %d calls", a.calls)
	}
}

func TestFallbackChain_EmbedFallsBack(t *testing.T) {
	a, b := newFakeProvider("a"), newFakeProvider("b")
	a.failures = 1000

	p, _ := FallbackChain{}.Select(candidates(a, b), Context{})

	resp, err := p.Embed(context.Background(), llm.EmbeddingRequest{Input: []string{"x"}})
	if err != nil {
		t.Fatalf("expected embed fallback success, got %v", err)
	}
	if len(resp.Embeddings) != 1 {
		t.Errorf("unexpected embeddings: %v", resp.Embeddings)
	}
}

// --- CostBased ---

func testCostTable() CostTable {
	return CostTable{
		PerProvider: map[string]float64{"cheap": 1.0, "mid": 5.0, "pricey": 9.0},
		PerModel: map[string]map[string]float64{
			"pricey": {"pricey-lite": 0.5},
		},
	}
}

func TestCostBased_PicksCheapest(t *testing.T) {
	s := CostBased{Table: testCostTable()}
	pricey, mid, cheap := newFakeProvider("pricey"), newFakeProvider("mid"), newFakeProvider("cheap")

	p, err := s.Select(candidates(pricey, mid, cheap), Context{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "cheap" {
		t.Errorf("expected cheap, got %s", p.Name())
	}
}

func TestCostBased_ModelOverridesProviderDefault(t *testing.T) {
	s := CostBased{Table: testCostTable()}
	pricey, cheap := newFakeProvider("pricey"), newFakeProvider("cheap")

	// pricey-lite override (0.5) beats cheap's provider default (1.0)
	p, err := s.Select(candidates(pricey, cheap), Context{PreferredModel: "pricey-lite"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "pricey" {
		t.Errorf("expected pricey via model override, got %s", p.Name())
	}
}

func TestCostBased_HonorsCeiling(t *testing.T) {
	s := CostBased{Table: testCostTable()}
	pricey, mid := newFakeProvider("pricey"), newFakeProvider("mid")

	p, err := s.Select(candidates(pricey, mid), Context{CostCeiling: 6.0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "mid" {
		t.Errorf("expected mid under ceiling, got %s", p.Name())
	}
}

func TestCostBased_CeilingExcludesAll(t *testing.T) {
	s := CostBased{Table: testCostTable()}
	pricey, mid := newFakeProvider("pricey"), newFakeProvider("mid")

	// Nothing under ceiling 0.1 -> cheapest overall
	p, err := s.Select(candidates(pricey, mid), Context{CostCeiling: 0.1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "mid" {
		t.Errorf("expected cheapest overall, got %s", p.Name())
	}
}

func TestCostTable_UnknownCombo(t *testing.T) {
	tbl := testCostTable()
	if got := tbl.UnitCost("ghost", ""); got != DefaultUnknownCost {
		t.Errorf("expected default cost %v, got %v", DefaultUnknownCost, got)
	}
}

// --- QualityBased ---

func TestQualityBased_PicksHighestScore(t *testing.T) {
	s := QualityBased{
		Table: QualityTable{PerProvider: map[string]float64{"a": 3.0, "b": 8.0}},
	}
	a, b := newFakeProvider("a"), newFakeProvider("b")

	p, err := s.Select(candidates(a, b), Context{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "b" {
		t.Errorf("expected b, got %s", p.Name())
	}
}

func TestQualityBased_TaskPreferenceFlipsRanking(t *testing.T) {
	s := QualityBased{
		Table:           QualityTable{PerProvider: map[string]float64{"a": 7.0, "b": 7.5}},
		TaskPreferences: map[string][]string{"extraction": {"a"}},
	}
	a, b := newFakeProvider("a"), newFakeProvider("b")

	// Without preference b wins; the extraction boost flips it.
	p, err := s.Select(candidates(a, b), Context{TaskType: "extraction"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "a" {
		t.Errorf("expected a boosted by task preference, got %s", p.Name())
	}
}

func TestQualityBased_TieGoesToEarlierCandidate(t *testing.T) {
	s := QualityBased{
		Table: QualityTable{PerProvider: map[string]float64{"a": 5.0, "b": 5.0}},
	}
	a, b := newFakeProvider("a"), newFakeProvider("b")

	p, err := s.Select(candidates(a, b), Context{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "a" {
		t.Errorf("expected earlier candidate on tie, got %s", p.Name())
	}
}

func TestQualityBased_ModelOverride(t *testing.T) {
	s := QualityBased{
		Table: QualityTable{
			PerProvider: map[string]float64{"a": 2.0, "b": 6.0},
			PerModel:    map[string]map[string]float64{"a": {"a-pro": 9.0}},
		},
	}
	a, b := newFakeProvider("a"), newFakeProvider("b")

	p, err := s.Select(candidates(a, b), Context{PreferredModel: "a-pro"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "a" {
		t.Errorf("expected a via model override, got %s", p.Name())
	}
}

// --- determinism ---

func TestStrategies_Deterministic(t *testing.T) {
	a, b, c := newFakeProvider("a"), newFakeProvider("b"), newFakeProvider("c")
	cands := candidates(a, b, c)
	sc := Context{TaskType: "summarization", CostCeiling: 5.0}

	strategies := []Strategy{
		Default{},
		CostBased{Table: testCostTable()},
		QualityBased{Table: QualityTable{PerProvider: map[string]float64{"a": 1, "b": 2, "c": 3}}},
	}

	for _, s := range strategies {
		first, err := s.Select(cands, sc)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for i := 0; i < 5; i++ {
			again, err := s.Select(cands, sc)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if again.Name() != first.Name() {
				t.Fatalf("strategy %T not deterministic: %s then %s", s, first.Name(), again.Name())
			}
		}
	}
}
