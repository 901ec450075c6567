package recipegen

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"kitchencraft.ai/internal/catalogs"
	"kitchencraft.ai/internal/recipe"
)

const tamagoyaki = "```json\n" + `{"dishName":"Tamagoyaki","totalWeightGrams":100,"ingredients":[{"item":"minecraft:egg","amountType":"count","amount":0.3}],"steps":[{"action":"mix_in_bowl","description":"crack and beat eggs"}],"nutritionPer100g":3.0,"saturationPer100g":0.4,"expirationHours":24}` + "\n```"

func envelope(text string) string {
	b, _ := json.Marshal(map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": text}}}},
		},
	})
	return string(b)
}

func newTestLogger(w io.Writer) *log.Logger { return log.New(w, "", 0) }

func defaultCatalogs(t *testing.T) *catalogs.Catalogs {
	t.Helper()
	c, err := catalogs.Default()
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	return c
}

func TestExtractJSON(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n{\"a\":1}```":       `{"a":1}`,
		"  {\"a\":1}  ":           `{"a":1}`,
		"{\"a\":1}\n```":          `{"a":1}`,
	}
	for in, want := range cases {
		if got := ExtractJSON(in); got != want {
			t.Fatalf("ExtractJSON(%q)=%q want=%q", in, got, want)
		}
	}
}

func TestParse_TamagoyakiFenced(t *testing.T) {
	p := NewParser(defaultCatalogs(t).Items.IDs)
	r, err := p.Parse(tamagoyaki)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if r.DishName != "Tamagoyaki" || r.TotalWeightGrams != 100 || r.ExpirationHours != 24 {
		t.Fatalf("recipe=%+v", r)
	}
	if len(r.Ingredients) != 1 || len(r.Steps) != 1 {
		t.Fatalf("ingredients=%d steps=%d", len(r.Ingredients), len(r.Steps))
	}
	ing := r.Ingredients[0]
	if ing.ItemID != "minecraft:egg" || ing.AmountType != recipe.AmountCount || ing.Amount != 0.3 {
		t.Fatalf("ingredient=%+v", ing)
	}
	if r.Steps[0].Action != "mix_in_bowl" || r.Steps[0].Description != "crack and beat eggs" {
		t.Fatalf("step=%+v", r.Steps[0])
	}
}

func TestParse_RejectsPartial(t *testing.T) {
	p := NewParser(nil)
	bad := []string{
		``,
		`not json`,
		`{"dishName":"x","totalWeightGrams":100,"ingredients":[],"steps":[{"action":"a","description":"d"}],"nutritionPer100g":1,"saturationPer100g":1,"expirationHours":1}`,
		`{"dishName":"x","totalWeightGrams":100,"ingredients":[{"item":"minecraft:egg","amountType":"count","amount":1}],"steps":[],"nutritionPer100g":1,"saturationPer100g":1,"expirationHours":1}`,
		`{"dishName":"x","totalWeightGrams":100,"ingredients":[{"item":"minecraft:egg","amountType":"cups","amount":1}],"steps":[{"action":"a","description":"d"}],"nutritionPer100g":1,"saturationPer100g":1,"expirationHours":1}`,
		`{"dishName":"x","ingredients":[{"item":"minecraft:egg","amountType":"count","amount":1}],"steps":[{"action":"a","description":"d"}],"nutritionPer100g":1,"saturationPer100g":1,"expirationHours":1}`,
		`{"dishName":"x","totalWeightGrams":"100","ingredients":[{"item":"minecraft:egg","amountType":"count","amount":1}],"steps":[{"action":"a","description":"d"}],"nutritionPer100g":1,"saturationPer100g":1,"expirationHours":1}`,
		`{"dishName":"x","totalWeightGrams":100.5,"ingredients":[{"item":"minecraft:egg","amountType":"count","amount":1}],"steps":[{"action":"a","description":"d"}],"nutritionPer100g":1,"saturationPer100g":1,"expirationHours":1}`,
	}
	for i, text := range bad {
		r, err := p.Parse(text)
		if !errors.Is(err, ErrParse) || r != nil {
			t.Fatalf("case %d: r=%v err=%v", i, r, err)
		}
	}
}

func TestParse_SnapsNearMissItemIDs(t *testing.T) {
	p := NewParser(defaultCatalogs(t).Items.IDs)
	text := strings.Replace(tamagoyaki, "minecraft:egg", "minecraft:eggs", 1)
	r, err := p.Parse(text)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if r.Ingredients[0].ItemID != "minecraft:egg" {
		t.Fatalf("item=%q", r.Ingredients[0].ItemID)
	}

	text = strings.Replace(tamagoyaki, "minecraft:egg", "othermod:dragonfruit", 1)
	r, err = p.Parse(text)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if r.Ingredients[0].ItemID != "othermod:dragonfruit" {
		t.Fatalf("far id should be kept verbatim, got %q", r.Ingredients[0].ItemID)
	}
}

func TestResolve_SnapsOnlyUnambiguousMatches(t *testing.T) {
	p := NewParser(defaultCatalogs(t).Items.IDs)
	cases := []struct{ in, want string }{
		{"minecraft:egg", "minecraft:egg"},
		{"minecraft:eggs", "minecraft:egg"},
		{"minecraft:carrots", "minecraft:carrot"},
		{"minecraft:rice", "customcookingmod:rice"},
		{"customcookingmod:sesam_oil", "customcookingmod:sesame_oil"},
		// One letter away from beef and cod, but different foods.
		{"minecraft:beet", "minecraft:beet"},
		{"minecraft:cow", "minecraft:cow"},
	}
	for _, c := range cases {
		if got := p.resolve(c.in); got != c.want {
			t.Fatalf("resolve(%q) got=%q want=%q", c.in, got, c.want)
		}
	}

	tied := NewParser([]string{"a:cod", "b:cod"})
	if got := tied.resolve("c:cod"); got != "c:cod" {
		t.Fatalf("tied resolve got=%q want=c:cod", got)
	}
	tied = NewParser([]string{"a:pear", "a:peat"})
	if got := tied.resolve("a:peas"); got != "a:peas" {
		t.Fatalf("tied resolve got=%q want=a:peas", got)
	}
}

func TestBuildPrompt_Deterministic(t *testing.T) {
	c := defaultCatalogs(t)
	a := BuildPrompt(c, "Tamagoyaki", "breakfast")
	b := BuildPrompt(c, "Tamagoyaki", "breakfast")
	if a != b {
		t.Fatalf("prompt is not deterministic")
	}
	for _, want := range []string{
		"Tamagoyaki", "breakfast",
		"[customcookingmod]", "[minecraft]",
		"customcookingmod:potato_starch", "minecraft:water_bucket",
		"ih_heater + pot", "cutting_board + kitchen_knife",
		`"amountType": "grams"`, `"amountType": "count"`,
		"100 grams",
		"Return only the JSON",
	} {
		if !strings.Contains(a, want) {
			t.Fatalf("prompt missing %q", want)
		}
	}
	if strings.Contains(a, "large_plate") {
		t.Fatalf("containers should not be offered as ingredients")
	}
}

func TestClient_RequestShapeAndSuccess(t *testing.T) {
	var gotKey string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		_, _ = io.WriteString(w, envelope(tamagoyaki))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k-123", nil)
	text, err := c.Generate(context.Background(), "hello")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if text != tamagoyaki {
		t.Fatalf("text=%q", text)
	}
	if gotKey != "k-123" {
		t.Fatalf("key=%q", gotKey)
	}
	cfg, _ := gotBody["generationConfig"].(map[string]any)
	if cfg["temperature"] != 0.7 || cfg["maxOutputTokens"] != float64(2048) {
		t.Fatalf("generationConfig=%v", cfg)
	}
	contents, _ := gotBody["contents"].([]any)
	if len(contents) != 1 {
		t.Fatalf("contents=%v", gotBody["contents"])
	}
}

func TestClient_NoAPIKeyMakesNoRequest(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", nil)
	if _, err := c.Generate(context.Background(), "x"); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("err=%v", err)
	}
	if hits.Load() != 0 {
		t.Fatalf("request made without api key")
	}
}

func TestClient_Non200IsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"quota"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	var logs strings.Builder
	c := NewClient(srv.URL, "k", newTestLogger(&logs))
	if _, err := c.Generate(context.Background(), "x"); !errors.Is(err, ErrTransport) {
		t.Fatalf("err=%v", err)
	}
	if !strings.Contains(logs.String(), "status=429") || !strings.Contains(logs.String(), "quota") {
		t.Fatalf("status/body not logged: %q", logs.String())
	}
}

func TestClient_MissingCandidatesIsParseError(t *testing.T) {
	for _, body := range []string{`{}`, `{"candidates":[]}`, `{"candidates":[{"content":{}}]}`, `{"candidates":[{"content":{"parts":[]}}]}`, `oops`} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, body)
		}))
		c := NewClient(srv.URL, "k", nil)
		_, err := c.Generate(context.Background(), "x")
		srv.Close()
		if !errors.Is(err, ErrParse) {
			t.Fatalf("body=%s err=%v", body, err)
		}
	}
}

type fakeLLM struct {
	mu       sync.Mutex
	calls    int
	inflight int
	peak     int
	delay    time.Duration
	text     string
	err      error
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.inflight++
	if f.inflight > f.peak {
		f.peak = f.inflight
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inflight--
		f.mu.Unlock()
	}()
	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return f.text, f.err
}

func TestGenerator_BoundsConcurrencyAndMemoises(t *testing.T) {
	llm := &fakeLLM{delay: 20 * time.Millisecond, text: tamagoyaki}
	g := NewGenerator(llm, defaultCatalogs(t), nil, GeneratorOptions{Workers: 2, Timeout: 5 * time.Second, CacheTTL: time.Minute})

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dish := "Dish" + string(rune('A'+i))
			if _, err := g.GenerateRecipeForDish(context.Background(), dish, "test"); err != nil {
				t.Errorf("generate %s: %v", dish, err)
			}
		}(i)
	}
	wg.Wait()
	if llm.peak > 2 {
		t.Fatalf("peak concurrency=%d want<=2", llm.peak)
	}

	before := llm.calls
	a, err := g.GenerateRecipeForDish(context.Background(), "dishA", "TEST")
	if err != nil {
		t.Fatalf("memo hit: %v", err)
	}
	if llm.calls != before {
		t.Fatalf("memoised request reached the model")
	}
	a.Steps[0].Description = "mutated"
	b, _ := g.GenerateRecipeForDish(context.Background(), "DishA", "test")
	if b.Steps[0].Description == "mutated" {
		t.Fatalf("memo returned a shared value")
	}
}

func TestGenerator_NoMemoWithoutTTL(t *testing.T) {
	llm := &fakeLLM{text: tamagoyaki}
	g := NewGenerator(llm, defaultCatalogs(t), nil, GeneratorOptions{Workers: 1, Timeout: 5 * time.Second})
	for i := 0; i < 2; i++ {
		if _, err := g.GenerateRecipeForDish(context.Background(), "Tamagoyaki", "breakfast"); err != nil {
			t.Fatalf("generate %d: %v", i, err)
		}
	}
	if llm.calls != 2 {
		t.Fatalf("model calls got=%d want=2", llm.calls)
	}
}

func TestGenerator_TimeoutAndFailures(t *testing.T) {
	slow := &fakeLLM{delay: time.Second, text: tamagoyaki}
	g := NewGenerator(slow, defaultCatalogs(t), nil, GeneratorOptions{Workers: 1, Timeout: 20 * time.Millisecond})
	if r, err := g.GenerateRecipeForDish(context.Background(), "Slow", "x"); err == nil || r != nil {
		t.Fatalf("expected timeout, r=%v err=%v", r, err)
	}

	bad := &fakeLLM{text: `{"candidates":`}
	g = NewGenerator(bad, defaultCatalogs(t), nil, GeneratorOptions{})
	if _, err := g.GenerateRecipeForDish(context.Background(), "Bad", "x"); !errors.Is(err, ErrParse) {
		t.Fatalf("err=%v", err)
	}

	noKey := NewClient("http://127.0.0.1:1", "", nil)
	g = NewGenerator(noKey, defaultCatalogs(t), nil, GeneratorOptions{})
	if _, err := g.GenerateRecipeForDish(context.Background(), "Any", "x"); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("err=%v", err)
	}
}
