package recipegen

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/semaphore"

	"kitchencraft.ai/internal/catalogs"
	"kitchencraft.ai/internal/recipe"
)

// Completer is the remote text generation call. *Client implements it.
type Completer interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type GeneratorOptions struct {
	// Workers bounds concurrent remote calls.
	Workers int
	// Timeout bounds one whole request, queueing included.
	Timeout time.Duration
	// CacheTTL memoises successful recipes per dish and category; 0 disables.
	CacheTTL time.Duration
}

func (o GeneratorOptions) withDefaults() GeneratorOptions {
	if o.Workers <= 0 {
		o.Workers = 2
	}
	if o.Timeout <= 0 {
		o.Timeout = 60 * time.Second
	}
	return o
}

// Generator builds prompts from an immutable catalog and runs a bounded
// number of remote calls at once.
type Generator struct {
	llm     Completer
	cat     *catalogs.Catalogs
	parser  *Parser
	sem     *semaphore.Weighted
	memo    *cache.Cache
	timeout time.Duration
	log     *log.Logger
}

func NewGenerator(llm Completer, cat *catalogs.Catalogs, logger *log.Logger, opts GeneratorOptions) *Generator {
	opts = opts.withDefaults()
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	g := &Generator{
		llm:     llm,
		cat:     cat,
		parser:  NewParser(cat.Items.IDs),
		sem:     semaphore.NewWeighted(int64(opts.Workers)),
		timeout: opts.Timeout,
		log:     logger,
	}
	if opts.CacheTTL > 0 {
		g.memo = cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}
	return g
}

func memoKey(dishName, category string) string {
	return strings.ToLower(strings.TrimSpace(dishName)) + "\x00" + strings.ToLower(strings.TrimSpace(category))
}

// GenerateRecipeForDish returns a fresh copy of the recipe; callers may keep it.
func (g *Generator) GenerateRecipeForDish(ctx context.Context, dishName, category string) (*recipe.RecipeData, error) {
	if strings.TrimSpace(dishName) == "" {
		return nil, fmt.Errorf("recipegen: empty dish name")
	}
	key := memoKey(dishName, category)
	if g.memo != nil {
		if v, ok := g.memo.Get(key); ok {
			return v.(*recipe.RecipeData).Clone(), nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: waiting for a worker: %w", ErrTransport, err)
	}
	defer g.sem.Release(1)

	g.log.Printf("recipegen: generating dish=%q category=%q", dishName, category)
	text, err := g.llm.Generate(ctx, BuildPrompt(g.cat, dishName, category))
	if err != nil {
		g.log.Printf("recipegen: dish=%q failed: %v", dishName, err)
		return nil, err
	}
	r, err := g.parser.Parse(text)
	if err != nil {
		g.log.Printf("recipegen: dish=%q parse failed: %v", dishName, err)
		return nil, err
	}
	if g.memo != nil {
		g.memo.Set(key, r.Clone(), cache.DefaultExpiration)
	}
	return r, nil
}
