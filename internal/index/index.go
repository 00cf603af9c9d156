package index

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"smartxerox/internal/apperr"
	"smartxerox/internal/domain"
	"smartxerox/internal/vectorstore"
)

const upsertBatchSize = 256

// Options tunes index construction and lookup.
type Options struct {
	Workers  int
	CacheTTL time.Duration
	Logger   *slog.Logger
}

// BuildStats describes what Build did.
type BuildStats struct {
	Documents int
	Embedded  int
	Skipped   bool
	Duration  time.Duration
}

// Index is the retrieval side of the assistant: order documents embedded into
// a vector store, searched by question similarity.
type Index struct {
	embedder domain.Embedder
	store    vectorstore.Storage
	docs     []domain.Document
	queries  *cache.Cache
	workers  int
	logger   *slog.Logger
}

// New renders every order of ds into a document. Nothing is embedded until Build.
func New(ds *domain.Dataset, embedder domain.Embedder, store vectorstore.Storage, opts Options) *Index {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 10 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	var docs []domain.Document
	if ds != nil {
		docs = make([]domain.Document, len(ds.Orders))
		seen := make(map[string]int, len(ds.Orders))
		for i, o := range ds.Orders {
			docs[i] = DocumentFor(o)
			// Repeated order IDs would collapse into one stored document.
			if n := seen[o.OrderID]; n > 0 {
				docs[i].ID = fmt.Sprintf("%s#%d", o.OrderID, n)
			}
			seen[o.OrderID]++
		}
	}
	return &Index{
		embedder: embedder,
		store:    store,
		docs:     docs,
		queries:  cache.New(opts.CacheTTL, 2*opts.CacheTTL),
		workers:  opts.Workers,
		logger:   opts.Logger,
	}
}

// DocumentFor renders the searchable text of an order.
func DocumentFor(o domain.Order) domain.Document {
	date := o.Date.Format("2006-01-02")
	text := fmt.Sprintf(
		"On %s, order %s was completed. The user %s printed %d pages. "+
			"Total amount paid was ₹%s. Shop earned ₹%s and app earned ₹%s.",
		date, o.OrderID, o.UserName, o.Pages,
		o.TotalAmount.StringFixed(2), o.ShopEarning.StringFixed(2), o.AppEarning.StringFixed(2),
	)
	return domain.Document{
		ID:   o.OrderID,
		Text: text,
		Metadata: map[string]string{
			"date":     date,
			"order_id": o.OrderID,
			"user":     o.UserName,
		},
	}
}

// Build prepares the embedder over all documents and fills the store. A store
// that already holds every document is left alone unless force is set.
func (x *Index) Build(ctx context.Context, force bool) (BuildStats, error) {
	start := time.Now()
	stats := BuildStats{Documents: len(x.docs)}
	if len(x.docs) == 0 {
		return stats, apperr.New(apperr.CodeIndex, "no documents to index")
	}

	texts := make([]string, len(x.docs))
	for i, d := range x.docs {
		texts[i] = d.Text
	}
	if err := x.embedder.Prepare(texts); err != nil {
		return stats, apperr.Wrap(err, apperr.CodeIndex, "prepare embedder")
	}

	// Remote embedders learn their dimension from the first response.
	var first []float64
	if x.embedder.Dimension() == 0 {
		v, err := x.embedder.Embed(ctx, texts[0])
		if err != nil {
			return stats, apperr.Wrap(err, apperr.CodeIndex, "probe embedding dimension")
		}
		first = v
	}
	dim := x.embedder.Dimension()
	if err := x.store.Init(ctx, dim); err != nil {
		return stats, apperr.Wrap(err, apperr.CodeIndex, "init vector store")
	}

	count, err := x.store.Count(ctx)
	if err != nil {
		return stats, apperr.Wrap(err, apperr.CodeIndex, "count stored documents")
	}
	if count == len(x.docs) && !force {
		stats.Skipped = true
		stats.Duration = time.Since(start)
		x.logger.Info("index up to date, skipping ingest", "documents", count, "embedder", x.embedder.Name())
		return stats, nil
	}
	if count > 0 {
		if err := x.store.Clear(ctx); err != nil {
			return stats, apperr.Wrap(err, apperr.CodeIndex, "clear vector store")
		}
		if err := x.store.Init(ctx, dim); err != nil {
			return stats, apperr.Wrap(err, apperr.CodeIndex, "init vector store")
		}
	}

	vectors, err := x.embedAll(ctx, texts, first)
	if err != nil {
		return stats, apperr.Wrap(err, apperr.CodeIndex, "embed documents")
	}
	for lo := 0; lo < len(x.docs); lo += upsertBatchSize {
		hi := min(lo+upsertBatchSize, len(x.docs))
		if err := x.store.Upsert(ctx, x.docs[lo:hi], vectors[lo:hi]); err != nil {
			return stats, apperr.Wrap(err, apperr.CodeIndex, "upsert documents")
		}
	}

	stats.Embedded = len(vectors)
	stats.Duration = time.Since(start)
	x.logger.Info("index built",
		"documents", stats.Documents,
		"embedder", x.embedder.Name(),
		"dimension", dim,
		"duration", stats.Duration)
	return stats, nil
}

// embedAll embeds texts with a bounded worker pool. first, when set, is the
// already-computed vector of texts[0].
func (x *Index) embedAll(ctx context.Context, texts []string, first []float64) ([][]float64, error) {
	vectors := make([][]float64, len(texts))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(x.workers)
	for i, text := range texts {
		if i == 0 && first != nil {
			vectors[0] = first
			continue
		}
		i, text := i, text
		g.Go(func() error {
			v, err := x.embedder.Embed(ctx, text)
			if err != nil {
				return fmt.Errorf("document %s: %w", x.docs[i].ID, err)
			}
			vectors[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// Retrieve returns at most topK documents most similar to query, best first.
// When the embedding carries no signal it falls back to token overlap, which
// only returns documents sharing at least one token with the query.
func (x *Index) Retrieve(ctx context.Context, query string, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = 20
	}
	vec, err := x.queryVector(ctx, query)
	if err != nil {
		return nil, apperr.Retrieval(err)
	}
	if isZero(vec) {
		return x.lexicalSearch(query, topK), nil
	}
	res, err := x.store.Search(ctx, vec, topK)
	if err != nil {
		return nil, apperr.Retrieval(err)
	}
	for _, r := range res {
		if r.Score > 1e-9 {
			return res, nil
		}
	}
	return x.lexicalSearch(query, topK), nil
}

func (x *Index) queryVector(ctx context.Context, query string) ([]float64, error) {
	key := strings.ToLower(strings.TrimSpace(query))
	if v, ok := x.queries.Get(key); ok {
		return v.([]float64), nil
	}
	vec, err := x.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	x.queries.Set(key, vec, cache.DefaultExpiration)
	return vec, nil
}

func isZero(vec []float64) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}

var tokenRe = regexp.MustCompile(`[\p{L}\p{N}]+`)

var lexicalStopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "in": {}, "on": {}, "at": {}, "to": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "it": {}, "by": {}, "for": {}, "with": {},
	"how": {}, "what": {}, "which": {}, "who": {}, "when": {}, "did": {}, "does": {}, "do": {},
}

func (x *Index) lexicalSearch(query string, topK int) []domain.SearchResult {
	qset := toTokenSet(query)
	type pair struct {
		idx   int
		score float64
	}
	var scores []pair
	for i, d := range x.docs {
		if s := overlapOchiai(qset, d.Text); s > 0 {
			scores = append(scores, pair{i, s})
		}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if topK > len(scores) {
		topK = len(scores)
	}
	out := make([]domain.SearchResult, 0, topK)
	for _, p := range scores[:topK] {
		out = append(out, domain.SearchResult{Document: x.docs[p.idx], Score: p.score})
	}
	return out
}

func toTokenSet(s string) map[string]struct{} {
	tokens := tokenRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, stop := lexicalStopwords[t]; stop {
			continue
		}
		if len(t) < 2 {
			if _, err := strconv.Atoi(t); err != nil {
				continue
			}
		}
		m[t] = struct{}{}
	}
	return m
}

// overlapOchiai is |A∩B| / sqrt(|A||B|) over distinct tokens.
func overlapOchiai(qset map[string]struct{}, text string) float64 {
	if len(qset) == 0 {
		return 0
	}
	seen := toTokenSet(text)
	if len(seen) == 0 {
		return 0
	}
	inter := 0
	for t := range seen {
		if _, ok := qset[t]; ok {
			inter++
		}
	}
	return float64(inter) / math.Sqrt(float64(len(qset))*float64(len(seen)))
}
