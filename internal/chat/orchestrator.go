// Package chat routes questions to the aggregation engine or the record index
// and records the conversation.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"smartxerox/internal/analytics"
	"smartxerox/internal/domain"
	"smartxerox/internal/router"
)

const (
	NoRecordsReply       = "No relevant records found for your question."
	retrievalFailedReply = "Sorry, I could not search the order records right now. Please try again."
	generationFailedText = "Sorry, the language model did not respond, so I could not answer this question."
)

// Classifier decides how a question is answered.
type Classifier interface {
	Classify(text string) router.Intent
}

// Explainer phrases facts through the language model.
type Explainer interface {
	Explain(ctx context.Context, result string) (string, error)
	Answer(ctx context.Context, question string, records []domain.SearchResult) (string, error)
}

type Options struct {
	// TopK bounds the records handed to the model for open questions.
	TopK int
	// TopUsers bounds the rows of the order ranking.
	TopUsers int
	Currency string
	Logger   *slog.Logger
}

// Orchestrator answers one question at a time and keeps the transcript.
type Orchestrator struct {
	classifier Classifier
	engine     *analytics.Engine
	retriever  domain.Retriever
	explainer  Explainer
	opts       Options
	transcript *Transcript
	now        func() time.Time
}

func New(classifier Classifier, engine *analytics.Engine, retriever domain.Retriever, explainer Explainer, opts Options) *Orchestrator {
	if opts.TopK <= 0 {
		opts.TopK = 20
	}
	if opts.TopUsers <= 0 {
		opts.TopUsers = 5
	}
	if opts.Currency == "" {
		opts.Currency = "₹"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Orchestrator{
		classifier: classifier,
		engine:     engine,
		retriever:  retriever,
		explainer:  explainer,
		opts:       opts,
		transcript: &Transcript{},
		now:        time.Now,
	}
}

func (o *Orchestrator) Transcript() *Transcript { return o.transcript }

// Handle answers question and appends both turns to the transcript. On a
// retrieval or generation failure the assistant turn is still recorded, marked
// failed, and the returned reply is the text shown to the user alongside the error.
func (o *Orchestrator) Handle(ctx context.Context, question string) (string, error) {
	start := o.now()
	o.transcript.Append(Message{Role: RoleUser, Content: question, At: start})

	intent := o.classifier.Classify(question)
	log := o.opts.Logger.With("metric", string(intent.Metric), "year", intent.Year)

	var (
		reply string
		err   error
	)
	if intent.Metric.Structured() {
		reply, err = o.answerStructured(ctx, intent)
	} else {
		reply, err = o.answerOpen(ctx, question)
	}

	o.transcript.Append(Message{Role: RoleAssistant, Content: reply, Failed: err != nil, At: o.now()})
	if err != nil {
		log.Error("question failed", "error", err)
		return reply, err
	}
	log.Info("question answered", "duration", o.now().Sub(start))
	return reply, nil
}

func (o *Orchestrator) answerStructured(ctx context.Context, intent router.Intent) (string, error) {
	result := o.ResultLine(intent)
	out, err := o.explainer.Explain(ctx, result)
	if err != nil {
		// The computed figure is still correct; show it without the model's phrasing.
		return generationFailedText + "\n\n" + result, err
	}
	return out, nil
}

func (o *Orchestrator) answerOpen(ctx context.Context, question string) (string, error) {
	records, err := o.retriever.Retrieve(ctx, question, o.opts.TopK)
	if err != nil {
		return retrievalFailedReply, err
	}
	if len(records) == 0 {
		return NoRecordsReply, nil
	}
	o.opts.Logger.Debug("records retrieved", "count", len(records), "best_score", records[0].Score)
	out, err := o.explainer.Answer(ctx, question, records)
	if err != nil {
		return generationFailedText, err
	}
	return out, nil
}

// ResultLine renders the deterministic answer for a structured intent.
func (o *Orchestrator) ResultLine(intent router.Intent) string {
	y := intent.Year
	switch intent.Metric {
	case router.MetricPages:
		return fmt.Sprintf("Total pages sold in %d: %d", y, o.engine.PagesSoldByYear(y))
	case router.MetricRevenue:
		return fmt.Sprintf("Total revenue in %d: %s", y, o.money(o.engine.RevenueByYear(y)))
	case router.MetricAppProfit:
		return fmt.Sprintf("Application profit in %d: %s", y, o.money(o.engine.AppProfitByYear(y)))
	case router.MetricShopProfit:
		return fmt.Sprintf("Shop owner profit in %d: %s", y, o.money(o.engine.ShopProfitByYear(y)))
	case router.MetricTopUsers:
		ranking := analytics.FormatRanking(o.engine.TopUsersByOrders(), o.opts.TopUsers)
		return strings.TrimRight("Users with the highest number of orders:\n"+ranking, "\n")
	default:
		return ""
	}
}

func (o *Orchestrator) money(d decimal.Decimal) string {
	return analytics.FormatMoney(o.opts.Currency, d)
}
