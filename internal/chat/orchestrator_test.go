package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/shopspring/decimal"

	"smartxerox/internal/analytics"
	"smartxerox/internal/apperr"
	"smartxerox/internal/domain"
	"smartxerox/internal/router"
)

type fakeRetriever struct {
	records []domain.SearchResult
	err     error
	queries []string
}

func (f *fakeRetriever) Retrieve(_ context.Context, query string, topK int) ([]domain.SearchResult, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, apperr.Retrieval(f.err)
	}
	if len(f.records) > topK {
		return f.records[:topK], nil
	}
	return f.records, nil
}

type fakeExplainer struct {
	results []string
	answers []string
	err     error
}

func (f *fakeExplainer) Explain(_ context.Context, result string) (string, error) {
	f.results = append(f.results, result)
	if f.err != nil {
		return "", apperr.Generation(f.err)
	}
	return "explained: " + result, nil
}

func (f *fakeExplainer) Answer(_ context.Context, question string, records []domain.SearchResult) (string, error) {
	f.answers = append(f.answers, question)
	if f.err != nil {
		return "", apperr.Generation(f.err)
	}
	return "answered from " + records[0].Document.ID, nil
}

func order(year, month int, user string, pages int, total, shop, app string) domain.Order {
	return domain.Order{
		Date:        time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC),
		OrderID:     user + "-" + total,
		UserName:    user,
		Pages:       pages,
		TotalAmount: decimal.RequireFromString(total),
		ShopEarning: decimal.RequireFromString(shop),
		AppEarning:  decimal.RequireFromString(app),
	}
}

func testEngine() *analytics.Engine {
	return analytics.NewEngine(&domain.Dataset{Orders: []domain.Order{
		order(2024, 1, "Alice", 10, "20.10", "16.00", "4.10"),
		order(2024, 2, "Bob", 20, "40.20", "32.00", "8.20"),
		order(2024, 3, "Bob", 30, "60.30", "48.00", "12.30"),
		order(2025, 1, "Carol", 5, "11.00", "8.80", "2.20"),
	}})
}

type harness struct {
	orch      *Orchestrator
	retriever *fakeRetriever
	explainer *fakeExplainer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		retriever: &fakeRetriever{},
		explainer: &fakeExplainer{},
	}
	h.orch = New(router.NewClassifier([]int{2023, 2024, 2025}), testEngine(), h.retriever, h.explainer, Options{
		TopK:   3,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return h
}

func TestHandle_StructuredMetrics(t *testing.T) {
	tests := []struct {
		question string
		want     string
	}{
		{"How many pages were printed in 2024?", "Total pages sold in 2024: 60"},
		{"Pages in 2023", "Total pages sold in 2023: 0"},
		{"What is the revenue of 2025?", "Total revenue in 2025: ₹11.00"},
		{"App earning 2024", "Application profit in 2024: ₹24.60"},
		{"Shop profit for 2024", "Shop owner profit in 2024: ₹96.00"},
		{"Who has the most orders?", "Users with the highest number of orders:\nBob: 2 orders\nAlice: 1 orders\nCarol: 1 orders"},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			h := newHarness(t)
			reply, err := h.orch.Handle(context.Background(), tt.question)
			if err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if diff := cmp.Diff([]string{tt.want}, h.explainer.results); diff != "" {
				t.Errorf("result lines mismatch (-want +got):\n%s", diff)
			}
			if reply != "explained: "+tt.want {
				t.Errorf("reply = %q", reply)
			}
			if len(h.retriever.queries) != 0 {
				t.Error("structured question must not hit retrieval")
			}
		})
	}
}

func TestHandle_TopUsersTruncated(t *testing.T) {
	h := newHarness(t)
	h.orch.opts.TopUsers = 1
	if _, err := h.orch.Handle(context.Background(), "highest number of orders"); err != nil {
		t.Fatal(err)
	}
	if got := h.explainer.results[0]; got != "Users with the highest number of orders:\nBob: 2 orders" {
		t.Errorf("result = %q", got)
	}
}

func TestHandle_UnstructuredUsesRetrieval(t *testing.T) {
	h := newHarness(t)
	h.retriever.records = []domain.SearchResult{
		{Document: domain.Document{ID: "1002", Text: "order 1002"}, Score: 0.9},
	}

	reply, err := h.orch.Handle(context.Background(), "How's the weather?")
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if reply != "answered from 1002" {
		t.Errorf("reply = %q", reply)
	}
	if diff := cmp.Diff([]string{"How's the weather?"}, h.retriever.queries); diff != "" {
		t.Errorf("retrieval queries mismatch (-want +got):\n%s", diff)
	}
	if len(h.explainer.results) != 0 {
		t.Error("unstructured question must not reach the aggregation path")
	}
}

func TestHandle_NoRecords(t *testing.T) {
	h := newHarness(t)
	reply, err := h.orch.Handle(context.Background(), "Tell me about order 99999")
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if reply != NoRecordsReply {
		t.Errorf("reply = %q", reply)
	}
	if len(h.explainer.answers) != 0 {
		t.Error("model must not be asked without records")
	}
}

func TestHandle_Failures(t *testing.T) {
	tests := []struct {
		name     string
		question string
		setup    func(h *harness)
		code     apperr.Code
		contains string
	}{
		{
			name:     "retrieval",
			question: "Who printed on a Sunday?",
			setup:    func(h *harness) { h.retriever.err = errors.New("store closed") },
			code:     apperr.CodeRetrieval,
			contains: "could not search",
		},
		{
			name:     "generation on structured",
			question: "revenue 2024",
			setup:    func(h *harness) { h.explainer.err = errors.New("timeout") },
			code:     apperr.CodeGeneration,
			contains: "Total revenue in 2024: ₹120.60",
		},
		{
			name:     "generation on open question",
			question: "Which orders did Carol place?",
			setup: func(h *harness) {
				h.retriever.records = []domain.SearchResult{{Document: domain.Document{ID: "c"}}}
				h.explainer.err = errors.New("timeout")
			},
			code:     apperr.CodeGeneration,
			contains: "did not respond",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			tt.setup(h)

			reply, err := h.orch.Handle(context.Background(), tt.question)
			if !apperr.Is(err, tt.code) {
				t.Fatalf("err = %v, want %s", err, tt.code)
			}
			if !strings.Contains(reply, tt.contains) {
				t.Errorf("reply = %q, want containing %q", reply, tt.contains)
			}

			msgs := h.orch.Transcript().Messages()
			want := []Message{
				{Role: RoleUser, Content: tt.question},
				{Role: RoleAssistant, Content: reply, Failed: true},
			}
			if diff := cmp.Diff(want, msgs, cmpopts.IgnoreFields(Message{}, "At")); diff != "" {
				t.Errorf("transcript mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHandle_TranscriptOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for _, q := range []string{"pages 2024", "most orders"} {
		if _, err := h.orch.Handle(ctx, q); err != nil {
			t.Fatal(err)
		}
	}
	msgs := h.orch.Transcript().Messages()
	var roles []Role
	for _, m := range msgs {
		roles = append(roles, m.Role)
		if m.Failed {
			t.Errorf("unexpected failed turn: %+v", m)
		}
	}
	want := []Role{RoleUser, RoleAssistant, RoleUser, RoleAssistant}
	if diff := cmp.Diff(want, roles); diff != "" {
		t.Errorf("roles mismatch (-want +got):\n%s", diff)
	}
	if msgs[0].Content != "pages 2024" || msgs[2].Content != "most orders" {
		t.Errorf("user turns out of order: %+v", msgs)
	}
}

func TestTranscript_MessagesIsSnapshot(t *testing.T) {
	var tr Transcript
	tr.Append(Message{Role: RoleUser, Content: "hi"})
	snap := tr.Messages()
	snap[0].Content = "changed"
	tr.Append(Message{Role: RoleAssistant, Content: "hello"})

	if got := tr.Messages()[0].Content; got != "hi" {
		t.Errorf("transcript mutated through snapshot: %q", got)
	}
	if tr.Len() != 2 || len(snap) != 1 {
		t.Errorf("Len() = %d, snapshot len = %d", tr.Len(), len(snap))
	}
}
