package router

import (
	"strconv"
	"strings"
)

// Metric is the kind of answer a question asks for.
type Metric string

const (
	MetricPages        Metric = "pages"
	MetricRevenue      Metric = "revenue"
	MetricAppProfit    Metric = "app-profit"
	MetricShopProfit   Metric = "shop-profit"
	MetricTopUsers     Metric = "top-users"
	MetricUnstructured Metric = "unstructured"
)

// Structured reports whether the metric is answered by the aggregation engine.
func (m Metric) Structured() bool {
	return m != MetricUnstructured && m != ""
}

// Intent is the routing decision for a single question.
// Year is zero when the question names no supported year.
type Intent struct {
	Year   int
	Metric Metric
}

func (i Intent) HasYear() bool { return i.Year != 0 }

var financialKeywords = []string{"page", "revenue", "profit", "earning"}

var topUserPhrases = []string{"highest number of orders", "most orders"}

// Question is the normalised input the rules are evaluated against.
type Question struct {
	Text string // lower-cased
	Year int
}

func (q Question) Contains(s string) bool { return strings.Contains(q.Text, s) }

func (q Question) ContainsAny(words []string) bool {
	for _, w := range words {
		if q.Contains(w) {
			return true
		}
	}
	return false
}

func (q Question) Financial() bool { return q.Year != 0 && q.ContainsAny(financialKeywords) }

// Rule maps a matching question to a metric. Rules are tried in order.
type Rule struct {
	Name   string
	Match  func(q Question) bool
	Metric Metric
	// KeepYear is false for metrics that always cover every year.
	KeepYear bool
}

// DefaultRules is the decision table, highest precedence first. "app" is
// tested before "shop" so a question naming both reports app profit.
var DefaultRules = []Rule{
	{
		Name:     "pages by year",
		Match:    func(q Question) bool { return q.Financial() && q.Contains("page") },
		Metric:   MetricPages,
		KeepYear: true,
	},
	{
		Name:     "app profit by year",
		Match:    func(q Question) bool { return q.Financial() && q.Contains("app") },
		Metric:   MetricAppProfit,
		KeepYear: true,
	},
	{
		Name:     "shop profit by year",
		Match:    func(q Question) bool { return q.Financial() && q.Contains("shop") },
		Metric:   MetricShopProfit,
		KeepYear: true,
	},
	{
		Name:     "revenue by year",
		Match:    Question.Financial,
		Metric:   MetricRevenue,
		KeepYear: true,
	},
	{
		Name:   "top users",
		Match:  func(q Question) bool { return q.ContainsAny(topUserPhrases) },
		Metric: MetricTopUsers,
	},
}

// Classifier routes questions using an ordered rule table.
type Classifier struct {
	years map[int]struct{}
	rules []Rule
}

// NewClassifier builds a classifier for the given supported years using DefaultRules.
func NewClassifier(years []int) *Classifier {
	return NewClassifierWithRules(years, DefaultRules)
}

func NewClassifierWithRules(years []int, rules []Rule) *Classifier {
	set := make(map[int]struct{}, len(years))
	for _, y := range years {
		set[y] = struct{}{}
	}
	return &Classifier{years: set, rules: rules}
}

// Classify never fails: a question no rule matches is unstructured.
func (c *Classifier) Classify(text string) Intent {
	q := Question{Text: strings.ToLower(text), Year: c.ExtractYear(text)}
	for _, r := range c.rules {
		if !r.Match(q) {
			continue
		}
		intent := Intent{Metric: r.Metric}
		if r.KeepYear {
			intent.Year = q.Year
		}
		return intent
	}
	return Intent{Year: q.Year, Metric: MetricUnstructured}
}

// ExtractYear returns the first run of exactly four digits that is a
// supported year, scanning left to right, or 0.
func (c *Classifier) ExtractYear(text string) int {
	i := 0
	for i < len(text) {
		if !isDigit(text[i]) {
			i++
			continue
		}
		start := i
		for i < len(text) && isDigit(text[i]) {
			i++
		}
		if i-start != 4 {
			continue
		}
		y, err := strconv.Atoi(text[start:i])
		if err != nil {
			continue
		}
		if _, ok := c.years[y]; ok {
			return y
		}
	}
	return 0
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
