// Package parser turns a free-text query into a QueryPlan: the normalised
// sub-terms to look up and the rules for combining them.
package parser

import (
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/pkg/errors"
)

// Policy decides which documents a multi-word query matches.
type Policy string

const (
	// PolicyAll requires every sub-term to occur in the document.
	PolicyAll Policy = "all"
	// PolicyAny requires at least one sub-term.
	PolicyAny Policy = "any"
)

// CountRule decides how a matched document's occurrences are counted.
type CountRule string

const (
	// CountFirst counts the first sub-term present in the document.
	CountFirst CountRule = "first"
	// CountSum adds up the occurrences of every sub-term.
	CountSum CountRule = "sum"
)

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyAll, PolicyAny:
		return p, nil
	case "":
		return PolicyAll, nil
	default:
		return "", fmt.Errorf("%w: unknown match policy %q", apperrors.ErrInvalidInput, s)
	}
}

func ParseCountRule(s string) (CountRule, error) {
	switch r := CountRule(strings.ToLower(strings.TrimSpace(s))); r {
	case CountFirst, CountSum:
		return r, nil
	case "":
		return CountFirst, nil
	default:
		return "", fmt.Errorf("%w: unknown count rule %q", apperrors.ErrInvalidInput, s)
	}
}

type QueryPlan struct {
	RawQuery  string
	Terms     []string
	Policy    Policy
	CountRule CountRule
}

// Empty reports whether the query normalised to nothing.
func (q *QueryPlan) Empty() bool {
	return len(q.Terms) == 0
}

// Key is a canonical form of the plan: two queries with equal keys always
// produce the same results against the same index state.
func (q *QueryPlan) Key() string {
	return fmt.Sprintf("%s|%s|%s", q.Policy, q.CountRule, strings.Join(q.Terms, " "))
}

// Parser normalises queries with the same tokenizer used for documents.
type Parser struct {
	tokenizer *tokenizer.Tokenizer
	policy    Policy
	countRule CountRule
}

func New(tok *tokenizer.Tokenizer, policy Policy, rule CountRule) *Parser {
	if policy == "" {
		policy = PolicyAll
	}
	if rule == "" {
		rule = CountFirst
	}
	return &Parser{tokenizer: tok, policy: policy, countRule: rule}
}

// Parse normalises query into sub-terms in appearance order, collapsing
// duplicates. A blank query yields an empty plan.
func (p *Parser) Parse(query string) *QueryPlan {
	plan := &QueryPlan{
		RawQuery:  query,
		Terms:     make([]string, 0),
		Policy:    p.policy,
		CountRule: p.countRule,
	}
	if strings.TrimSpace(query) == "" {
		return plan
	}
	seen := make(map[string]struct{})
	for _, term := range p.tokenizer.Normalize(query) {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		plan.Terms = append(plan.Terms, term)
	}
	return plan
}
