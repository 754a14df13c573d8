package filter

import (
	"strings"
	"time"

	"moodguard/internal/infraction"
)

type VerdictKind int

const (
	Allow VerdictKind = iota
	DeleteAndWarn
	DeleteAndTimeout
	// Delete removes the message without touching the infraction record.
	Delete
)

func (k VerdictKind) String() string {
	switch k {
	case DeleteAndWarn:
		return "delete_and_warn"
	case DeleteAndTimeout:
		return "delete_and_timeout"
	case Delete:
		return "delete"
	default:
		return "allow"
	}
}

type Verdict struct {
	Kind     VerdictKind
	Rule     string
	Warnings int
	Limit    int
	Timeout  time.Duration
	Capped   bool
}

// Chain evaluates rules in order; the first match decides.
type Chain struct {
	rules   []Rule
	engine  *infraction.Engine
	replace *strings.Replacer
}

func NewChain(rules []Rule, engine *infraction.Engine) *Chain {
	return &Chain{rules: rules, engine: engine, replace: strings.NewReplacer("\u200b", "", "\u200c", "", "\u200d", "", "\ufeff", "")}
}

func (c *Chain) Evaluate(text, authorID string, now time.Time) Verdict {
	normalized := c.normalize(text)
	if normalized == "" {
		return Verdict{Kind: Allow}
	}

	for _, rule := range c.rules {
		if !rule.Pattern.MatchString(normalized) {
			continue
		}
		if !rule.Escalate {
			return Verdict{Kind: Delete, Rule: rule.Name}
		}
		esc := c.engine.Offend(authorID, now)
		if esc.Outcome == infraction.OutcomeTimeout {
			return Verdict{Kind: DeleteAndTimeout, Rule: rule.Name, Limit: esc.Limit, Timeout: esc.Timeout, Capped: esc.Capped}
		}
		return Verdict{Kind: DeleteAndWarn, Rule: rule.Name, Warnings: esc.Warnings, Limit: esc.Limit}
	}
	return Verdict{Kind: Allow}
}

func (c *Chain) normalize(text string) string {
	return c.replace.Replace(strings.ToLower(strings.TrimSpace(text)))
}
