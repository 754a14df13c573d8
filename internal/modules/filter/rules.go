package filter

import (
	"regexp"
	"strings"
)

// Rule is one entry in the chain. Escalating rules feed the infraction engine.
type Rule struct {
	Name     string
	Pattern  *regexp.Regexp
	Escalate bool
}

var lookalikes = map[rune]string{
	'a': `a@4àáâä`,
	'b': `b8`,
	'c': `cçk`,
	'e': `e3èéêë`,
	'g': `g9q`,
	'i': `i1l!|ìíîï`,
	'k': `kq`,
	'l': `l1|!`,
	'o': `o0òóôö`,
	's': `s$5z`,
	't': `t7+`,
	'u': `uvµùúûü`,
}

// separator matches anything people put between letters to dodge a filter.
const separator = `[\W_]*`

// ObfuscationPattern builds a case-insensitive pattern for term that tolerates repeated
// letters, look-alike characters and separators between letters. It only matches when
// the term is not embedded inside a longer word.
func ObfuscationPattern(term string) *regexp.Regexp {
	term = strings.ToLower(strings.TrimSpace(term))
	var parts []string
	for _, r := range term {
		if r == ' ' {
			continue
		}
		class := regexp.QuoteMeta(string(r))
		if alt, ok := lookalikes[r]; ok {
			class = regexp.QuoteMeta(alt)
		}
		parts = append(parts, "["+class+"]+")
	}
	body := strings.Join(parts, separator)
	return regexp.MustCompile(`(?i)(?:^|[^\p{L}])` + body + `(?:[^\p{L}]|$)`)
}

var invitePattern = regexp.MustCompile(`(?i)discord(?:\.gg|(?:app)?\.com/invite)/\S+`)

// DefaultRules builds the chain in evaluation order: invite links first, then banned terms.
func DefaultRules(terms []string, blockInvites bool) []Rule {
	var rules []Rule
	if blockInvites {
		rules = append(rules, Rule{Name: "invite_link", Pattern: invitePattern})
	}
	for _, term := range terms {
		if strings.TrimSpace(term) == "" {
			continue
		}
		rules = append(rules, Rule{Name: "banned_term", Pattern: ObfuscationPattern(term), Escalate: true})
	}
	return rules
}
