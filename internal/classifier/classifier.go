// Package classifier infers the severity and owning department of a helpdesk
// question from an ordered keyword rule table.
package classifier

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/miradorstack/helpdesk/internal/models"
)

// Classifier evaluates a RuleSet against questions. It is immutable after
// construction and safe for concurrent use.
type Classifier struct {
	severity    []compiledRule[models.Severity]
	departments []compiledRule[models.Department]
}

type compiledRule[T any] struct {
	value    T
	keywords []string
}

// Explanation reports a classification together with the keywords that decided it.
// An empty keyword means the axis fell back to its default.
type Explanation struct {
	models.Classification
	SeverityKeyword   string
	DepartmentKeyword string
}

// New compiles rules into a Classifier. Department rules are reordered into
// the fixed priority network > hardware > account > software > other.
func New(rules RuleSet) (*Classifier, error) {
	c := &Classifier{}

	for i, rule := range rules.Severity {
		if !rule.Severity.Valid() {
			return nil, fmt.Errorf("severity rule %d: unknown severity %q", i, rule.Severity)
		}
		c.severity = append(c.severity, compiledRule[models.Severity]{
			value:    rule.Severity,
			keywords: normalizeKeywords(rule.Keywords),
		})
	}

	for i, rule := range rules.Departments {
		if !rule.Department.Valid() {
			return nil, fmt.Errorf("department rule %d: unknown department %q", i, rule.Department)
		}
		c.departments = append(c.departments, compiledRule[models.Department]{
			value:    rule.Department,
			keywords: normalizeKeywords(rule.Keywords),
		})
	}
	sort.SliceStable(c.departments, func(i, j int) bool {
		return c.departments[i].value.Priority() < c.departments[j].value.Priority()
	})

	return c, nil
}

// NewFromFile loads a rule pack from path, falling back to DefaultRules when
// path is empty or the file does not exist.
func NewFromFile(path string, logger *slog.Logger) (*Classifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rules, fromFile, err := LoadRules(path)
	if err != nil {
		return nil, err
	}
	c, err := New(rules)
	if err != nil {
		return nil, fmt.Errorf("rules %s: %w", path, err)
	}
	if fromFile {
		logger.Info("classification rules loaded", slog.String("path", path),
			slog.Int("severity_rules", len(c.severity)), slog.Int("department_rules", len(c.departments)))
	} else {
		logger.Debug("using built-in classification rules", slog.String("path", path))
	}
	return c, nil
}

// Classify returns the severity and department for question. It never fails:
// unmatched axes default to low and other.
func (c *Classifier) Classify(question string) models.Classification {
	return c.Explain(question).Classification
}

// Explain classifies question and reports the deciding keywords.
func (c *Classifier) Explain(question string) Explanation {
	out := Explanation{Classification: models.DefaultClassification()}
	if c == nil {
		return out
	}

	text := normalize(question)
	if text == "" {
		return out
	}

	best := 0
	for _, rule := range c.severity {
		kw, ok := matchAny(text, rule.keywords)
		if !ok {
			continue
		}
		if rank := rule.value.Rank(); rank > best {
			best = rank
			out.Severity = rule.value
			out.SeverityKeyword = kw
		}
	}

	for _, rule := range c.departments {
		if kw, ok := matchAny(text, rule.keywords); ok {
			out.Department = rule.value
			out.DepartmentKeyword = kw
			break
		}
	}

	return out
}

// matchAny reports the first keyword found in text on word boundaries.
func matchAny(text string, keywords []string) (string, bool) {
	for _, kw := range keywords {
		if containsTerm(text, kw) {
			return kw, true
		}
	}
	return "", false
}

func containsTerm(text, term string) bool {
	if term == "" {
		return false
	}
	offset := 0
	for {
		idx := strings.Index(text[offset:], term)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(term)
		if boundaryBefore(text, start) && boundaryAfter(text, end) {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		offset = start + size
	}
}

func boundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return !isWordRune(r)
}

func boundaryAfter(text string, i int) bool {
	if i >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

var apostrophes = strings.NewReplacer("’", "'", "‘", "'", "`", "'")

func normalize(s string) string {
	s = apostrophes.Replace(strings.ToLower(s))
	return strings.Join(strings.Fields(s), " ")
}

func normalizeKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if n := normalize(kw); n != "" {
			out = append(out, n)
		}
	}
	return out
}
