package rules

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule is one substitution applied to committed transcript text.
type Rule struct {
	Match         string `yaml:"match"`
	Replace       string `yaml:"replace"`
	Regex         bool   `yaml:"regex"`
	CaseSensitive bool   `yaml:"case_sensitive"`
}

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// Engine applies substitutions until the text stops changing.
type Engine struct {
	rules     []compiledRule
	loopLimit int
}

type compiledRule struct {
	re          *regexp.Regexp
	replacement string
}

// NewEngine compiles rules. Matching is case-insensitive unless a rule opts out.
func NewEngine(rules []Rule, loopLimit int) (*Engine, error) {
	if loopLimit <= 0 {
		loopLimit = 30
	}

	compiled := make([]compiledRule, 0, len(rules))
	for index, rule := range rules {
		c, err := compile(rule)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", index+1, err)
		}
		compiled = append(compiled, c)
	}
	return &Engine{rules: compiled, loopLimit: loopLimit}, nil
}

// LoadFile reads a YAML rules document. A missing or empty path yields an
// engine with no rules.
func LoadFile(path string, loopLimit int) (*Engine, error) {
	if strings.TrimSpace(path) == "" {
		return NewEngine(nil, loopLimit)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewEngine(nil, loopLimit)
		}
		return nil, fmt.Errorf("failed to read rules file %q: %w", path, err)
	}

	var doc ruleFile
	if err := yaml.Unmarshal(contents, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse rules file %q: %w", path, err)
	}

	engine, err := NewEngine(doc.Rules, loopLimit)
	if err != nil {
		return nil, fmt.Errorf("invalid rules file %q: %w", path, err)
	}
	return engine, nil
}

func compile(rule Rule) (compiledRule, error) {
	if strings.TrimSpace(rule.Match) == "" {
		return compiledRule{}, errors.New("match cannot be empty")
	}

	pattern := rule.Match
	if !rule.Regex {
		pattern = regexp.QuoteMeta(strings.TrimSpace(pattern))
	}
	if !rule.CaseSensitive {
		pattern = "(?i)" + pattern
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return compiledRule{}, fmt.Errorf("invalid pattern: %w", err)
	}

	replacement := rule.Replace
	if !rule.Regex {
		// Literal replacements must not expand $1-style references.
		replacement = strings.ReplaceAll(replacement, "$", "$$")
	}
	return compiledRule{re: re, replacement: replacement}, nil
}

// Len reports how many rules are loaded.
func (e *Engine) Len() int {
	return len(e.rules)
}

// Apply transforms text deterministically.
func (e *Engine) Apply(text string) (string, error) {
	if len(e.rules) == 0 {
		return text, nil
	}

	result := text
	for i := 0; i < e.loopLimit; i++ {
		changed := false
		for _, rule := range e.rules {
			next := rule.re.ReplaceAllString(result, rule.replacement)
			if next != result {
				result = next
				changed = true
			}
		}
		if !changed {
			return result, nil
		}
	}

	return result, fmt.Errorf("rules did not converge after %d passes", e.loopLimit)
}
