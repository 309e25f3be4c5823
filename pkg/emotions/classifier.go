package emotions

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/keywords.yaml
var defaultKeywords []byte

// Rule associates keywords with a tag.
type Rule struct {
	Emotion  Tag      `yaml:"emotion"`
	Keywords []string `yaml:"keywords"`
}

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

type compiledRule struct {
	tag     Tag
	pattern *regexp.Regexp
}

// Classifier picks a tag for response text by ordered keyword priority.
// It is immutable after construction and safe for concurrent use.
type Classifier struct {
	rules []compiledRule
}

// NewClassifier compiles rules in priority order.
func NewClassifier(rules []Rule) (*Classifier, error) {
	c := &Classifier{rules: make([]compiledRule, 0, len(rules))}
	for i, r := range rules {
		tag, ok := ParseTag(string(r.Emotion))
		if !ok {
			return nil, fmt.Errorf("%w: rule %d has unknown emotion %q", ErrInvalidRules, i, r.Emotion)
		}
		if len(r.Keywords) == 0 {
			return nil, fmt.Errorf("%w: rule %d (%s) has no keywords", ErrInvalidRules, i, r.Emotion)
		}
		alts := make([]string, 0, len(r.Keywords))
		for _, kw := range r.Keywords {
			alt, err := keywordPattern(kw)
			if err != nil {
				return nil, fmt.Errorf("%w: rule %d (%s): %v", ErrInvalidRules, i, r.Emotion, err)
			}
			alts = append(alts, alt)
		}
		re, err := regexp.Compile(`(?i)\b(?:` + strings.Join(alts, "|") + `)\b`)
		if err != nil {
			return nil, fmt.Errorf("%w: rule %d (%s): %v", ErrInvalidRules, i, r.Emotion, err)
		}
		c.rules = append(c.rules, compiledRule{tag: tag, pattern: re})
	}
	return c, nil
}

func keywordPattern(kw string) (string, error) {
	kw = strings.TrimSpace(kw)
	prefix := strings.HasSuffix(kw, "*")
	kw = strings.TrimSuffix(kw, "*")
	if kw == "" {
		return "", fmt.Errorf("empty keyword")
	}
	parts := strings.Fields(kw)
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	pat := strings.Join(parts, `\s+`)
	if prefix {
		pat += `\w*`
	}
	return pat, nil
}

// DefaultRules returns the built-in keyword table.
func DefaultRules() []Rule {
	rules, err := parseRules(bytes.NewReader(defaultKeywords))
	if err != nil {
		panic("emotions: built-in keyword table: " + err.Error())
	}
	return rules
}

// DefaultClassifier returns a classifier over DefaultRules.
func DefaultClassifier() *Classifier {
	c, err := NewClassifier(DefaultRules())
	if err != nil {
		panic("emotions: built-in keyword table: " + err.Error())
	}
	return c
}

// LoadClassifier reads a YAML keyword table from path. An empty path
// returns DefaultClassifier.
func LoadClassifier(path string) (*Classifier, error) {
	if path == "" {
		return DefaultClassifier(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("emotions: open %q: %w", path, err)
	}
	defer f.Close()
	return LoadClassifierFromReader(f)
}

// LoadClassifierFromReader reads a YAML keyword table from r.
func LoadClassifierFromReader(r io.Reader) (*Classifier, error) {
	rules, err := parseRules(r)
	if err != nil {
		return nil, err
	}
	return NewClassifier(rules)
}

func parseRules(r io.Reader) ([]Rule, error) {
	var f ruleFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("%w: no rules", ErrInvalidRules)
	}
	return f.Rules, nil
}

// Classify returns the tag of the first rule matching text, or Neutral.
func (c *Classifier) Classify(text string) Tag {
	for _, r := range c.rules {
		if r.pattern.MatchString(text) {
			return r.tag
		}
	}
	return Neutral
}

// Order returns the tags in priority order.
func (c *Classifier) Order() []Tag {
	out := make([]Tag, len(c.rules))
	for i, r := range c.rules {
		out[i] = r.tag
	}
	return out
}
