// Package censor provides the rule-based comment classifier used by the
// development backend. Each rule is a regular expression with the reason
// reported when it matches.
package censor

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	DefaultMinLength = 5
	DefaultMaxLength = 1000
)

type Rule struct {
	Pattern    string   `json:"pattern"`
	Reason     string   `json:"reason"`
	Exceptions []string `json:"exceptions"`

	regexPattern *regexp.Regexp
}

type Config struct {
	Rules     []Rule `json:"rules"`
	MinLength int    `json:"min_length"`
	MaxLength int    `json:"max_length"`
}

type Censor struct {
	rules     []Rule
	minLength int
	maxLength int
}

var defaultRules = []Rule{
	{Pattern: `(?i)\b(spam|scam|fake|fraud)\b`, Reason: "Contains suspicious keywords"},
	{Pattern: `(?i)\b(f\*ck|sh\*t|damn|hell)\b`, Reason: "Contains profanity"},
	{Pattern: `!{3,}`, Reason: "Excessive exclamation marks"},
	{Pattern: `[A-Z]{10,}`, Reason: "Excessive capitalization"},
	{Pattern: `(?i)https?://\S+`, Reason: "Contains URL"},
	{Pattern: `[0-9]{4,}`, Reason: "Contains suspicious numbers"},
}

// New returns a Censor with the built-in rule set.
func New() *Censor {
	c := &Censor{}
	if err := c.load(Config{Rules: defaultRules}); err != nil {
		panic(err)
	}
	return c
}

// LoadFromJSON replaces the rule set with the one stored in a JSON file and
// compiles its patterns.
func (c *Censor) LoadFromJSON(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var conf Config
	if err := json.Unmarshal(data, &conf); err != nil {
		return err
	}

	return c.load(conf)
}

func (c *Censor) load(conf Config) error {
	rules := make([]Rule, len(conf.Rules))
	copy(rules, conf.Rules)

	var err error
	for i, rule := range rules {
		rules[i].regexPattern, err = regexp.Compile(rule.Pattern)
		if err != nil {
			return fmt.Errorf("failed to compile pattern %q: %w", rule.Pattern, err)
		}
	}

	c.rules = rules
	c.minLength = conf.MinLength
	if c.minLength == 0 {
		c.minLength = DefaultMinLength
	}
	c.maxLength = conf.MaxLength
	if c.maxLength == 0 {
		c.maxLength = DefaultMaxLength
	}
	return nil
}

// Check reports whether the comment should be flagged for review and why.
// Rules are tried in order; a match listed in the rule's exceptions does
// not count. Length limits are checked last.
func (c *Censor) Check(comment string) (bool, string) {
	for _, rule := range c.rules {
		for _, match := range rule.regexPattern.FindAllString(comment, -1) {
			if !isException(rule.Exceptions, match) {
				return true, rule.Reason
			}
		}
	}

	if utf8.RuneCountInString(strings.TrimSpace(comment)) < c.minLength {
		return true, "Very short comment"
	}
	if utf8.RuneCountInString(comment) > c.maxLength {
		return true, "Very long comment"
	}

	return false, ""
}

func isException(exceptions []string, match string) bool {
	for _, exc := range exceptions {
		if strings.EqualFold(exc, match) {
			return true
		}
	}
	return false
}
