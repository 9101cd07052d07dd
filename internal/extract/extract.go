// Package extract applies ordered regex extraction rules to external process output
// and appends the matches as metadata values.
package extract

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/slok/extagger/internal/model"
)

// RuleWarning reports a rule referencing a capture group its pattern doesn't have.
type RuleWarning struct {
	RuleIndex int
	Group     int
	Pattern   string
}

func (w RuleWarning) String() string {
	return fmt.Sprintf("rule %d (%q) has no capture group %d, using the whole match", w.RuleIndex, w.Pattern, w.Group)
}

type compiledRule struct {
	index  int
	rule   model.ExtractionRule
	re     *regexp.Regexp
	groups int
}

// RuleSet is an ordered compiled list of extraction rules.
type RuleSet struct {
	rules []compiledRule

	mu     sync.Mutex
	warned map[int]bool
}

// Compile validates and compiles the rules keeping their order.
func Compile(rules []model.ExtractionRule) (*RuleSet, error) {
	rs := &RuleSet{warned: map[int]bool{}}

	for i, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, &model.RuleError{RuleIndex: i, Err: fmt.Errorf("%w: %w", err, model.ErrConfiguration)}
		}

		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, &model.RuleError{RuleIndex: i, Err: fmt.Errorf("invalid pattern: %w: %w", err, model.ErrConfiguration)}
		}

		rs.rules = append(rs.rules, compiledRule{
			index:  i,
			rule:   r,
			re:     re,
			groups: re.NumSubexp(),
		})
	}

	return rs, nil
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int { return len(rs.rules) }

// Apply evaluates every line of text against every rule in declaration order and
// appends the matches to meta. Rules not covering the stream are skipped.
//
// Missing capture groups are returned as warnings, once per rule for the whole life of
// the RuleSet.
func (rs *RuleSet) Apply(meta model.Metadata, stream model.Stream, text string) []RuleWarning {
	if text == "" || len(rs.rules) == 0 {
		return nil
	}

	var warnings []RuleWarning
	for _, line := range Lines(text) {
		for _, r := range rs.rules {
			if !r.rule.Stream.Covers(stream) {
				continue
			}

			m := r.re.FindStringSubmatch(line)
			if m == nil {
				continue
			}

			var field, value string
			switch f := r.rule.Field.(type) {
			case model.FixedField:
				field = f.Name
				value = rs.group(r, m, f.ValueGroup, &warnings)
			case model.DynamicField:
				field = rs.group(r, m, f.NameGroup, &warnings)
				value = rs.group(r, m, f.ValueGroup, &warnings)
			}

			if field == "" {
				continue
			}
			meta.Add(field, value)
		}
	}

	return warnings
}

func (rs *RuleSet) group(r compiledRule, match []string, group int, warnings *[]RuleWarning) string {
	if group <= r.groups {
		return match[group]
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()
	if !rs.warned[r.index] {
		rs.warned[r.index] = true
		*warnings = append(*warnings, RuleWarning{RuleIndex: r.index, Group: group, Pattern: r.rule.Pattern})
	}

	return match[0]
}

// Lines splits text in lines normalizing `\r\n` and `\r` line breaks. A trailing line
// break doesn't produce an empty last line.
func Lines(text string) []string {
	if text == "" {
		return nil
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimSuffix(text, "\n")

	return strings.Split(text, "\n")
}
