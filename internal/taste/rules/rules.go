// Package rules implements the taster's compiled rule set (C4, §4.4):
// a YARA-family rule directory compiled once at worker startup into an
// immutable matcher, reloadable on demand. Each rule couples a set of
// byte patterns with an optional expr-lang condition, compiled once
// and cached alongside the raw rule definition.
package rules

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/scanforge/filescand/pkg/log"
)

// Definition is one rule's on-disk JSON shape: a tag to emit plus the
// patterns that must match and an optional boolean condition over
// match counts, for rules literal substring/regex matching can't
// express cleanly (e.g. "at least two of these three patterns").
type Definition struct {
	Tag       string   `json:"tag"`
	Patterns  []string `json:"patterns"`
	Condition string   `json:"condition,omitempty"`
}

// compiledRule is a Definition with its patterns and condition
// pre-compiled, so matching never re-parses a regex or re-compiles an
// expression per call.
type compiledRule struct {
	tag       string
	patterns  []*regexp.Regexp
	condition *vm.Program
}

// RuleSet is the taster's immutable, compiled rule set. Safe for
// concurrent read-only use across files within a worker (§5 "The
// taster's compiled rule set is per-worker and immutable after
// startup").
type RuleSet struct {
	rules []compiledRule
}

// env is what a rule's condition expression sees: whether each pattern
// matched, by position, plus the total number of patterns that matched
// at all.
type env struct {
	Matches []bool
	Count   int
}

// Compile walks dir recursively, compiling every file matching pattern
// (a filepath.Match glob applied to the base name) into one RuleSet.
// Compile failure anywhere is returned to the caller, who must treat it
// as fatal to the worker per §4.4 ("failure to compile is fatal").
func Compile(dir string, pattern string) (*RuleSet, error) {
	var defs []Definition
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		matched, err := filepath.Match(pattern, d.Name())
		if err != nil {
			return err
		}
		if !matched {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading rule file %s: %w", path, err)
		}
		var fileDefs []Definition
		if err := json.Unmarshal(raw, &fileDefs); err != nil {
			return fmt.Errorf("parsing rule file %s: %w", path, err)
		}
		defs = append(defs, fileDefs...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return compile(defs)
}

// CompileDefinitions compiles an in-memory list of rule definitions,
// used by the taster's additive TasteWithCustomRules extension point
// for ad-hoc, per-call rule sets that never touch disk.
func CompileDefinitions(defs []Definition) (*RuleSet, error) {
	return compile(defs)
}

func compile(defs []Definition) (*RuleSet, error) {
	rs := &RuleSet{}
	for _, d := range defs {
		cr := compiledRule{tag: d.Tag}
		for _, p := range d.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("rule %q: compiling pattern %q: %w", d.Tag, p, err)
			}
			cr.patterns = append(cr.patterns, re)
		}
		if d.Condition != "" {
			program, err := expr.Compile(d.Condition, expr.Env(env{}), expr.AsBool())
			if err != nil {
				return nil, fmt.Errorf("rule %q: compiling condition %q: %w", d.Tag, d.Condition, err)
			}
			cr.condition = program
		}
		rs.rules = append(rs.rules, cr)
	}
	return rs, nil
}

// Match returns the tags of every rule that matches data. A rule with
// no condition matches when any of its patterns match (YARA's default
// "any of them" semantics); a rule with a condition evaluates it over
// the per-pattern match booleans instead.
func (rs *RuleSet) Match(data []byte) []string {
	var tags []string
	for _, r := range rs.rules {
		matched := make([]bool, len(r.patterns))
		count := 0
		for i, re := range r.patterns {
			if re.Match(data) {
				matched[i] = true
				count++
			}
		}
		if r.condition != nil {
			out, err := expr.Run(r.condition, env{Matches: matched, Count: count})
			if err != nil {
				log.Warnf("taste: rule %q condition evaluation failed: %v", r.tag, err)
				continue
			}
			if ok, _ := out.(bool); ok {
				tags = append(tags, r.tag)
			}
			continue
		}
		if count > 0 {
			tags = append(tags, r.tag)
		}
	}
	return tags
}
