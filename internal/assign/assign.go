// Package assign implements the assignment engine (C7, §4.7): mapping
// a file's flavor set, name, and source to an ordered list of scanner
// assignments, via compiled regex/expr conditions evaluated in rule
// order, first match wins per scanner.
package assign

import (
	"regexp"
	"sort"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/scanforge/filescand/internal/config"
	"github.com/scanforge/filescand/pkg/log"
)

// Assignment is the engine's output (§3's ScannerAssignment).
type Assignment struct {
	Name     string
	Priority int
	Options  map[string]any
}

// whenEnv is what a rule's optional "when" expression sees.
type whenEnv struct {
	Flavors []string
	Name    string
	Source  string
	Size    int
}

// compiledCondition pairs a config.Condition with its compiled regex,
// so Assign never re-compiles a pattern per file.
type compiledCondition struct {
	flavors      map[string]struct{}
	wildcard     bool
	filenameRe   *regexp.Regexp
	sourceRe     *regexp.Regexp
}

type compiledRule struct {
	positive *compiledCondition
	negative *compiledCondition
	when     *vm.Program
	priority int
	options  map[string]any
}

// Engine holds the compiled mapping_table for every configured
// scanner. Compiled once at startup from config.Keys.Scanners; safe
// for concurrent read-only use across files within a worker, same as
// the taster's rule set.
type Engine struct {
	mu    sync.RWMutex
	rules map[string][]compiledRule
	order []string
}

// New compiles entries into an Engine. entries' own order becomes
// e.order: §8 requires equal-priority ties to preserve configuration
// order, which is only possible if the scanner order survives from
// the JSON document itself rather than a map iteration. A malformed
// regex or "when" expression is a configuration error returned to the
// caller (the bootstrap treats this as fatal, the same way a bad
// taster rule set is fatal, since an engine that can't assign
// scanners can't do its job).
func New(entries config.ScannerRules) (*Engine, error) {
	e := &Engine{rules: map[string][]compiledRule{}}
	for _, se := range entries {
		e.order = append(e.order, se.Name)
		var compiled []compiledRule
		for _, r := range se.Rules {
			cr := compiledRule{priority: r.Priority, options: r.Options}
			var err error
			if r.Positive != nil {
				if cr.positive, err = compileCondition(r.Positive); err != nil {
					return nil, err
				}
			}
			if r.Negative != nil {
				if cr.negative, err = compileCondition(r.Negative); err != nil {
					return nil, err
				}
			}
			if r.When != "" {
				program, err := expr.Compile(r.When, expr.Env(whenEnv{}), expr.AsBool())
				if err != nil {
					return nil, err
				}
				cr.when = program
			}
			compiled = append(compiled, cr)
		}
		e.rules[se.Name] = compiled
	}
	return e, nil
}

func compileCondition(c *config.Condition) (*compiledCondition, error) {
	cc := &compiledCondition{flavors: map[string]struct{}{}}
	for _, f := range c.Flavors {
		if f == "*" {
			cc.wildcard = true
			continue
		}
		cc.flavors[f] = struct{}{}
	}
	var err error
	if c.Filename != "" {
		if cc.filenameRe, err = regexp.Compile(c.Filename); err != nil {
			return nil, err
		}
	}
	if c.Source != "" {
		if cc.sourceRe, err = regexp.Compile(c.Source); err != nil {
			return nil, err
		}
	}
	return cc, nil
}

func (cc *compiledCondition) matches(flavorSet []string, name, source string) bool {
	if cc == nil {
		return false
	}
	if cc.wildcard {
		return true
	}
	for _, f := range flavorSet {
		if _, ok := cc.flavors[f]; ok {
			return true
		}
	}
	if cc.filenameRe != nil && cc.filenameRe.MatchString(name) {
		return true
	}
	if cc.sourceRe != nil && cc.sourceRe.MatchString(source) {
		return true
	}
	return false
}

// Assign computes the ordered list of ScannerAssignments for a file,
// per §4.7: rules are evaluated in configuration order per scanner,
// negative excludes outright, positive (or wildcard) assigns and
// stops, and the global result is stably sorted by descending
// priority.
func (e *Engine) Assign(flavorSet []string, name, source string, size int) []Assignment {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []Assignment
	for _, scannerName := range e.order {
		for _, r := range e.rules[scannerName] {
			if r.negative.matches(flavorSet, name, source) {
				break
			}
			if !r.positive.matches(flavorSet, name, source) {
				continue
			}
			if r.when != nil && !evalWhen(r.when, flavorSet, name, source, size, scannerName) {
				continue
			}
			out = append(out, Assignment{Name: scannerName, Priority: r.priority, Options: r.options})
			break
		}
	}

	// sort.SliceStable preserves configuration order (e.order, then
	// rule order within each scanner) for equal-priority ties, per §8.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}

func evalWhen(program *vm.Program, flavorSet []string, name, source string, size int, scannerName string) bool {
	out, err := expr.Run(program, whenEnv{Flavors: flavorSet, Name: name, Source: source, Size: size})
	if err != nil {
		log.Warnf("assign: scanner %q when-expression evaluation failed: %v", scannerName, err)
		return false
	}
	ok, _ := out.(bool)
	return ok
}
