// Package taste implements the taster (C4, §4.4): classifying raw
// bytes into content-type and rule-match flavor tags.
package taste

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/fsnotify/fsnotify"

	"github.com/scanforge/filescand/internal/taste/rules"
	"github.com/scanforge/filescand/pkg/log"
)

// Taster holds the compiled rule set and provides both taste
// functions. No general-purpose libmagic binding is present anywhere
// in the retrieved example pack, so content-type sniffing uses the
// standard library's net/http.DetectContentType (documented in
// DESIGN.md as a standard-library exception).
type Taster struct {
	pattern string
	dir     string
	rules   *rules.RuleSet
	watcher *fsnotify.Watcher
}

// New compiles rulesDir (matching pattern, e.g. "*.json") into a
// Taster. Compile failure is fatal to the worker, per §4.4.
func New(rulesDir, pattern string) (*Taster, error) {
	if pattern == "" {
		pattern = "*.json"
	}
	rs, err := rules.Compile(rulesDir, pattern)
	if err != nil {
		return nil, fmt.Errorf("taste: %w", err)
	}
	return &Taster{pattern: pattern, dir: rulesDir, rules: rs}, nil
}

// TasteContentType returns exactly one libmagic-style mime tag for
// data, per §4.4.
func (t *Taster) TasteContentType(data []byte) []string {
	return []string{http.DetectContentType(data)}
}

// TasteRules returns zero or more rule-matched tags for data. Input is
// left-stripped of ASCII whitespace before matching, per §4.4.
func (t *Taster) TasteRules(data []byte) []string {
	return t.rules.Match(leftStripASCIIWhitespace(data))
}

// TasteWithCustomRules compiles an ad-hoc rule set from extra and
// matches data against it, independent of the worker-wide compiled
// set. This is the additive, non-normative extension point of §9
// Design Notes' "custom_fields" open question: never required by the
// default Taste path.
func (t *Taster) TasteWithCustomRules(data []byte, extra []rules.Definition) ([]string, error) {
	rs, err := rules.CompileDefinitions(extra)
	if err != nil {
		return nil, err
	}
	return rs.Match(leftStripASCIIWhitespace(data)), nil
}

// Reload recompiles the rule directory in place, used by
// internal/maintenance's periodic rescan and by the fsnotify watcher
// below. A failed reload keeps the previous compiled set, logs, and
// returns the error, since a worker already running must not be brought down by a
// bad rule edit (only an initial compile failure is fatal, per §4.4).
func (t *Taster) Reload() error {
	rs, err := rules.Compile(t.dir, t.pattern)
	if err != nil {
		log.Errorf("taste: reload failed, keeping previous rule set: %v", err)
		return err
	}
	t.rules = rs
	log.Infof("taste: reloaded rule set from %s", t.dir)
	return nil
}

// WatchForChanges starts an fsnotify watch on the rule directory and
// triggers Reload on any write/create/remove event, complementing
// internal/maintenance's periodic rescan with near-immediate pickup of
// edits. The returned stop function closes the watcher.
func (t *Taster) WatchForChanges() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("taste: creating watcher: %w", err)
	}
	if err := w.Add(t.dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("taste: watching %s: %w", t.dir, err)
	}
	t.watcher = w

	done := make(chan struct{})
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					_ = t.Reload()
				}
			case werr, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warnf("taste: watcher error: %v", werr)
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		w.Close()
	}, nil
}

func leftStripASCIIWhitespace(data []byte) []byte {
	return bytes.TrimLeft(data, " \t\n\r\v\f")
}
