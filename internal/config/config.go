// Package config implements the engine's configuration document (§6):
// a single JSON file read at startup, schema-validated, and exposed as
// a package-level Keys struct.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/scanforge/filescand/pkg/log"
)

// Rule is one assignment rule for a scanner, per §4.7's mapping_table
// entry shape.
type Rule struct {
	Positive *Condition     `json:"positive,omitempty"`
	Negative *Condition     `json:"negative,omitempty"`
	Priority int            `json:"priority"`
	Options  map[string]any `json:"options,omitempty"`
	// When is an additive extension beyond §4.7's literal flavor/regex
	// matching: an expr-lang boolean expression evaluated over
	// {Flavors, Name, Source, Size} for conditions a regex or flavor
	// set can't express (e.g. "Size > 1048576"). Optional; the literal
	// positive/negative rule remains the required, normative path.
	When string `json:"when,omitempty"`
}

// Condition is the positive/negative clause of a Rule.
type Condition struct {
	Flavors  []string `json:"flavors,omitempty"`
	Filename string   `json:"filename,omitempty"`
	Source   string   `json:"source,omitempty"`
}

// Limits holds the §6 limits.* keys.
type Limits struct {
	TimeToLive   int `json:"time_to_live"`
	MaxFiles     int `json:"max_files"`
	Distribution int `json:"distribution"`
	Scanner      int `json:"scanner"`
	MaxDepth     int `json:"max_depth"`
}

// Tasting holds the §6 tasting.* keys.
type Tasting struct {
	ContentTypeDB string `json:"content_type_db"`
	Rules         string `json:"rules"`
}

// Keys is the engine's whole configuration document, §6.
type Keys struct {
	Limits   Limits         `json:"limits"`
	Tasting  Tasting        `json:"tasting"`
	Scanners ScannerRules   `json:"scanners"`
	Blob     map[string]any `json:"blobstore,omitempty"`
	Queue    map[string]any `json:"queue,omitempty"`
	Sink     map[string]any `json:"eventsink,omitempty"`
	Audit    map[string]any `json:"audit,omitempty"`
	Admin    map[string]any `json:"admin,omitempty"`
}

// ScannerEntry is one scanner's configured rule list, keeping the
// name alongside its rules so ScannerRules can preserve the order
// scanners appear in the configuration document.
type ScannerEntry struct {
	Name  string
	Rules []Rule
}

// ScannerRules is the ordered form of the scanners.* configuration
// object. encoding/json otherwise discards a JSON object's key order
// by decoding it into a Go map; §8's equal-priority tie-breaking and
// §5's deterministic scan-key ordering both depend on that
// configuration order surviving into the assignment engine, so
// ScannerRules decodes it into an explicitly ordered slice instead.
type ScannerRules []ScannerEntry

// UnmarshalJSON decodes a JSON object into ScannerRules, preserving
// the order its keys appeared in the source document.
func (s *ScannerRules) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("config: scanners must be a JSON object")
	}
	var out ScannerRules
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("config: scanner name must be a string")
		}
		var rules []Rule
		if err := dec.Decode(&rules); err != nil {
			return err
		}
		out = append(out, ScannerEntry{Name: name, Rules: rules})
	}
	*s = out
	return nil
}

// Lookup returns the configured rules for name in configuration
// order, and whether name was present at all.
func (s ScannerRules) Lookup(name string) ([]Rule, bool) {
	for _, e := range s {
		if e.Name == name {
			return e.Rules, true
		}
	}
	return nil, false
}

// defaultPriority mirrors §4.7's "priority: int (default 5)".
const defaultPriority = 5

// Load reads, schema-validates, and parses the configuration document
// at path. Priority defaults are applied to any rule that omits one.
func Load(path string) (*Keys, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := Validate(raw); err != nil {
		return nil, err
	}
	var k Keys
	if err := json.Unmarshal(raw, &k); err != nil {
		return nil, err
	}
	for i := range k.Scanners {
		for j := range k.Scanners[i].Rules {
			if k.Scanners[i].Rules[j].Priority == 0 {
				k.Scanners[i].Rules[j].Priority = defaultPriority
			}
		}
	}
	log.Infof("config: loaded %d scanner(s) from %s", len(k.Scanners), path)
	return &k, nil
}
