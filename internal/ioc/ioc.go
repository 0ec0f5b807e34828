// Package ioc implements validated indicator-of-compromise capture for
// scanners: hash, domain, IP, URL and email values, normalized and
// shape-checked before they are attached to a scan result.
package ioc

import (
	"net"
	"net/mail"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/scanforge/filescand/pkg/log"
)

// Kind identifies the shape of an indicator.
type Kind string

const (
	KindMD5    Kind = "md5"
	KindSHA1   Kind = "sha1"
	KindSHA256 Kind = "sha256"
	KindDomain Kind = "domain"
	KindURL    Kind = "url"
	KindEmail  Kind = "email"
	KindIP     Kind = "ip"
)

func (k Kind) valid() bool {
	switch k {
	case KindMD5, KindSHA1, KindSHA256, KindDomain, KindURL, KindEmail, KindIP:
		return true
	}
	return false
}

var hashPattern = map[Kind]*regexp.Regexp{
	KindMD5:    regexp.MustCompile(`^[a-fA-F0-9]{32}$`),
	KindSHA1:   regexp.MustCompile(`^[a-fA-F0-9]{40}$`),
	KindSHA256: regexp.MustCompile(`^[a-fA-F0-9]{64}$`),
}

// Record is one validated indicator, ready for inclusion in a scan result.
type Record struct {
	IOC         string `json:"ioc"`
	Type        Kind   `json:"ioc_type"`
	Scanner     string `json:"scanner"`
	Description string `json:"description,omitempty"`
	Malicious   bool   `json:"malicious,omitempty"`
}

// Recorder accumulates indicators emitted by a single scanner invocation.
// A fresh Recorder is handed to the scanner for each call (see
// internal/scanner.Invocation), matching the harness's "reset per
// invocation" contract.
type Recorder struct {
	Scanner string
	Records []Record
}

// NewRecorder returns a Recorder attributed to the given scanner key.
func NewRecorder(scannerKey string) *Recorder {
	return &Recorder{Scanner: scannerKey}
}

// Add validates and records one or more indicators of the given kind.
// Invalid kinds or values are dropped with a warning, matching §4.13.
func (r *Recorder) Add(values []string, kind Kind, description string, malicious bool) {
	if !kind.valid() {
		log.Warnf("ioc: dropping indicator with unknown kind %q", kind)
		return
	}
	for _, raw := range values {
		r.addOne(raw, kind, description, malicious)
	}
}

// AddOne is a convenience wrapper around Add for a single value.
func (r *Recorder) AddOne(value string, kind Kind, description string, malicious bool) {
	r.Add([]string{value}, kind, description, malicious)
}

func (r *Recorder) addOne(raw string, kind Kind, description string, malicious bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return
	}

	switch kind {
	case KindURL:
		r.addURL(value, description, malicious)
	case KindDomain:
		if !ValidDomain(value) {
			log.Warnf("ioc: dropping invalid domain %q", value)
			return
		}
		r.emit(value, KindDomain, description, malicious)
	case KindIP:
		if net.ParseIP(value) == nil {
			log.Warnf("ioc: dropping invalid ip %q", value)
			return
		}
		r.emit(value, KindIP, description, malicious)
	case KindEmail:
		if _, err := mail.ParseAddress(value); err != nil {
			log.Warnf("ioc: dropping invalid email %q", value)
			return
		}
		r.emit(value, KindEmail, description, malicious)
	case KindMD5, KindSHA1, KindSHA256:
		if !hashPattern[kind].MatchString(value) {
			log.Warnf("ioc: dropping invalid %s hash %q", kind, value)
			return
		}
		r.emit(strings.ToLower(value), kind, description, malicious)
	}
}

// addURL checks that the URL parses with a scheme and host (dropping it
// otherwise), records a registered-domain or IP indicator derived from
// its host, and then records the URL itself, per §4.13.
func (r *Recorder) addURL(raw string, description string, malicious bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || u.Scheme == "" {
		log.Warnf("ioc: dropping invalid url %q", raw)
		return
	}
	host := u.Hostname()
	if ip := net.ParseIP(host); ip != nil {
		r.emit(host, KindIP, description, malicious)
	} else if domain, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		r.emit(domain, KindDomain, description, malicious)
	} else {
		r.emit(host, KindDomain, description, malicious)
	}
	r.emit(raw, KindURL, description, malicious)
}

func (r *Recorder) emit(value string, kind Kind, description string, malicious bool) {
	r.Records = append(r.Records, Record{
		IOC:         value,
		Type:        kind,
		Scanner:     r.Scanner,
		Description: description,
		Malicious:   malicious,
	})
}

// ValidDomain reports whether s has the shape of a DNS hostname.
func ValidDomain(s string) bool {
	if s == "" || len(s) > 253 {
		return false
	}
	labels := strings.Split(s, ".")
	if len(labels) < 2 {
		return false
	}
	labelPattern := regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)
	for _, l := range labels {
		if !labelPattern.MatchString(l) {
			return false
		}
	}
	return true
}
