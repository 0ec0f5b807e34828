package scanners

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/scanforge/filescand/internal/eventsink"
	"github.com/scanforge/filescand/internal/file"
	"github.com/scanforge/filescand/internal/scanner"
)

// minBase64Run is the shortest candidate substring the Base64 scanner
// will attempt to decode, avoiding noise from incidental short runs of
// base64 alphabet characters in ordinary text.
const minBase64Run = 16

var base64Alphabet = func() [256]bool {
	var tbl [256]bool
	for _, r := range "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/=" {
		tbl[r] = true
	}
	return tbl
}()

// Base64 finds and decodes base64-encoded runs in a file's bytes,
// extracting each successfully decoded payload as a child file with
// the pre-attached "external" flavor tag matching its sniffed
// content-type, per §3's "may pre-attach external flavors to a child
// it creates".
type Base64 struct{}

// NewBase64 is a registry.Factory for the Base64 scanner.
func NewBase64(_ map[string]any, _ eventsink.Backend) (scanner.Scanner, error) {
	return &Base64{}, nil
}

func (b *Base64) Name() string { return "ScanBase64" }

func (b *Base64) Scan(ctx context.Context, inv *scanner.Invocation, data []byte, _ *file.File, _ map[string]any) error {
	var decoded int
	for _, run := range base64Runs(data) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if len(run) < minBase64Run {
			continue
		}
		payload, err := decodeBase64(run)
		if err != nil || len(payload) == 0 {
			continue
		}

		child := inv.NewChild("", "ScanBase64")
		child.AddFlavors(file.Flavors{file.External: {http.DetectContentType(payload)}})
		deadline := time.Now().Add(30 * time.Second)
		if err := scanner.ChunkWriter(ctx, inv, child, payload, deadline); err != nil {
			return err
		}
		decoded++
	}
	inv.Set("decoded", decoded)
	return nil
}

// base64Runs splits data into maximal runs of base64-alphabet bytes.
func base64Runs(data []byte) [][]byte {
	var runs [][]byte
	start := -1
	for i, c := range data {
		if base64Alphabet[c] {
			if start == -1 {
				start = i
			}
			continue
		}
		if start != -1 {
			runs = append(runs, data[start:i])
			start = -1
		}
	}
	if start != -1 {
		runs = append(runs, data[start:])
	}
	return runs
}

func decodeBase64(run []byte) ([]byte, error) {
	trimmed := bytes.TrimRight(run, "=")
	padded := trimmed
	if rem := len(trimmed) % 4; rem != 0 {
		padded = append(append([]byte{}, trimmed...), bytes.Repeat([]byte("="), 4-rem)...)
	}
	return base64.StdEncoding.DecodeString(string(padded))
}
