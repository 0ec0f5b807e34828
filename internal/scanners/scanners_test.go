package scanners

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanforge/filescand/internal/scanner"
)

// testUploader returns a scanner.Uploader that appends every uploaded
// chunk to *sink, standing in for the harness's real blob-store-backed
// uploader in these scanner-only unit tests.
func testUploader(sink *[]byte) scanner.Uploader {
	return func(_ context.Context, _ string, chunk []byte, _ time.Time) error {
		if sink != nil {
			*sink = append(*sink, chunk...)
		}
		return nil
	}
}

func TestStringsScanExtractsPrintableRuns(t *testing.T) {
	s := &Strings{minLength: 4}
	inv := scanner.NewInvocation("strings", nil)

	data := []byte("\x00\x01hello world\x02\x03shorthi\x04more text here\x05")
	err := s.Scan(context.Background(), inv, data, nil, nil)
	require.NoError(t, err)

	found, ok := inv.Fields["strings"].([]string)
	require.True(t, ok)
	assert.Contains(t, found, "hello world")
	assert.Contains(t, found, "more text here")
	// "shorthi" is 7 chars, run together as one token since nothing separates it.
	assert.NotContains(t, found, "sh")
}

func TestStringsScanDedupesRuns(t *testing.T) {
	s := &Strings{minLength: 4}
	inv := scanner.NewInvocation("strings", nil)

	data := []byte("hello\x00hello\x00hello")
	require.NoError(t, s.Scan(context.Background(), inv, data, nil, nil))

	found := inv.Fields["strings"].([]string)
	assert.Equal(t, []string{"hello"}, found)
}

func TestBase64ScanDecodesAndExtractsChild(t *testing.T) {
	var uploaded []byte
	b := &Base64{}
	inv := scanner.NewInvocation("base64", testUploader(&uploaded))

	encoded := base64.StdEncoding.EncodeToString([]byte("hello there, this is extracted"))
	data := []byte("noise around " + encoded + " more noise")

	err := b.Scan(context.Background(), inv, data, nil, nil)
	require.NoError(t, err)

	require.Len(t, inv.Children, 1)
	assert.Equal(t, "hello there, this is extracted", string(uploaded))
	assert.Equal(t, 1, inv.Fields["decoded"])
}

func TestBase64ScanSkipsShortRuns(t *testing.T) {
	b := &Base64{}
	inv := scanner.NewInvocation("base64", testUploader(nil))

	err := b.Scan(context.Background(), inv, []byte("abc"), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, inv.Children)
	assert.Equal(t, 0, inv.Fields["decoded"])
}
