package scanner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyStripsScanPrefixAndSnakeCases(t *testing.T) {
	assert.Equal(t, "strings", Key("ScanStrings"))
	assert.Equal(t, "base64", Key("ScanBase64"))
	assert.Equal(t, "x509", Key("ScanX509"))
	assert.Equal(t, "pe_file", Key("ScanPeFile"))
}

func TestNormalizeWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", NormalizeWhitespace("  a\n\tb   c \n"))
	assert.Equal(t, "", NormalizeWhitespace("   \n\t  "))
}

func TestInvocationSetAndFlag(t *testing.T) {
	var uploaded []byte
	inv := NewInvocation("strings", func(_ context.Context, _ string, chunk []byte, _ time.Time) error {
		uploaded = append(uploaded, chunk...)
		return nil
	})
	inv.Set("matches", []string{"hello"})
	inv.Flag("truncated")
	assert.Equal(t, []string{"hello"}, inv.Fields["matches"])
	assert.Equal(t, []string{"truncated"}, inv.Flags)

	child := inv.NewChild("child.bin", "strings")
	require.Len(t, inv.Children, 1)
	assert.NoError(t, inv.Upload(context.Background(), child, []byte("data"), time.Now().Add(time.Minute)))
	assert.Equal(t, "data", string(uploaded))
}
