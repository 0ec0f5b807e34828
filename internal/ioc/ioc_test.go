package ioc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderHashes(t *testing.T) {
	r := NewRecorder("strings")
	r.AddOne("d41d8cd98f00b204e9800998ecf8427e", KindMD5, "", false)
	r.AddOne("not-a-hash", KindMD5, "", false)

	require.Len(t, r.Records, 1)
	assert.Equal(t, KindMD5, r.Records[0].Type)
	assert.Equal(t, "strings", r.Records[0].Scanner)
}

func TestRecorderUnknownKindDropped(t *testing.T) {
	r := NewRecorder("strings")
	r.AddOne("8.8.8.8", Kind("bogus"), "", false)
	assert.Empty(t, r.Records)
}

func TestRecorderURLDerivesDomain(t *testing.T) {
	r := NewRecorder("strings")
	r.AddOne("https://mail.example.co.uk/path", KindURL, "phish", true)

	require.Len(t, r.Records, 2)
	assert.Equal(t, KindDomain, r.Records[0].Type)
	assert.Equal(t, "example.co.uk", r.Records[0].IOC)
	assert.Equal(t, KindURL, r.Records[1].Type)
	assert.True(t, r.Records[1].Malicious)
}

func TestRecorderURLWithIPHostDerivesIP(t *testing.T) {
	r := NewRecorder("strings")
	r.AddOne("http://203.0.113.5:8080/x", KindURL, "", false)

	require.Len(t, r.Records, 2)
	assert.Equal(t, KindIP, r.Records[0].Type)
	assert.Equal(t, "203.0.113.5", r.Records[0].IOC)
}

func TestRecorderInvalidURLDropped(t *testing.T) {
	r := NewRecorder("strings")
	r.AddOne("not a url at all", KindURL, "", false)
	assert.Empty(t, r.Records)
}

func TestRecorderInvalidEmailDropped(t *testing.T) {
	r := NewRecorder("strings")
	r.AddOne("nope", KindEmail, "", false)
	r.AddOne("user@example.com", KindEmail, "", false)
	require.Len(t, r.Records, 1)
	assert.Equal(t, "user@example.com", r.Records[0].IOC)
}

func TestValidDomain(t *testing.T) {
	assert.True(t, ValidDomain("example.com"))
	assert.False(t, ValidDomain("example"))
	assert.False(t, ValidDomain(""))
}
