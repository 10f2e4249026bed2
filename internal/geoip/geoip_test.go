package geoip

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFallbackFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "geo.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestInitJSONFallback(t *testing.T) {
	path := writeFallbackFile(t, `[
		{"net": "203.0.113.0/24", "country": "JP"},
		{"net": "198.51.100.0/24", "country": "US"},
		{"net": "not-a-cidr", "country": "XX"}
	]`)

	g, err := Init(path)
	require.NoError(t, err)
	defer func() { _ = g.Close() }()

	assert.Equal(t, "JP", g.Country(net.ParseIP("203.0.113.7")))
	assert.Equal(t, "US", g.Country(net.ParseIP("198.51.100.200")))
	assert.Equal(t, "", g.Country(net.ParseIP("192.0.2.1")), "unlisted range resolves to empty")
}

func TestInitMissingFile(t *testing.T) {
	_, err := Init(filepath.Join(t.TempDir(), "absent.mmdb"))
	assert.Error(t, err)
}

func TestInitInvalidJSON(t *testing.T) {
	path := writeFallbackFile(t, `{"not": "a list"}`)
	_, err := Init(path)
	assert.Error(t, err)
}

func TestCountryNilReceiver(t *testing.T) {
	var g *GeoIP
	assert.Equal(t, "", g.Country(net.ParseIP("203.0.113.7")))
	assert.NoError(t, g.Close())
}
