package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const standaloneInfo = "# Server\r\n" +
	"redis_version:7.2.4\r\n" +
	"redis_mode:standalone\r\n" +
	"os:Linux\r\n" +
	"# Keyspace\r\n" +
	"db0:keys=3,expires=0,avg_ttl=0\r\n" +
	"db2:keys=1,expires=0,avg_ttl=0\r\n"

func TestParseServerInfoStandalone(t *testing.T) {
	info := ParseServerInfo(standaloneInfo)

	assert.Equal(t, 7.2, info.Version)
	assert.False(t, info.ClusterMode)
	assert.False(t, info.SentinelMode)
	assert.Equal(t, map[int]int{0: 3, 1: 0, 2: 1}, info.Databases)
}

func TestParseServerInfoSections(t *testing.T) {
	info := ParseServerInfo(standaloneInfo)

	require.Contains(t, info.Parsed, "server")
	assert.Equal(t, "Linux", info.Parsed["server"]["os"])
	assert.Equal(t, "7.2.4", info.Parsed["server"]["redis_version"])
	require.Contains(t, info.Parsed, "keyspace")
	assert.Equal(t, "keys=3,expires=0,avg_ttl=0", info.Parsed["keyspace"]["db0"])
}

func TestParseServerInfoCluster(t *testing.T) {
	info := ParseServerInfo("# Server\r\n" +
		"redis_version:7.0.0\r\n" +
		"redis_mode:cluster\r\n" +
		"# Keyspace\r\n" +
		"db0:keys=42,expires=0\r\n")

	assert.True(t, info.ClusterMode)
	// cluster deployments expose a single logical db regardless of
	// what keyspace lines report
	assert.Equal(t, map[int]int{0: 0}, info.Databases)
}

func TestParseServerInfoSentinel(t *testing.T) {
	info := ParseServerInfo("# Server\r\nredis_version:7.0.0\r\nredis_mode:sentinel\r\n")

	assert.True(t, info.SentinelMode)
	assert.False(t, info.ClusterMode)
	assert.Empty(t, info.Databases)
}

func TestParseServerInfoMissingVersion(t *testing.T) {
	info := ParseServerInfo("# Server\r\nos:Linux\r\n")
	assert.Equal(t, 0.0, info.Version)
}

func TestParseServerInfoIgnoresLinesWithoutColon(t *testing.T) {
	info := ParseServerInfo("# Server\r\nnoise\r\nredis_version:6.2.1\r\n")
	assert.Equal(t, 6.2, info.Version)
	assert.NotContains(t, info.Parsed["server"], "noise")
}

func TestParseServerInfoEmpty(t *testing.T) {
	info := ParseServerInfo("")
	assert.Equal(t, 0.0, info.Version)
	assert.Empty(t, info.Databases)
}
