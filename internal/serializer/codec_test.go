package serializer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecRoundTrip(t *testing.T) {
	payloads := map[string][]byte{
		"ascii":  []byte("some stored value with spaces"),
		"binary": {0x00, 0x01, 0xFF, 0xFE, 0x00, 0x7F},
		"empty":  {},
	}

	for _, name := range []string{"snappy", "gzip", "base64"} {
		t.Run(name, func(t *testing.T) {
			codec, err := Lookup(name)
			require.NoError(t, err)

			for label, payload := range payloads {
				encoded, err := codec.Encode(payload)
				require.NoError(t, err, label)

				decoded, err := codec.Decode(encoded)
				require.NoError(t, err, label)
				assert.Equal(t, string(payload), string(decoded), label)
			}
		})
	}
}

func TestLookupUnknown(t *testing.T) {
	codec, err := Lookup("zstd")
	assert.Error(t, err)
	assert.Nil(t, codec)
}

func TestLookupCaseInsensitive(t *testing.T) {
	codec, err := Lookup("Snappy")
	require.NoError(t, err)
	assert.NotNil(t, codec)
}
