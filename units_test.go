// File: config/units_test.go
package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDurationString(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Duration
	}{
		{"30 secs", 30 * time.Second},
		{"30s", 30 * time.Second},
		{"500 ms", 500 * time.Millisecond},
		{"500millis", 500 * time.Millisecond},
		{"15 minutes", 15 * time.Minute},
		{"3 hr", 3 * time.Hour},
		{"2 days", 48 * time.Hour},
		{"1 w", 7 * 24 * time.Hour},
		{"10_000 ms", 10 * time.Second},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := parseDurationString(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	t.Run("errors", func(t *testing.T) {
		_, err := parseDurationString("30")
		assert.Error(t, err, "a bare number has no unit")
		_, err = parseDurationString("secs")
		assert.Error(t, err)
		_, err = parseDurationString("30 fortnights")
		assert.Error(t, err)
		_, err = parseDurationString("10000000000000 weeks")
		assert.Error(t, err, "overflow must be reported")
	})
}

func TestParseSizeString(t *testing.T) {
	cases := []struct {
		raw  string
		want ByteSize
	}{
		{"128 bytes", 128},
		{"64 b", 64},
		{"256 kb", 256 * Kibibyte},
		{"256 KiB", 256 * Kibibyte},
		{"128 MiB", 128 * Mebibyte},
		{"128mb", 128 * Mebibyte},
		{"4 gb", 4 * Gibibyte},
		{"2 gigabytes", 2 * Gibibyte},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := parseSizeString(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	t.Run("overflow", func(t *testing.T) {
		_, err := parseSizeString("99999999999999999999 gb")
		assert.Error(t, err)
	})
}

func TestByteSizeString(t *testing.T) {
	assert.Equal(t, "0 B", ByteSize(0).String())
	assert.Equal(t, "100 B", ByteSize(100).String())
	assert.Equal(t, "4 KiB", (4 * Kibibyte).String())
	assert.Equal(t, "3 MiB", (3 * Mebibyte).String())
	assert.Equal(t, "2 GiB", (2 * Gibibyte).String())
	assert.Equal(t, "1025 B", ByteSize(1025).String())
}

type unitParams struct {
	Latency   time.Duration `config:"latency"`
	PollEvery time.Duration `config:"poll_every,unit=ms"`
	Cache     ByteSize      `config:"cache"`
	Chunk     ByteSize      `config:"chunk,unit=mib"`
}

func TestUnitAwareDeserialization(t *testing.T) {
	schema := NewSchema()
	schema.MustInsert(MustDescribe(unitParams{}), "")

	t.Run("object form", func(t *testing.T) {
		repo := NewRepository(schema).
			With(mustJSON(t, `{"latency": {"hours": 3}, "poll_every": 250, "cache": {"in_mb": 64}, "chunk": 16}`))

		var cfg unitParams
		require.NoError(t, repo.Scan(&cfg))
		assert.Equal(t, 3*time.Hour, cfg.Latency)
		assert.Equal(t, 250*time.Millisecond, cfg.PollEvery)
		assert.Equal(t, 64*Mebibyte, cfg.Cache)
		assert.Equal(t, 16*Mebibyte, cfg.Chunk)
	})

	t.Run("suffixed param names via env", func(t *testing.T) {
		repo := NewRepository(schema).
			With(NewEnvironment("APP_", map[string]string{
				"APP_LATENCY_MS": "500",
				"APP_POLL_EVERY": "100",
				"APP_CACHE_GB":   "1",
				"APP_CHUNK":      "8",
			}))

		var cfg unitParams
		require.NoError(t, repo.Scan(&cfg))
		assert.Equal(t, 500*time.Millisecond, cfg.Latency)
		assert.Equal(t, 100*time.Millisecond, cfg.PollEvery)
		assert.Equal(t, 1*Gibibyte, cfg.Cache)
		assert.Equal(t, 8*Mebibyte, cfg.Chunk)
	})

	t.Run("ambiguous objects are rejected", func(t *testing.T) {
		repo := NewRepository(schema).
			With(mustJSON(t, `{"latency": {"hours": 1, "ms": 2}, "poll_every": 1, "cache": "1 kb", "chunk": 1}`))

		var cfg unitParams
		err := repo.Scan(&cfg)
		require.Error(t, err)
		var errs *ParseErrors
		require.ErrorAs(t, err, &errs)
		require.Equal(t, 1, errs.Len())
		assert.Equal(t, "latency", errs.First().Path)
	})
}
