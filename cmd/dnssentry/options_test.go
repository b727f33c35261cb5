package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velemoonkon/dnssentry/pkg/config"
	"github.com/velemoonkon/dnssentry/pkg/output"
)

func TestResolveRunConfig_Defaults(t *testing.T) {
	// Default run: dnssentry <file>
	cfg, err := ResolveRunConfig(RunFlags{OutputFormat: "jsonl"})
	require.NoError(t, err)

	assert.Equal(t, output.FormatJSONL, cfg.Format)
	assert.Equal(t, "-", cfg.OutputFile, "empty output should mean stdout")
	assert.False(t, cfg.Stream)
	assert.Equal(t, config.Pipeline.DefaultWindowSize, cfg.WindowSize)
	assert.Empty(t, cfg.AnalyzeURL)
}

func TestResolveRunConfig_Formats(t *testing.T) {
	tests := []struct {
		name    string
		flags   RunFlags
		want    string
		wantErr bool
	}{
		{name: "jsonl", flags: RunFlags{OutputFormat: "jsonl"}, want: output.FormatJSONL},
		{name: "json alias", flags: RunFlags{OutputFormat: "JSON"}, want: output.FormatJSONL},
		{name: "empty", flags: RunFlags{}, want: output.FormatJSONL},
		{name: "markdown", flags: RunFlags{OutputFormat: "markdown"}, want: output.FormatMarkdown},
		{name: "md alias", flags: RunFlags{OutputFormat: "md"}, want: output.FormatMarkdown},
		{name: "parquet to file", flags: RunFlags{OutputFormat: "parquet", OutputFile: "out.parquet"}, want: output.FormatParquet},
		{name: "parquet to stdout", flags: RunFlags{OutputFormat: "parquet", OutputFile: "-"}, wantErr: true},
		{name: "parquet default output", flags: RunFlags{OutputFormat: "parquet"}, wantErr: true},
		{name: "unknown", flags: RunFlags{OutputFormat: "xml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ResolveRunConfig(tt.flags)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Format)
		})
	}
}

func TestResolveRunConfig_StreamSettings(t *testing.T) {
	cfg, err := ResolveRunConfig(RunFlags{
		Stream:     true,
		WindowSize: 50,
		Workers:    8,
		Rate:       200,
		AnalyzeURL: "  http://localhost:8080/analyze  ",
	})
	require.NoError(t, err)

	assert.True(t, cfg.Stream)
	assert.Equal(t, 50, cfg.WindowSize)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 200, cfg.Rate)
	assert.Equal(t, "http://localhost:8080/analyze", cfg.AnalyzeURL)
}

func TestResolveRunConfig_NegativeFallsBackToEnvDefaults(t *testing.T) {
	cfg, err := ResolveRunConfig(RunFlags{WindowSize: -1, Workers: -1, Rate: -5})
	require.NoError(t, err)

	assert.Equal(t, config.Pipeline.DefaultWindowSize, cfg.WindowSize)
	assert.Equal(t, config.Pipeline.DefaultWorkers, cfg.Workers)
	assert.Equal(t, config.Pipeline.DefaultRateLimit, cfg.Rate)
}

func TestResolveRunConfig_GeoIPFromEnv(t *testing.T) {
	// Registered first so it runs after the env is restored
	t.Cleanup(config.Init)
	t.Setenv("DNSSENTRY_GEOIP_DATABASE", "/data/GeoLite2-City.mmdb")
	config.Init()

	cfg, err := ResolveRunConfig(RunFlags{})
	require.NoError(t, err)
	assert.Equal(t, "/data/GeoLite2-City.mmdb", cfg.GeoIPDatabase)

	// Flag wins
	cfg, err = ResolveRunConfig(RunFlags{GeoIPDatabase: "local.mmdb"})
	require.NoError(t, err)
	assert.Equal(t, "local.mmdb", cfg.GeoIPDatabase)
}
