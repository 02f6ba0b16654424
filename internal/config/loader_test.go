package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleJSON = `{
  "cloudflare": [
    {
      "authentication": {
        "api_token": "api_token_here",
        "api_key": {
          "api_key": "api_key_here",
          "account_email": "your_email_here"
        }
      },
      "zone_id": "your_zone_id_here",
      "rule_id": "your_rule_id_here"
    }
  ],
  "a": true,
  "aaaa": false,
  "delay": 120
}`

func TestLoadJSON_Sample(t *testing.T) {
	result, err := LoadJSON([]byte(sampleJSON))
	require.NoError(t, err)

	cfg := result.Config
	assert.Equal(t, "json", result.Format)
	assert.Empty(t, result.Warnings)
	assert.True(t, cfg.IPv4)
	assert.False(t, cfg.IPv6)
	assert.Equal(t, 120*time.Second, cfg.Delay)
	assert.Equal(t, DetectionTrace, cfg.Detection)
	require.Len(t, cfg.Targets, 1)

	target := cfg.Targets[0]
	assert.Equal(t, "your_zone_id_here", target.ZoneID)
	assert.Equal(t, "your_rule_id_here", target.RuleID)
	assert.False(t, target.Authentication.UsesToken(), "placeholder token must not be used")
	assert.Equal(t, "your_email_here", target.Authentication.Email())
	assert.Equal(t, "api_key_here", target.Authentication.Key())
}

func TestLoadJSON_Delay(t *testing.T) {
	tests := []struct {
		name     string
		delay    string
		want     time.Duration
		warnings int
	}{
		{"clamped", `"delay": 5,`, 30 * time.Second, 1},
		{"exactly minimum", `"delay": 30,`, 30 * time.Second, 0},
		{"numeric string", `"delay": "60",`, 60 * time.Second, 0},
		{"fraction truncated", `"delay": 90.7,`, 90 * time.Second, 0},
		{"bad string", `"delay": "bad",`, 300 * time.Second, 1},
		{"null", `"delay": null,`, 300 * time.Second, 1},
		{"missing", ``, 300 * time.Second, 1},
		{"boolean", `"delay": true,`, 300 * time.Second, 1},
		{"large but representable", `"delay": 86400,`, 24 * time.Hour, 0},
		{"overflowing string", `"delay": "9300000000",`, 300 * time.Second, 1},
		{"overflowing number", `"delay": 18446744074,`, 300 * time.Second, 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			doc := `{` + tc.delay + ` "a": true, "aaaa": true, "cloudflare": []}`
			result, err := LoadJSON([]byte(doc))
			require.NoError(t, err)
			assert.Equal(t, tc.want, result.Config.Delay)
			assert.Len(t, result.Warnings, tc.warnings)
		})
	}
}

func TestLoadJSON_Families(t *testing.T) {
	tests := []struct {
		name       string
		doc        string
		wantV4     bool
		wantV6     bool
		wantWarned bool
	}{
		{"both set", `{"a": false, "aaaa": true, "delay": 60}`, false, true, false},
		{"aaaa missing", `{"a": false, "delay": 60}`, true, true, true},
		{"a missing", `{"aaaa": false, "delay": 60}`, true, true, true},
		{"a not boolean", `{"a": "yes", "aaaa": false, "delay": 60}`, true, true, true},
		{"both missing", `{"delay": 60}`, true, true, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := LoadJSON([]byte(tc.doc))
			require.NoError(t, err)
			assert.Equal(t, tc.wantV4, result.Config.IPv4)
			assert.Equal(t, tc.wantV6, result.Config.IPv6)
			if tc.wantWarned {
				assert.NotEmpty(t, result.Warnings)
			} else {
				assert.Empty(t, result.Warnings)
			}
		})
	}
}

func TestLoadJSON_BothFamiliesDisabledWarns(t *testing.T) {
	result, err := LoadJSON([]byte(`{"a": false, "aaaa": false, "delay": 60}`))
	require.NoError(t, err)
	assert.False(t, result.Config.IPv4)
	assert.False(t, result.Config.IPv6)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "empty expression")
}

func TestLoadJSON_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"malformed", `{"a": true,`},
		{"missing zone", `{"cloudflare": [{"rule_id": "r"}]}`},
		{"missing rule", `{"cloudflare": [{"zone_id": "z"}]}`},
		{"unknown detection", `{"detection": "carrier-pigeon"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadJSON([]byte(tc.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadJSON_Extras(t *testing.T) {
	doc := `{
  "a": true, "aaaa": true, "delay": 300,
  "detection": "DNS",
  "geoip_db": " /var/lib/GeoLite2-Country.mmdb ",
  "metrics_listen": "127.0.0.1:9309",
  "log_level": "Debug",
  "log_json": true
}`
	result, err := LoadJSON([]byte(doc))
	require.NoError(t, err)

	cfg := result.Config
	assert.Equal(t, DetectionDNS, cfg.Detection)
	assert.Equal(t, "/var/lib/GeoLite2-Country.mmdb", cfg.GeoIPDB)
	assert.Equal(t, "127.0.0.1:9309", cfg.MetricsListen)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.LogJSON)
}

func TestLoadJSON_UnknownLogLevelWarns(t *testing.T) {
	result, err := LoadJSON([]byte(`{"a": true, "aaaa": true, "delay": 60, "log_level": "chatty"}`))
	require.NoError(t, err)
	assert.Equal(t, "info", result.Config.LogLevel)
	assert.Len(t, result.Warnings, 1)
}

func TestLoadHCL(t *testing.T) {
	src := `
a     = true
aaaa  = true
delay = 45

cloudflare {
  zone_id = "zone-1"
  rule_id = "rule-1"

  authentication {
    api_token = "tok"
  }
}

cloudflare {
  zone_id = "zone-2"
  rule_id = "rule-2"

  authentication {
    api_key {
      api_key       = "key"
      account_email = "ops@example.com"
    }
  }
}
`
	result, err := LoadHCL([]byte(src), "config.hcl")
	require.NoError(t, err)

	cfg := result.Config
	assert.Equal(t, "hcl", result.Format)
	assert.Empty(t, result.Warnings)
	assert.True(t, cfg.IPv4)
	assert.True(t, cfg.IPv6)
	assert.Equal(t, 45*time.Second, cfg.Delay)
	require.Len(t, cfg.Targets, 2)
	assert.True(t, cfg.Targets[0].Authentication.UsesToken())
	assert.False(t, cfg.Targets[1].Authentication.UsesToken())
	assert.Equal(t, "ops@example.com", cfg.Targets[1].Authentication.Email())
}

func TestLoadHCL_DefaultsAndWarnings(t *testing.T) {
	src := `
a     = "maybe"
delay = "soon"
`
	result, err := LoadHCL([]byte(src), "config.hcl")
	require.NoError(t, err)

	cfg := result.Config
	assert.True(t, cfg.IPv4)
	assert.True(t, cfg.IPv6)
	assert.Equal(t, DefaultDelay, cfg.Delay)
	assert.Len(t, result.Warnings, 2)
}

func TestLoadHCL_SyntaxError(t *testing.T) {
	_, err := LoadHCL([]byte("cloudflare {\n"), "broken.hcl")
	assert.Error(t, err)
}

func TestLoadYAML(t *testing.T) {
	src := `
a: false
aaaa: true
delay: 10
cloudflare:
  - zone_id: z
    rule_id: r
    authentication:
      api_token: tok
`
	result, err := LoadYAML([]byte(src))
	require.NoError(t, err)

	cfg := result.Config
	assert.False(t, cfg.IPv4)
	assert.True(t, cfg.IPv6)
	assert.Equal(t, MinDelay, cfg.Delay)
	assert.Len(t, result.Warnings, 1)
	require.Len(t, cfg.Targets, 1)
	assert.Equal(t, "z/r", cfg.Targets[0].String())
}

func TestLocateAndLoadFile(t *testing.T) {
	dir := t.TempDir()

	_, err := Locate(dir)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("delay: 60\n"), 0o600))
	path, err := Locate(dir)
	require.NoError(t, err)
	assert.Equal(t, "config.yaml", filepath.Base(path))

	// config.json wins over every other candidate.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(sampleJSON), 0o600))
	path, err = Locate(dir)
	require.NoError(t, err)
	assert.Equal(t, "config.json", filepath.Base(path))

	result, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, result.Path)
	assert.Equal(t, 120*time.Second, result.Config.Delay)
}

func TestLoad_UsesEnvironment(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(sampleJSON), 0o600))

	t.Setenv("DYNWALL_CONFIG", "")
	t.Setenv("CONFIG_PATH", dir)
	result, err := Load()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.json"), result.Path)

	other := filepath.Join(t.TempDir(), "custom.hcl")
	require.NoError(t, os.WriteFile(other, []byte("delay = 600\n"), 0o600))
	t.Setenv("DYNWALL_CONFIG", other)
	result, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "hcl", result.Format)
	assert.Equal(t, 600*time.Second, result.Config.Delay)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestAuth(t *testing.T) {
	assert.True(t, Auth{APIToken: "real"}.UsesToken())
	assert.False(t, Auth{APIToken: ""}.UsesToken())
	assert.False(t, Auth{APIToken: PlaceholderToken}.UsesToken())

	var empty Auth
	assert.Equal(t, "", empty.Email())
	assert.Equal(t, "", empty.Key())
}

func TestFamilies(t *testing.T) {
	assert.Equal(t, "IPv4 (A) & IPv6 (AAAA)", (&Config{IPv4: true, IPv6: true}).Families())
	assert.Equal(t, "IPv4 (A)", (&Config{IPv4: true}).Families())
	assert.Equal(t, "IPv6 (AAAA)", (&Config{IPv6: true}).Families())
}

func TestParseDelay_Bounds(t *testing.T) {
	tests := []struct {
		in   any
		want int
		ok   bool
	}{
		{int64(maxDelaySeconds), int(maxDelaySeconds), true},
		{int64(maxDelaySeconds) + 1, 0, false},
		{uint64(1) << 63, 0, false},
		{int(45), 45, true},
		{"  120 ", 120, true},
		{"99999999999999999999", 0, false},
	}
	for _, tc := range tests {
		got, ok := parseDelay(tc.in)
		assert.Equal(t, tc.ok, ok, "%v", tc.in)
		assert.Equal(t, tc.want, got, "%v", tc.in)
	}
}
