package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/velemoonkon/dnssentry/pkg/reputation"
	"github.com/velemoonkon/dnssentry/pkg/tunnel"
)

// Tables is the reference data handed to the reputation checker and the
// threat scorer at construction time. It is read once and never mutated.
type Tables struct {
	Reputation      reputation.Tables
	HighRiskRegions []string
}

// DefaultTables returns the built-in reference data
func DefaultTables() Tables {
	return Tables{
		Reputation:      reputation.DefaultTables(),
		HighRiskRegions: append([]string(nil), tunnel.DefaultHighRiskRegions...),
	}
}

// LoadTables reads reference data from a YAML, JSON or TOML file.
// Keys missing from the file keep their built-in defaults; an empty path
// returns the defaults unchanged.
//
//	reputation:
//	  malicious: ["192.168.1.105"]
//	  suspicious: ["192.168.1.110"]
//	  private_prefix: "192.168."
//	scoring:
//	  high_risk_regions: ["Russia", "Unknown"]
func LoadTables(path string) (Tables, error) {
	t := DefaultTables()
	if path == "" {
		return t, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Tables{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if v.IsSet("reputation.malicious") {
		t.Reputation.Malicious = v.GetStringSlice("reputation.malicious")
	}
	if v.IsSet("reputation.suspicious") {
		t.Reputation.Suspicious = v.GetStringSlice("reputation.suspicious")
	}
	if v.IsSet("reputation.private_prefix") {
		t.Reputation.PrivatePrefix = v.GetString("reputation.private_prefix")
	}
	if v.IsSet("scoring.high_risk_regions") {
		t.HighRiskRegions = v.GetStringSlice("scoring.high_risk_regions")
	}

	return t, nil
}
