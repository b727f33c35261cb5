package reputation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/velemoonkon/dnssentry/pkg/record"
)

func TestChecker_DefaultTables(t *testing.T) {
	c := NewChecker(DefaultTables())

	tests := []struct {
		ip   string
		want record.Reputation
	}{
		{ip: "192.168.1.105", want: record.ReputationMalicious},
		{ip: "185.220.101.4", want: record.ReputationMalicious},
		{ip: "10.0.0.66", want: record.ReputationMalicious},
		{ip: "192.168.1.110", want: record.ReputationSuspicious},
		{ip: "103.224.182.250", want: record.ReputationSuspicious},
		{ip: "192.168.50.1", want: record.ReputationClean},
		{ip: " 192.168.1.105 ", want: record.ReputationMalicious},
		{ip: "8.8.8.8", want: record.ReputationUnknown},
		{ip: "10.0.0.1", want: record.ReputationUnknown},
		{ip: "", want: record.ReputationUnknown},
		{ip: "not-an-ip", want: record.ReputationUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Check(tt.ip))
		})
	}
}

func TestChecker_Precedence(t *testing.T) {
	// An address on both lists is malicious; list membership beats the prefix rule
	c := NewChecker(Tables{
		Malicious:     []string{"10.1.1.1"},
		Suspicious:    []string{"10.1.1.1", "10.2.2.2"},
		PrivatePrefix: "10.",
	})

	assert.Equal(t, record.ReputationMalicious, c.Check("10.1.1.1"))
	assert.Equal(t, record.ReputationSuspicious, c.Check("10.2.2.2"))
	assert.Equal(t, record.ReputationClean, c.Check("10.3.3.3"))
	assert.Equal(t, record.ReputationUnknown, c.Check("11.0.0.1"))
}

func TestChecker_EmptyTables(t *testing.T) {
	c := NewChecker(Tables{})
	assert.Equal(t, record.ReputationUnknown, c.Check("192.168.1.105"))
}

func TestChecker_TablesCopied(t *testing.T) {
	tables := Tables{Malicious: []string{"1.2.3.4"}}
	c := NewChecker(tables)
	tables.Malicious[0] = "5.6.7.8"

	assert.Equal(t, record.ReputationMalicious, c.Check("1.2.3.4"))
	assert.Equal(t, record.ReputationUnknown, c.Check("5.6.7.8"))
}
