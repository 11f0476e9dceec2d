// internal/core/domain/target_test.go
package domain

import (
	"testing"

	"reconx/internal/testutil"
)

func TestNormalizeTarget(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		want        string
		shouldError bool
	}{
		{name: "domain", input: "example.com", want: "example.com"},
		{name: "surrounding whitespace", input: "  example.com\n", want: "example.com"},
		{name: "ipv4 is opaque", input: "192.0.2.10", want: "192.0.2.10"},
		{name: "ipv6 is opaque", input: "2001:db8::1", want: "2001:db8::1"},
		{name: "underscores are not validated", input: "in_valid.com", want: "in_valid.com"},
		{name: "empty", input: "", shouldError: true},
		{name: "whitespace only", input: " \t ", shouldError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeTarget(tt.input)
			if tt.shouldError {
				testutil.AssertErrorIs(t, err, ErrEmptyTarget, "blank target")
				return
			}
			testutil.AssertNoError(t, err, "valid target")
			testutil.AssertEqual(t, got, tt.want, "normalized target")
		})
	}
}

func TestNormalizeProbeNames(t *testing.T) {
	got := NormalizeProbeNames([]string{"whois", " dns ", "", "whois", "ports", "  "})

	testutil.AssertEqual(t, len(got), 3, "deduplicated count")
	testutil.AssertEqual(t, got[0], "whois", "order preserved")
	testutil.AssertEqual(t, got[1], "dns", "trimmed")
	testutil.AssertEqual(t, got[2], "ports", "last")

	testutil.AssertEqual(t, len(NormalizeProbeNames(nil)), 0, "nil input")
}
