// internal/testutil/fixtures.go
package testutil

// Fixture data para tests (valores primitivos solamente, sin dependencias de domain)

// FixtureTargets contiene targets de prueba (dominios e IPs son opacos para el core).
var FixtureTargets = []string{
	"example.com",
	"a.com",
	"x.com",
	"192.0.2.10",
	"2001:db8::1",
}

// FixtureBlankTargets contiene targets que deben rechazarse.
var FixtureBlankTargets = []string{
	"",
	" ",
	"\t\n",
}

// FixtureWhoisPayload payload típico de un probe whois.
func FixtureWhoisPayload() map[string]any {
	return map[string]any{
		"registrar":   "ACME",
		"nameservers": []any{"ns1.example.com", "ns2.example.com"},
		"dnssec":      false,
	}
}
