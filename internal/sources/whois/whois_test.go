package whois

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"reconx/internal/platform/logx"
	"reconx/internal/testutil"
)

const sampleRDAP = `{
  "objectClassName": "domain",
  "handle": "2336799_DOMAIN_COM-VRSN",
  "ldhName": "EXAMPLE.COM",
  "status": ["client delete prohibited", "client transfer prohibited"],
  "port43": "whois.example-registrar.com",
  "secureDNS": {"delegationSigned": true},
  "nameservers": [{"ldhName": "A.IANA-SERVERS.NET"}, {"ldhName": "B.IANA-SERVERS.NET"}],
  "events": [
    {"eventAction": "registration", "eventDate": "1995-08-14T04:00:00Z"},
    {"eventAction": "expiration", "eventDate": "2025-08-13T04:00:00Z"},
    {"eventAction": "last changed", "eventDate": "2024-08-14T07:01:34Z"}
  ],
  "entities": [
    {
      "roles": ["registrar"],
      "publicIds": [{"type": "IANA Registrar ID", "identifier": "376"}],
      "vcardArray": ["vcard", [["version", {}, "text", "4.0"], ["fn", {}, "text", "RESERVED-Internet Assigned Numbers Authority"]]]
    },
    {
      "roles": ["registrant"],
      "vcardArray": ["vcard", [["org", {}, "text", "Example Org"]]]
    }
  ]
}`

func newTestServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		switch r.URL.Path {
		case "/domain/example.com":
			w.Header().Set("Content-Type", "application/rdap+json")
			_, _ = w.Write([]byte(sampleRDAP))
		case "/domain/broken.com":
			_, _ = w.Write([]byte(`{not json`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestProbe_Execute(t *testing.T) {
	var calls atomic.Int32
	server := newTestServer(t, &calls)
	p := New(Config{Endpoint: server.URL, Timeout: 2 * time.Second}, logx.NewNop())

	out, err := p.Execute(context.Background(), "www.example.com")
	testutil.AssertNoError(t, err, "execute")

	testutil.AssertEqual(t, out["domain"], "example.com", "domain lowercased")
	testutil.AssertEqual(t, out["registrar"], "RESERVED-Internet Assigned Numbers Authority", "registrar")
	testutil.AssertEqual(t, out["registrar_iana_id"], "376", "iana id")
	testutil.AssertEqual(t, out["registrant_org"], "Example Org", "registrant org")
	testutil.AssertEqual(t, out["dnssec"], true, "dnssec")
	testutil.AssertEqual(t, out["whois_server"], "whois.example-registrar.com", "port43")
	testutil.AssertEqual(t, out["source"], server.URL, "source endpoint")

	ns := out["nameservers"].([]any)
	testutil.AssertEqual(t, len(ns), 2, "nameservers")
	testutil.AssertEqual(t, ns[0], "a.iana-servers.net", "nameserver lowercased")

	events := out["events"].(map[string]any)
	testutil.AssertEqual(t, events["registered"], "1995-08-14T04:00:00Z", "registration date")
	testutil.AssertEqual(t, events["expires"], "2025-08-13T04:00:00Z", "expiration date")
	testutil.AssertEqual(t, events["updated"], "2024-08-14T07:01:34Z", "update date")
}

func TestProbe_CachesByRegistrableDomain(t *testing.T) {
	var calls atomic.Int32
	server := newTestServer(t, &calls)
	p := New(Config{Endpoint: server.URL}, logx.NewNop())

	_, err := p.Execute(context.Background(), "example.com")
	testutil.AssertNoError(t, err, "first")
	_, err = p.Execute(context.Background(), "mail.example.com")
	testutil.AssertNoError(t, err, "second")

	testutil.AssertEqual(t, calls.Load(), int32(1), "second lookup served from cache")
}

func TestProbe_Errors(t *testing.T) {
	var calls atomic.Int32
	server := newTestServer(t, &calls)
	p := New(Config{Endpoint: server.URL}, logx.NewNop())

	_, err := p.Execute(context.Background(), "unknown.org")
	testutil.AssertError(t, err, "not found")
	testutil.AssertContains(t, err.Error(), "domain not found in RDAP", "not found message")

	_, err = p.Execute(context.Background(), "broken.com")
	testutil.AssertError(t, err, "malformed response")
	testutil.AssertContains(t, err.Error(), "failed to parse RDAP response", "parse message")

	_, err = p.Execute(context.Background(), "192.0.2.1")
	testutil.AssertError(t, err, "IP target rejected")
}

func TestRegistrableDomain(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"example.com", "example.com", false},
		{"WWW.Example.COM.", "example.com", false},
		{"a.b.example.co.uk", "example.co.uk", false},
		{"https://shop.example.com/path", "example.com", false},
		{"example.com:8443", "example.com", false},
		{"10.0.0.1", "", true},
		{"2001:db8::1", "", true},
		{"com", "", true},
		{"   ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := RegistrableDomain(tt.in)
			if tt.wantErr {
				testutil.AssertError(t, err, "expected error")
				return
			}
			testutil.AssertNoError(t, err, "unexpected error")
			testutil.AssertEqual(t, got, tt.want, "registrable domain")
		})
	}
}

func TestVCardField(t *testing.T) {
	vcard := []any{"vcard", []any{
		[]any{"fn", map[string]any{}, "text", "Registrar Inc"},
		[]any{"adr", map[string]any{}, "text", []any{"", "", "Main St", "City"}},
	}}

	testutil.AssertEqual(t, vcardField(vcard, "fn"), "Registrar Inc", "text field")
	testutil.AssertEqual(t, vcardField(vcard, "adr"), "Main St City", "structured field joined")
	testutil.AssertEqual(t, vcardField(vcard, "email"), "", "missing field")
	testutil.AssertEqual(t, vcardField(nil, "fn"), "", "nil vcard")
}
