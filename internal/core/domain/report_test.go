// internal/core/domain/report_test.go
package domain

import (
	"testing"
	"time"

	"reconx/internal/testutil"
)

func TestReport_SetAndCounts(t *testing.T) {
	r := NewReport("example.com")
	r.Set("whois", Success(Payload{"registrar": "ACME"}))
	r.Set("ports", Failure("timeout"))
	r.Set("dns", Success(nil))

	testutil.AssertTrue(t, r.Has("ports"), "has ports")
	testutil.AssertFalse(t, r.Has("missing"), "no missing")
	testutil.AssertEqual(t, r.Failures(), 1, "failures")
	testutil.AssertEqual(t, r.Successes(), 2, "successes")

	names := r.Names()
	testutil.AssertEqual(t, names[0], "dns", "sorted first")
	testutil.AssertEqual(t, names[2], "whois", "sorted last")
}

func TestReport_SetOnZeroValue(t *testing.T) {
	var r Report
	r.Set("whois", Success(nil))
	testutil.AssertTrue(t, r.Has("whois"), "zero-value report accepts results")
}

func TestReport_Finalize(t *testing.T) {
	local := time.Date(2024, 5, 1, 14, 30, 0, 0, time.FixedZone("X", 2*3600))
	r := NewReport("example.com")
	r.Finalize(local)

	testutil.AssertTrue(t, r.CompletedAt.Equal(local), "same instant")
	testutil.AssertEqual(t, r.CompletedAt.Location(), time.UTC, "stored in UTC")

	now := time.Now()
	r.Finalize(now)
	testutil.AssertTrue(t, r.CompletedAt == now.UTC().Round(0), "monotonic reading stripped")
}

func TestReport_Equal(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	build := func() *Report {
		r := NewReport("a.com")
		r.Set("whois", Success(Payload{"x": 1.0}))
		r.Set("ports", Failure("refused"))
		r.Finalize(ts)
		return r
	}

	a, b := build(), build()
	testutil.AssertTrue(t, a.Equal(b), "identical reports")

	b.Set("ports", Failure("other"))
	testutil.AssertFalse(t, a.Equal(b), "different outcome")

	c := build()
	c.Finalize(ts.Add(time.Second))
	testutil.AssertFalse(t, a.Equal(c), "different timestamp")

	d := build()
	d.Set("dns", Success(nil))
	testutil.AssertFalse(t, a.Equal(d), "different key set")

	var nilReport *Report
	testutil.AssertTrue(t, nilReport.Equal(nil), "nil equals nil")
	testutil.AssertFalse(t, a.Equal(nil), "report vs nil")
}
