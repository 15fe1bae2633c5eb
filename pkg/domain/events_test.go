package domain

import (
	"strings"
	"testing"
	"time"
)

func TestCatalogForTime(t *testing.T) {
	c := MustDefaultCatalog()
	loc := c.Location()

	tests := []struct {
		name string
		at   time.Time
		want EventTag
		ok   bool
	}{
		{name: "nikah morning", at: time.Date(2025, 12, 5, 9, 30, 0, 0, loc), want: EventNikah, ok: true},
		{name: "sanding evening", at: time.Date(2025, 12, 6, 21, 0, 0, 0, loc), want: EventSanding, ok: true},
		{name: "tandang second day", at: time.Date(2025, 12, 14, 23, 59, 0, 0, loc), want: EventTandang, ok: true},
		// 2025-12-05T17:00Z is 01:00 on 6 Dec in Kuala Lumpur.
		{name: "utc input uses local date", at: time.Date(2025, 12, 5, 17, 0, 0, 0, time.UTC), want: EventSanding, ok: true},
		{name: "between events", at: time.Date(2025, 12, 10, 12, 0, 0, 0, loc)},
		{name: "after all events", at: time.Date(2025, 12, 15, 0, 0, 1, 0, loc)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ev, ok := c.ForTime(tc.at)
			if ok != tc.ok || ev.Tag != tc.want {
				t.Fatalf("ForTime = (%q, %v), want (%q, %v)", ev.Tag, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestCatalogLookupIsExact(t *testing.T) {
	c := MustDefaultCatalog()
	if _, ok := c.Lookup("Sanding"); !ok {
		t.Fatalf("expected Sanding to resolve")
	}
	for _, bad := range []string{"sanding", "", "Reception"} {
		if _, ok := c.Lookup(bad); ok {
			t.Fatalf("expected %q to be unknown", bad)
		}
	}
}

func TestNewCatalogValidation(t *testing.T) {
	cases := map[string][]Event{
		"empty":     nil,
		"duplicate": {{Tag: EventNikah, StartDate: "2025-12-05"}, {Tag: EventNikah, StartDate: "2025-12-06"}},
		"bad date":  {{Tag: EventNikah, StartDate: "05/12/2025"}},
		"reversed":  {{Tag: EventNikah, StartDate: "2025-12-06", EndDate: "2025-12-05"}},
		"no tag":    {{StartDate: "2025-12-06"}},
	}
	for name, events := range cases {
		if _, err := NewCatalog(events, nil); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestDescribeWindows(t *testing.T) {
	got := MustDefaultCatalog().DescribeWindows()
	for _, want := range []string{"Majlis Akad Nikah (5 Dec 2025)", "Majlis Bertandang (13 Dec 2025 - 14 Dec 2025)"} {
		if !strings.Contains(got, want) {
			t.Fatalf("DescribeWindows() = %q, missing %q", got, want)
		}
	}
}

func TestVerdictRankAndParse(t *testing.T) {
	if !(VerdictSafe.Rank() < VerdictUnsure.Rank() && VerdictUnsure.Rank() < VerdictUnsafe.Rank()) {
		t.Fatalf("unexpected verdict ranking")
	}
	if Verdict("maybe").Rank() != VerdictUnsure.Rank() {
		t.Fatalf("unknown verdicts must rank as unsure")
	}
	if v, ok := ParseVerdict(" UNSAFE "); !ok || v != VerdictUnsafe {
		t.Fatalf("ParseVerdict = (%q, %v)", v, ok)
	}
	if _, ok := ParseVerdict("fine"); ok {
		t.Fatalf("expected unknown verdict to fail parsing")
	}
}
