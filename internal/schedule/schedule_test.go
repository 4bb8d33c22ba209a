package schedule

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestToCron(t *testing.T) {
	cases := []struct {
		in   Schedule
		want string
	}{
		{Schedule{Type: TypeInterval, Interval: intp(30)}, "*/30 * * * *"},
		{Schedule{Type: TypeInterval}, "*/60 * * * *"},
		{Schedule{Type: TypeDaily, Time: "07:05"}, "5 7 * * *"},
		{Schedule{Type: TypeWeekly, Time: "14:30", DayOfWeek: intp(3)}, "30 14 * * 3"},
		{Schedule{Type: TypeWeekly, Time: "14:30", DayOfWeek: intp(0)}, "30 14 * * 0"},
		{Schedule{Type: TypeMonthly, Time: "23:59", DayOfMonth: intp(31)}, "59 23 31 * *"},
		{Schedule{Type: TypeDaily}, "0 0 * * *"},
		{Schedule{Type: TypeDaily, Time: "noon"}, "0 0 * * *"},
		{Schedule{Type: TypeDaily, Time: "12:xx"}, "0 0 * * *"},
	}
	for _, tc := range cases {
		if got := tc.in.ToCron(); got != tc.want {
			t.Fatalf("%+v: got %q want %q", tc.in, got, tc.want)
		}
	}
}

func TestWithTypeResetsFields(t *testing.T) {
	s := Schedule{Type: TypeWeekly, Time: "14:30", DayOfWeek: intp(3)}

	interval := s.WithType(TypeInterval)
	if diff := cmp.Diff(Schedule{Type: TypeInterval, Interval: intp(60)}, interval); diff != "" {
		t.Fatalf("interval (-want +got):\n%s", diff)
	}

	monthly := s.WithType(TypeMonthly)
	if diff := cmp.Diff(Schedule{Type: TypeMonthly, Time: "14:30", DayOfMonth: intp(1)}, monthly); diff != "" {
		t.Fatalf("monthly (-want +got):\n%s", diff)
	}

	daily := interval.WithType(TypeDaily)
	if diff := cmp.Diff(Schedule{Type: TypeDaily, Time: DefaultTime}, daily); diff != "" {
		t.Fatalf("daily (-want +got):\n%s", diff)
	}
}

func TestValidate(t *testing.T) {
	if err := (Schedule{Type: TypeWeekly, Time: "14:30", DayOfWeek: intp(3)}).Validate(); err != nil {
		t.Fatalf("valid schedule rejected: %v", err)
	}
	bad := []Schedule{
		{Type: "yearly"},
		{Type: TypeDaily, Time: "25:00"},
		{Type: TypeWeekly, Time: "10:00", DayOfWeek: intp(9)},
		{Type: TypeMonthly, Time: "10:00", DayOfMonth: intp(0)},
		{Type: TypeInterval, Interval: intp(0)},
		{Type: TypeInterval, Interval: intp(7)},
		{Type: TypeDaily, Time: "noon"},
		{Type: TypeWeekly, Time: "10:00", DayOfWeek: intp(-1)},
		{Type: TypeMonthly, Time: "10:00", DayOfMonth: intp(32)},
	}
	for _, s := range bad {
		if err := s.Validate(); err == nil {
			t.Fatalf("%+v: expected error", s)
		}
	}
}

func TestNext(t *testing.T) {
	from := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) // Wednesday
	got, err := Next("30 14 * * 3", from)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if want := time.Date(2024, 5, 1, 14, 30, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestNormalizeDropsStrayFields(t *testing.T) {
	in := Schedule{Type: TypeDaily, Time: "10:15", Interval: intp(7), DayOfWeek: intp(3), DayOfMonth: intp(31)}
	got := in.Normalize()
	if diff := cmp.Diff(Schedule{Type: TypeDaily, Time: "10:15"}, got); diff != "" {
		t.Fatalf("normalize (-want +got):\n%s", diff)
	}
	if err := got.Validate(); err != nil {
		t.Fatalf("normalized schedule rejected: %v", err)
	}
	for _, n := range Intervals {
		if err := (Schedule{Type: TypeInterval, Interval: intp(n)}).Validate(); err != nil {
			t.Fatalf("interval %d rejected: %v", n, err)
		}
	}
}
