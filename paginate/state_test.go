package paginate

import (
	stderrs "errors"
	"testing"

	kit "pagestream/internal/platform/testkit"
	"pagestream/page"
)

func TestZeroValueIsInitial(t *testing.T) {
	var s State[int]
	if s.Phase() != PhaseInitial {
		t.Fatalf("zero State phase = %v", s.Phase())
	}
	if !s.HasMore() || s.IsLoading() || s.IsLoadingMore() {
		t.Fatalf("initial flags wrong")
	}
	if s.ItemCount() != 0 || s.Err() != nil {
		t.Fatalf("initial should hold nothing")
	}
	if _, ok := s.PageInfo(); ok {
		t.Fatalf("initial has no PageInfo")
	}
}

func TestVariantTable(t *testing.T) {
	info := page.PageInfo{HasNextPage: true}
	done := page.PageInfo{HasNextPage: false}
	cause := stderrs.New("boom")

	cases := []struct {
		name          string
		s             State[string]
		phase         Phase
		hasMore       bool
		isLoading     bool
		isLoadingMore bool
	}{
		{"initial", Initial[string](), PhaseInitial, true, false, false},
		{"loading", Loading([]string{"a"}), PhaseLoading, true, true, false},
		{"loading more", LoadingMore([]string{"a"}, info), PhaseLoadingMore, true, false, true},
		{"data more", Data([]string{"a"}, info), PhaseData, true, false, false},
		{"data done", Data([]string{"a"}, done), PhaseData, false, false, false},
		{"error with info", Failed[string](cause, []string{"a"}, &info), PhaseError, true, false, false},
		{"error no info", Failed[string](cause, nil, nil), PhaseError, false, false, false},
	}
	for _, c := range cases {
		if c.s.Phase() != c.phase {
			t.Fatalf("%s: phase = %v", c.name, c.s.Phase())
		}
		if c.s.HasMore() != c.hasMore {
			t.Fatalf("%s: HasMore = %v, want %v", c.name, c.s.HasMore(), c.hasMore)
		}
		if c.s.IsLoading() != c.isLoading || c.s.IsLoadingMore() != c.isLoadingMore {
			t.Fatalf("%s: loading flags wrong", c.name)
		}
	}
}

func TestConstructorsCopyItems(t *testing.T) {
	src := []string{"a", "b"}
	s := Data(src, page.PageInfo{})
	src[0] = "mutated"
	if s.Items()[0] != "a" {
		t.Fatalf("Data did not copy items")
	}
}

func TestErrVisibleOnlyOnError(t *testing.T) {
	cause := stderrs.New("boom")
	if Failed[int](cause, nil, nil).Err() != cause {
		t.Fatalf("Failed lost the cause")
	}
	if Data([]int{1}, page.PageInfo{}).Err() != nil {
		t.Fatalf("Data should have nil Err")
	}
}

func TestPhaseString(t *testing.T) {
	cases := map[Phase]string{
		PhaseInitial:     "initial",
		PhaseLoading:     "loading",
		PhaseLoadingMore: "loading_more",
		PhaseData:        "data",
		PhaseError:       "error",
		Phase(42):        "phase(42)",
	}
	for p, want := range cases {
		if p.String() != want {
			t.Fatalf("Phase(%d).String() = %q, want %q", p, p.String(), want)
		}
	}
}

func TestMatchDispatch(t *testing.T) {
	info := page.PageInfo{HasNextPage: true}
	cause := stderrs.New("boom")

	m := Matcher[string, string]{
		Initial:     func() string { return "initial" },
		Loading:     func(prev []string) string { return "loading" },
		LoadingMore: func(items []string, _ page.PageInfo) string { return "more" },
		Data:        func(items []string, _ page.PageInfo) string { return "data:" + items[0] },
		Error:       func(err error, _ []string, _ *page.PageInfo) string { return "err:" + err.Error() },
	}

	if got := Match(Initial[string](), m); got != "initial" {
		t.Fatalf("Match initial = %q", got)
	}
	if got := Match(Loading([]string{"a"}), m); got != "loading" {
		t.Fatalf("Match loading = %q", got)
	}
	if got := Match(LoadingMore([]string{"a"}, info), m); got != "more" {
		t.Fatalf("Match loading more = %q", got)
	}
	if got := Match(Data([]string{"a"}, info), m); got != "data:a" {
		t.Fatalf("Match data = %q", got)
	}
	if got := Match(Failed[string](cause, nil, nil), m); got != "err:boom" {
		t.Fatalf("Match error = %q", got)
	}
}

func TestMatchEnforcesExhaustiveness(t *testing.T) {
	// a missing arm for the active variant must panic, not silently fall through
	kit.MustPanic(t, func() {
		Match(Data([]int{1}, page.PageInfo{}), Matcher[int, int]{
			Initial: func() int { return 0 },
		})
	})
	kit.MustPanic(t, func() {
		Match(Initial[int](), Matcher[int, int]{})
	})
}
