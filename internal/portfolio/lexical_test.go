package portfolio

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"go.uber.org/zap"
)

const (
	linkOne   = "https://example.com/l1"
	linkTwo   = "https://example.com/l2"
	linkThree = "https://example.com/l3"
)

func twoEntries() []Entry {
	return []Entry{
		{TechStack: "Python, Django, MySQL", Link: linkOne},
		{TechStack: "React, Node.js, MongoDB", Link: linkTwo},
	}
}

func newTestLexical(t *testing.T, entries []Entry, bias Bias) (*Lexical, *Store) {
	t.Helper()

	store := NewStore(filepath.Join(t.TempDir(), "portfolio.csv"))
	if err := store.Save(entries); err != nil {
		t.Fatalf("save: %v", err)
	}
	return NewLexical(store, entries, bias, zap.NewNop()), store
}

func links(matches []Match) []string {
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Link)
	}
	return out
}

func TestLexicalRank(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		entries []Entry
		skills  []string
		n       int
		want    []string
	}{
		{
			name:    "single match",
			entries: twoEntries(),
			skills:  []string{"python"},
			n:       1,
			want:    []string{linkOne},
		},
		{
			name:    "no match falls back to insertion order",
			entries: twoEntries(),
			skills:  []string{"golang"},
			n:       2,
			want:    []string{linkOne, linkTwo},
		},
		{
			name:    "empty skills fall back",
			entries: twoEntries(),
			skills:  nil,
			n:       5,
			want:    []string{linkOne, linkTwo},
		},
		{
			name: "substring semantics",
			entries: []Entry{
				{TechStack: "Rust, Actix", Link: linkOne},
				{TechStack: "JavaScript, Node.js", Link: linkTwo},
			},
			skills: []string{"Java"},
			n:      1,
			want:   []string{linkTwo},
		},
		{
			name: "higher score first",
			entries: []Entry{
				{TechStack: "Python", Link: linkOne},
				{TechStack: "Python, Django", Link: linkTwo},
			},
			skills: []string{"python", "django"},
			n:      2,
			want:   []string{linkTwo, linkOne},
		},
		{
			name: "ties keep insertion order",
			entries: []Entry{
				{TechStack: "Go, Docker", Link: linkOne},
				{TechStack: "Kotlin", Link: linkTwo},
				{TechStack: "Docker, Kubernetes", Link: linkThree},
			},
			skills: []string{"docker"},
			n:      3,
			want:   []string{linkOne, linkThree, linkTwo},
		},
		{
			name: "comma separated string is a single token",
			entries: []Entry{
				{TechStack: "Python, Django", Link: linkOne},
				{TechStack: "Go, Python", Link: linkTwo},
			},
			skills: []string{"go, python"},
			n:      1,
			want:   []string{linkTwo},
		},
		{
			name:    "non positive n",
			entries: twoEntries(),
			skills:  []string{"python"},
			n:       0,
			want:    []string{},
		},
		{
			name:    "empty table",
			entries: []Entry{},
			skills:  []string{"python"},
			n:       3,
			want:    []string{},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			matcher, _ := newTestLexical(t, tc.entries, Bias{})
			got := links(matcher.Rank(context.Background(), tc.skills, tc.n))
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, got)
			}
		})
	}
}

func TestLexicalRankLengthProperty(t *testing.T) {
	matcher, _ := newTestLexical(t, DefaultEntries(), Bias{})
	total := len(DefaultEntries())

	for n := 1; n <= total+3; n++ {
		want := n
		if want > total {
			want = total
		}
		for _, skills := range [][]string{nil, {"kotlin"}, {"nothing-matches"}, {"python", "mysql", "php"}} {
			if got := len(matcher.Rank(context.Background(), skills, n)); got != want {
				t.Fatalf("n=%d skills=%v: expected %d results, got %d", n, skills, want, got)
			}
		}
	}
}

func TestLexicalBias(t *testing.T) {
	entries := []Entry{
		{TechStack: "Python, Django", Link: linkOne},
		{TechStack: "Python, TensorFlow, Machine Learning", Link: linkTwo},
	}

	plain, _ := newTestLexical(t, entries, Bias{})
	if got := links(plain.Rank(context.Background(), []string{"python"}, 1)); got[0] != linkOne {
		t.Fatalf("expected insertion order tie break without bias, got %v", got)
	}

	biased, _ := newTestLexical(t, entries, Bias{Terms: []string{" Machine Learning ", "", "tensorflow"}, Weight: 0.5})
	if got := links(biased.Rank(context.Background(), []string{"python"}, 1)); got[0] != linkTwo {
		t.Fatalf("expected bias to promote themed entry, got %v", got)
	}

	// Bias alone makes an entry relevant even without requested skills.
	if got := links(biased.Rank(context.Background(), nil, 2)); !reflect.DeepEqual(got, []string{linkTwo, linkOne}) {
		t.Fatalf("unexpected order with bias only: %v", got)
	}

	disabled, _ := newTestLexical(t, entries, Bias{Terms: []string{"tensorflow"}})
	if got := links(disabled.Rank(context.Background(), nil, 2)); !reflect.DeepEqual(got, []string{linkOne, linkTwo}) {
		t.Fatalf("zero weight must disable bias, got %v", got)
	}
}

func TestLexicalAddPersists(t *testing.T) {
	matcher, store := newTestLexical(t, twoEntries(), Bias{})

	if err := matcher.Add(context.Background(), "Rust, Actix", linkThree); err != nil {
		t.Fatalf("add: %v", err)
	}

	reloaded, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(reloaded) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(reloaded))
	}
	if reloaded[2] != (Entry{TechStack: "Rust, Actix", Link: linkThree}) {
		t.Fatalf("unexpected third row: %#v", reloaded[2])
	}

	if got := links(matcher.Rank(context.Background(), []string{"rust"}, 1)); got[0] != linkThree {
		t.Fatalf("new entry must be rankable, got %v", got)
	}
}

func TestLexicalAddWriteFailureKeepsTable(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "missing-dir", "portfolio.csv"))
	matcher := NewLexical(store, twoEntries(), Bias{}, zap.NewNop())

	if err := matcher.Add(context.Background(), "Rust", linkThree); err == nil {
		t.Fatalf("expected write error")
	}
	if got := len(matcher.Entries()); got != 2 {
		t.Fatalf("expected table to stay at 2 rows, got %d", got)
	}
}

func TestNormalizeSkills(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		input any
		want  []string
	}{
		{name: "nil", input: nil, want: []string{}},
		{name: "string kept whole", input: " Go, Python ", want: []string{"go, python"}},
		{name: "slice deduped", input: []string{"Go", "go", " ", "Docker"}, want: []string{"go", "docker"}},
		{name: "any slice", input: []any{"Kotlin", 3, nil}, want: []string{"kotlin", "3"}},
		{name: "scalar", input: 42, want: []string{"42"}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := NormalizeSkills(tc.input); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, got)
			}
		})
	}
}
