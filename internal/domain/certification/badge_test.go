package certification

import (
	"testing"
	"time"
)

func TestBadgeIsValid(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	cases := []struct {
		name  string
		badge Badge
		want  bool
	}{
		{"permanent", Badge{PermanentValidity: true}, true},
		{"expires later", Badge{ExpiresAt: &future}, true},
		{"expired", Badge{ExpiresAt: &past}, false},
		{"no expiry and not permanent", Badge{}, false},
		{"superseded permanent", Badge{PermanentValidity: true, SupersededAt: &past}, false},
	}
	for _, tc := range cases {
		b := tc.badge
		if got := b.IsValid(now); got != tc.want {
			t.Fatalf("%s: want=%v got=%v", tc.name, tc.want, got)
		}
		if b.Refresh(now).Valid != tc.want {
			t.Fatalf("%s: Refresh did not stamp Valid", tc.name)
		}
	}
}

func TestParseLevelDefaultsToBronze(t *testing.T) {
	if ParseLevel("gold") != LevelGold {
		t.Fatalf("gold should parse")
	}
	if ParseLevel("diamond") != LevelBronze {
		t.Fatalf("unknown level should default to bronze")
	}
}
