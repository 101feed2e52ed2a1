package experiment

import (
	"fmt"
	"math"
	"testing"

	"github.com/google/uuid"
)

func TestHash_KnownValues(t *testing.T) {
	tests := []struct {
		seed   string
		testID string
		want   int32
	}{
		{"", "", 0},
		{"a", "", 97},
		{"a", "b", 97*31 + 98},
		{"hello", "", 99162322},
		// overflows 32 bits and wraps negative
		{"session_abcdefghij", "banner_copy_v1", hashReference("session_abcdefghijbanner_copy_v1")},
	}

	for _, tt := range tests {
		if got := Hash(tt.seed, tt.testID); got != tt.want {
			t.Errorf("Hash(%q, %q) = %d, want %d", tt.seed, tt.testID, got, tt.want)
		}
	}
}

// hashReference computes the hash with explicit 64-bit arithmetic and masking.
func hashReference(s string) int32 {
	var h int64
	for _, r := range s {
		h = (h<<5 - h + int64(r)) & 0xffffffff
		if h >= 1<<31 {
			h -= 1 << 32
		}
	}
	return int32(h)
}

func TestHash_UTF16CodeUnits(t *testing.T) {
	// U+1F600 is a surrogate pair: two code units, not one rune.
	want := int32(0)
	for _, unit := range []int32{0xD83D, 0xDE00} {
		want = (want << 5) - want + unit
	}
	if got := Hash("\U0001F600", ""); got != want {
		t.Errorf("Hash over surrogate pair = %d, want %d", got, want)
	}
}

func TestPosition_Bounds(t *testing.T) {
	for i := 0; i < 1000; i++ {
		seed := fmt.Sprintf("seed-%d", i)
		pos := Position(seed, "t", 7)
		if pos < 0 || pos >= 7 {
			t.Fatalf("position %d out of range for %s", pos, seed)
		}
	}
	if Position("x", "t", 0) != 0 {
		t.Error("zero total weight should map to position 0")
	}
}

func TestBucket_Deterministic(t *testing.T) {
	test := DefaultTests()[0]
	for i := 0; i < 100; i++ {
		seed := uuid.NewString()
		first, _ := Bucket(seed, test)
		second, _ := Bucket(seed, test)
		if first.ID != second.ID {
			t.Fatalf("seed %s bucketed to %s then %s", seed, first.ID, second.ID)
		}
	}
}

func TestBucket_Distribution(t *testing.T) {
	test := Test{
		ID:     "banner_copy_v1",
		Active: true,
		Variants: []Variant{
			{ID: "a", Weight: 25},
			{ID: "b", Weight: 25},
			{ID: "c", Weight: 25},
			{ID: "d", Weight: 25},
		},
	}

	const sessions = 10000
	counts := make(map[string]int)
	for i := 0; i < sessions; i++ {
		v, ok := Bucket(uuid.NewString(), test)
		if !ok {
			t.Fatal("bucket returned no variant")
		}
		counts[v.ID]++
	}

	for _, v := range test.Variants {
		share := float64(counts[v.ID]) / sessions
		if math.Abs(share-0.25) > 0.03 {
			t.Errorf("variant %s share %.3f outside 0.25 +/- 0.03 (counts %v)", v.ID, share, counts)
		}
	}
}

func TestBucket_CumulativeWeights(t *testing.T) {
	test := Test{
		ID: "weighted",
		Variants: []Variant{
			{ID: "zero", Weight: 0},
			{ID: "only", Weight: 10},
		},
	}
	for i := 0; i < 200; i++ {
		v, _ := Bucket(fmt.Sprintf("s%d", i), test)
		if v.ID != "only" {
			t.Fatalf("zero-weight variant should never be chosen, got %s", v.ID)
		}
	}
}

func TestBucket_FallbackToFirst(t *testing.T) {
	test := Test{ID: "empty-weights", Variants: []Variant{{ID: "first"}, {ID: "second"}}}
	v, ok := Bucket("anything", test)
	if !ok || v.ID != "first" {
		t.Errorf("expected fallback to first variant, got %+v", v)
	}

	if _, ok := Bucket("anything", Test{ID: "none"}); ok {
		t.Error("test without variants should not bucket")
	}
}

func TestTest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		test    Test
		wantErr bool
	}{
		{"default", DefaultTests()[0], false},
		{"missing id", Test{Variants: []Variant{{ID: "a", Weight: 1}}}, true},
		{"no variants", Test{ID: "t"}, true},
		{"duplicate variant", Test{ID: "t", Variants: []Variant{{ID: "a", Weight: 1}, {ID: "a", Weight: 1}}}, true},
		{"negative weight", Test{ID: "t", Variants: []Variant{{ID: "a", Weight: -1}, {ID: "b", Weight: 2}}}, true},
		{"zero total", Test{ID: "t", Variants: []Variant{{ID: "a"}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.test.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
