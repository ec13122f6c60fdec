package hashing

import (
	"fmt"
	"testing"
)

func TestSum32KnownAnswers(t *testing.T) {
	if got := Sum32(""); got != sum32Reference([]byte("")) {
		t.Fatalf("empty input mismatch: murmur3 lib=%d reference=%d", got, sum32Reference([]byte("")))
	}

	cases := []string{"flag/user-1", "a", "ab", "abc", "abcd", "abcde", "hello world"}
	for _, c := range cases {
		lib := Sum32(c)
		ref := sum32Reference([]byte(c))
		if lib != ref {
			t.Errorf("Sum32(%q): lib=%d reference=%d differ", c, lib, ref)
		}
	}
}

func TestSum32Deterministic(t *testing.T) {
	a := Sum32("flag-key/targeting-key")
	b := Sum32("flag-key/targeting-key")
	if a != b {
		t.Fatalf("expected repeated input to produce repeated output, got %d != %d", a, b)
	}
}

func TestBucketRange(t *testing.T) {
	for i := 0; i < 1000; i++ {
		b := Bucket("flag", fmt.Sprintf("user-%d", i))
		if b < 0 || b >= NumBuckets {
			t.Fatalf("bucket %d out of range", b)
		}
	}
}

func TestBucketDistributionUniformity(t *testing.T) {
	const n = 100000
	deciles := make([]int, 10)
	for i := 0; i < n; i++ {
		b := Bucket("rollout-flag", fmt.Sprintf("synthetic-user-%d", i))
		deciles[b*10/NumBuckets]++
	}
	expected := float64(n) / 10
	for decile, count := range deciles {
		diffPct := (float64(count) - expected) / float64(n) * 100
		if diffPct < -2 || diffPct > 2 {
			t.Errorf("decile %d off by %.2f%% of total (count=%d, expected=%.0f)", decile, diffPct, count, expected)
		}
	}
}
