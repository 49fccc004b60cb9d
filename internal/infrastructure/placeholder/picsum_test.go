package placeholder

import (
	"net/url"
	"testing"
)

func TestNextURL(t *testing.T) {
	t.Parallel()

	src := NewSource("picsum.photos", 512).WithSeed(func() int { return 4242 })
	got, err := src.NextURL()
	if err != nil {
		t.Fatalf("NextURL returned error: %v", err)
	}
	if got != "https://picsum.photos/seed/4242/512/512" {
		t.Fatalf("unexpected url: %s", got)
	}

	parsed, err := url.Parse(got)
	if err != nil {
		t.Fatalf("parse result: %v", err)
	}
	if parsed.Scheme != "https" || parsed.Host != "picsum.photos" {
		t.Fatalf("unexpected host: %s", parsed.Host)
	}
}

func TestDefaultSeedStaysInRange(t *testing.T) {
	t.Parallel()

	src := NewSource("picsum.photos", 0)
	for i := 0; i < 1000; i++ {
		seed := src.seed()
		if seed < 0 || seed >= SeedRange {
			t.Fatalf("seed %d out of range", seed)
		}
	}
	if src.size != 512 {
		t.Fatalf("expected default size, got %d", src.size)
	}
}

func TestBuildImageURLValidation(t *testing.T) {
	t.Parallel()

	if _, err := buildImageURL("", 1, 512, 512); err == nil {
		t.Fatalf("expected error for empty host")
	}
	if _, err := buildImageURL("picsum.photos", SeedRange, 512, 512); err == nil {
		t.Fatalf("expected error for out-of-range seed")
	}
}
