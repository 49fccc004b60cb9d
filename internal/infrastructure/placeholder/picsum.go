package placeholder

import (
	"fmt"
	"math/rand/v2"
	"net/url"
	"strconv"
)

// SeedRange bounds the random seed drawn for each image.
const SeedRange = 100000

// Source builds seeded image URLs for a picsum-style placeholder service.
type Source struct {
	host string
	size int
	seed func() int
}

// NewSource wires the service host and square size; size defaults to 512.
func NewSource(host string, size int) *Source {
	if size <= 0 {
		size = 512
	}
	return &Source{
		host: host,
		size: size,
		seed: func() int { return rand.IntN(SeedRange) },
	}
}

// WithSeed replaces the seed generator (tests).
func (s *Source) WithSeed(seed func() int) *Source {
	s.seed = seed
	return s
}

// NextURL draws a fresh seed and returns https://{host}/seed/{seed}/{size}/{size}.
func (s *Source) NextURL() (string, error) {
	return buildImageURL(s.host, s.seed(), s.size, s.size)
}

func buildImageURL(host string, seed, width, height int) (string, error) {
	if host == "" {
		return "", fmt.Errorf("placeholder host is not configured")
	}
	if seed < 0 || seed >= SeedRange {
		return "", fmt.Errorf("seed %d out of range", seed)
	}

	u := url.URL{
		Scheme: "https",
		Host:   host,
		Path:   "/",
	}
	u = *u.JoinPath("seed", strconv.Itoa(seed), strconv.Itoa(width), strconv.Itoa(height))
	return u.String(), nil
}
