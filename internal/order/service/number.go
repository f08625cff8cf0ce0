package service

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// NumberGenerator issues human-facing order numbers.
type NumberGenerator interface {
	Next(now time.Time) string
}

type ulidNumbers struct{}

// NewNumberGenerator returns a generator of "ORD-<ULID>" numbers. ULIDs sort
// by creation time and carry 80 random bits, so concurrent placements do not
// collide in practice; the unique index catches the rest.
func NewNumberGenerator() NumberGenerator {
	return ulidNumbers{}
}

func (ulidNumbers) Next(now time.Time) string {
	return "ORD-" + ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
}
