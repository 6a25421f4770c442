// Package notify delivers rendered digests to external channels.
package notify

import (
	"errors"
	"fmt"
)

// Channel names a delivery channel. Each channel selects a renderer and a
// transport through a Route.
type Channel string

const (
	// Discord is the long-form channel: one webhook message per digest.
	Discord Channel = "Discord"
	// X is the length-constrained channel: 280 weighted characters per post.
	X Channel = "X"
)

var ErrUnknownChannel = errors.New("notification must be 'Discord' or 'X'")

// ParseChannel maps a request value onto a Channel. Matching is exact.
func ParseChannel(name string) (Channel, error) {
	switch ch := Channel(name); ch {
	case Discord, X:
		return ch, nil
	default:
		return "", fmt.Errorf("%w: got %q", ErrUnknownChannel, name)
	}
}

func (c Channel) String() string {
	return string(c)
}
