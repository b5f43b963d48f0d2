package models

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// TradeIDPattern matches comments of trades managed by this engine, e.g.
// "buy_1a2b3c4d_idx0". The hash is the first eight hex characters of a
// lowercase UUID; anything else on the book is someone else's trade.
var TradeIDPattern = regexp.MustCompile(`^(buy|sell)_[0-9a-f]{8}_idx\d+$`)

// MintSessionID returns a fresh opaque session id for the side.
func MintSessionID(side Side) string {
	return fmt.Sprintf("%s_%s", side, uuid.New().String()[:8])
}

// SessionComment builds the order comment for one strata of a session.
func SessionComment(sessionID string, index int) string {
	return fmt.Sprintf("%s_idx%d", sessionID, index)
}

// CommentIndex extracts the strata index from a managed comment. The second
// return is false when the comment does not carry exactly one "_idx" part.
func CommentIndex(comment string) (int, bool) {
	parts := strings.Split(comment, "_idx")
	if len(parts) != 2 {
		return 0, false
	}
	idx, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	return idx, true
}

// CommentSide returns which side prefix a managed comment carries. It does
// not validate the full grammar; callers match TradeIDPattern first.
func CommentSide(comment string) (Side, bool) {
	switch {
	case strings.HasPrefix(comment, "buy_"):
		return SideBuy, true
	case strings.HasPrefix(comment, "sell_"):
		return SideSell, true
	default:
		return "", false
	}
}
