// Package xid generates the prefixed identifiers used throughout the stores:
// a type prefix, creation nanos for rough chronological ordering, and a
// random suffix so concurrent creates never collide.
package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Prefixes for the entity types the stores mint ids for.
const (
	Product   = "prod"
	QuickSale = "qs"
	Sale      = "sale"
)

func New(prefix string) string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixNano(), hex.EncodeToString(buf))
}
