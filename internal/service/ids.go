package service

import (
	"crypto/rand"
	"encoding/hex"
)

func newSourceID() string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
