package wallet

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sync"
)

// LocalSigner derives transaction references from an HMAC over the prepared
// payload and a monotonically increasing nonce. It stands in for a real
// wallet; key custody is outside this process.
type LocalSigner struct {
	secret []byte
	nonce  uint64
	mu     sync.Mutex
}

func NewLocalSigner(secret string) (*LocalSigner, error) {
	if secret == "" {
		return nil, fmt.Errorf("signer secret must not be empty")
	}
	return &LocalSigner{secret: []byte(secret)}, nil
}

func (s *LocalSigner) Sign(ctx context.Context, payload []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	s.nonce++
	nonce := s.nonce
	s.mu.Unlock()

	var nonceBuf [8]byte
	binary.BigEndian.PutUint64(nonceBuf[:], nonce)

	h := hmac.New(sha256.New, s.secret)
	h.Write(nonceBuf[:])
	h.Write(payload)
	return "0x" + hex.EncodeToString(h.Sum(nil)), nil
}
