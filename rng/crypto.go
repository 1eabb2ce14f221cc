package rng

import (
	"crypto/rand"
	"encoding/binary"
)

// cryptoReseedEvery bounds how many draws a CryptoSource serves from one
// buffered crypto/rand read before reseeding, the same "reseeded stream
// cipher" shape spec.md §5 asks for in production: we don't hit the OS CSPRNG
// on every single draw, but we never stretch one seed indefinitely either.
const cryptoReseedEvery = 1024

// CryptoSource is the production Source: a Xoshiro256 core reseeded
// periodically from crypto/rand so that long-running connections don't rely
// on a single predictable seed, while still paying the non-deterministic
// crypto/rand cost only occasionally rather than per draw. Grounded on the
// jitter source in the teacher's retry.go, which reads crypto/rand via
// math/big for unbiased backoff jitter.
type CryptoSource struct {
	core  *Xoshiro256
	draws int
}

// NewCryptoSource creates a CryptoSource, seeding the core immediately from
// crypto/rand.
func NewCryptoSource() (*CryptoSource, error) {
	c := &CryptoSource{}
	if err := c.reseed(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *CryptoSource) reseed() error {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return err
	}
	c.core = NewXoshiro256(binary.LittleEndian.Uint64(buf[:]))
	c.draws = 0
	return nil
}

func (c *CryptoSource) maybeReseed() {
	c.draws++
	if c.draws < cryptoReseedEvery {
		return
	}
	// Best effort: if crypto/rand fails (extremely unlikely on any real
	// host), keep using the existing core rather than panicking from a
	// sampling call.
	_ = c.reseed()
}

// Uint64 returns the next 64-bit output, reseeding periodically.
func (c *CryptoSource) Uint64() uint64 {
	c.maybeReseed()
	return c.core.Uint64()
}

// Float64 returns a uniform value in [0, 1), reseeding periodically.
func (c *CryptoSource) Float64() float64 {
	c.maybeReseed()
	return c.core.Float64()
}
