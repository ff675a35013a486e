package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/AlibekovAA/taskforge/backend/internal/common/constants"
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, digest string) bool
	NeedsRehash(digest string) bool
}

type Argon2Params struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
}

func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		MemoryKiB:   constants.Argon2DefaultMemoryKiB,
		Iterations:  constants.Argon2DefaultIterations,
		Parallelism: constants.Argon2DefaultParallelism,
	}
}

var errInvalidDigest = errors.New("invalid argon2id digest")

// Argon2Hasher produces PHC-formatted argon2id digests:
// $argon2id$v=19$m=<KiB>,t=<iterations>,p=<parallelism>$<salt>$<key>
type Argon2Hasher struct {
	params  Argon2Params
	keyLen  uint32
	saltLen int
}

func NewArgon2Hasher(params Argon2Params) (*Argon2Hasher, error) {
	if params.MemoryKiB == 0 || params.Iterations == 0 || params.Parallelism == 0 {
		return nil, fmt.Errorf("argon2 parameters must be positive: m=%d t=%d p=%d",
			params.MemoryKiB, params.Iterations, params.Parallelism)
	}
	if params.MemoryKiB < 8*uint32(params.Parallelism) {
		return nil, fmt.Errorf("argon2 memory must be at least 8*parallelism KiB (got m=%d p=%d)",
			params.MemoryKiB, params.Parallelism)
	}
	return &Argon2Hasher{
		params:  params,
		keyLen:  constants.Argon2KeyLength,
		saltLen: constants.Argon2SaltLength,
	}, nil
}

func (h *Argon2Hasher) Hash(password string) (string, error) {
	salt := make([]byte, h.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Iterations, h.params.MemoryKiB, h.params.Parallelism, h.keyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.MemoryKiB, h.params.Iterations, h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify recomputes the key with the parameters stored in digest, so digests
// produced under older settings keep verifying.
func (h *Argon2Hasher) Verify(password, digest string) bool {
	d, err := decodeDigest(digest)
	if err != nil {
		return false
	}

	key := argon2.IDKey([]byte(password), d.salt, d.params.Iterations, d.params.MemoryKiB, d.params.Parallelism, uint32(len(d.key)))
	return subtle.ConstantTimeCompare(key, d.key) == 1
}

func (h *Argon2Hasher) NeedsRehash(digest string) bool {
	d, err := decodeDigest(digest)
	if err != nil {
		return true
	}
	return d.params != h.params || uint32(len(d.key)) != h.keyLen
}

type decodedDigest struct {
	params Argon2Params
	salt   []byte
	key    []byte
}

func decodeDigest(digest string) (*decodedDigest, error) {
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return nil, errInvalidDigest
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, errInvalidDigest
	}

	var p Argon2Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.MemoryKiB, &p.Iterations, &p.Parallelism); err != nil {
		return nil, errInvalidDigest
	}
	if p.MemoryKiB == 0 || p.Iterations == 0 || p.Parallelism == 0 {
		return nil, errInvalidDigest
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return nil, errInvalidDigest
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return nil, errInvalidDigest
	}

	return &decodedDigest{params: p, salt: salt, key: key}, nil
}
