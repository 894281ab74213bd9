package transcript

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// KeySize is the size in bytes of derived keys and the minimum size of the
// global secret.
const KeySize = 32

// sealedVersion is prepended to every sealed blob and authenticated as AAD.
const sealedVersion byte = 0x01

// Overhead is the per-field byte overhead: version + nonce + tag.
const Overhead = 1 + chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead

// HKDF info strings and the BLAKE3 domain tag. Changing any of them
// invalidates all stored data.
var (
	hkdfInfoUserKey      = []byte("sessionmesh.transcript.user.v1")
	hkdfInfoReferenceKey = []byte("sessionmesh.transcript.ref.v1")
	referenceDomainUser  = []byte("sessionmesh.transcript.ref.user.v1")
)

// Kind distinguishes the sealed fields so they cannot be swapped.
type Kind byte

const (
	KindInput Kind = iota + 1
	KindResponse
	KindSummary
)

// Sealer encrypts and decrypts transcript fields under per-user keys.
// It is safe for concurrent use.
type Sealer struct {
	secret       []byte
	referenceKey []byte
}

// NewSealer creates a Sealer from the global secret, which must be at least
// KeySize bytes. The secret is copied.
func NewSealer(secret []byte) (*Sealer, error) {
	if len(secret) < KeySize {
		return nil, fmt.Errorf("transcript secret must be at least %d bytes, got %d", KeySize, len(secret))
	}
	s := &Sealer{secret: append([]byte(nil), secret...)}
	refKey, err := deriveKey(s.secret, hkdfInfoReferenceKey)
	if err != nil {
		return nil, err
	}
	s.referenceKey = refKey
	return s, nil
}

// Reference returns the opaque storage key for userID. It is deterministic
// for a given secret and reveals nothing about the user without it.
func (s *Sealer) Reference(userID string) string {
	hasher, err := blake3.NewKeyed(s.referenceKey)
	if err != nil {
		panic("transcript: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(referenceDomainUser)
	hasher.Write([]byte(userID))
	return hex.EncodeToString(hasher.Sum(nil))
}

// Seal encrypts plaintext for the given user, session and kind:
//
//	[Version: 1 byte] [Nonce: 24 bytes] [Ciphertext+Tag: N+16 bytes]
func (s *Sealer) Seal(userID, sessionID string, kind Kind, plaintext []byte) ([]byte, error) {
	key, err := s.userKey(userID)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}

	var nonce [chacha20poly1305.NonceSizeX]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("generating random nonce: %w", err)
	}

	output := make([]byte, 1+len(nonce), 1+len(nonce)+len(plaintext)+aead.Overhead())
	output[0] = sealedVersion
	copy(output[1:], nonce[:])
	return aead.Seal(output, nonce[:], plaintext, buildAAD(sealedVersion, kind, userID, sessionID)), nil
}

// Open decrypts a blob produced by Seal with the same user, session and kind.
func (s *Sealer) Open(userID, sessionID string, kind Kind, blob []byte) ([]byte, error) {
	if len(blob) < Overhead {
		return nil, fmt.Errorf("sealed blob is %d bytes, minimum is %d", len(blob), Overhead)
	}
	if blob[0] != sealedVersion {
		return nil, fmt.Errorf("sealed blob version %d is not supported", blob[0])
	}
	key, err := s.userKey(userID)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}
	nonce := blob[1 : 1+chacha20poly1305.NonceSizeX]
	plaintext, err := aead.Open(nil, nonce, blob[1+chacha20poly1305.NonceSizeX:], buildAAD(blob[0], kind, userID, sessionID))
	if err != nil {
		return nil, fmt.Errorf("AEAD decryption failed (wrong key, tampered data, or mismatched record): %w", err)
	}
	return plaintext, nil
}

func (s *Sealer) userKey(userID string) ([]byte, error) {
	info := make([]byte, 0, len(hkdfInfoUserKey)+len(userID))
	info = append(info, hkdfInfoUserKey...)
	info = append(info, userID...)
	return deriveKey(s.secret, info)
}

func deriveKey(inputKeyMaterial, info []byte) ([]byte, error) {
	reader := hkdf.New(sha256.New, inputKeyMaterial, nil, info)
	derived := make([]byte, KeySize)
	if _, err := io.ReadFull(reader, derived); err != nil {
		return nil, fmt.Errorf("HKDF key derivation failed: %w", err)
	}
	return derived, nil
}

// buildAAD encodes version, kind and the length-prefixed user and session IDs.
func buildAAD(version byte, kind Kind, userID, sessionID string) []byte {
	aad := make([]byte, 0, 2+2*binary.MaxVarintLen64+len(userID)+len(sessionID))
	aad = append(aad, version, byte(kind))
	aad = binary.AppendUvarint(aad, uint64(len(userID)))
	aad = append(aad, userID...)
	aad = binary.AppendUvarint(aad, uint64(len(sessionID)))
	return append(aad, sessionID...)
}
