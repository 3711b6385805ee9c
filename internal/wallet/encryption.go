package wallet

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Encryption constants.
const (
	SaltSize = 32
	// Encrypted format: [salt(32)][memory(4)][iterations(4)][parallelism(1)][nonce(24)][ciphertext...]
	headerSize = SaltSize + 4 + 4 + 1
)

// EncryptionParams holds Argon2id parameters.
type EncryptionParams struct {
	Memory      uint32 // in KiB
	Iterations  uint32
	Parallelism uint8
}

// DefaultParams returns recommended Argon2id parameters.
func DefaultParams() EncryptionParams {
	return EncryptionParams{
		Memory:      64 * 1024, // 64 MB
		Iterations:  3,
		Parallelism: 4,
	}
}

// Upper bounds on Argon2id cost. Envelope headers are untrusted input, so
// decrypting one may never cost more than these.
const (
	maxMemoryKiB   = 256 * 1024 // 256 MiB
	maxIterations  = 10
	maxParallelism = 16
	minMemoryPerLn = 8
)

// Validate checks that the parameters are usable by Argon2id.
func (p EncryptionParams) Validate() error {
	switch {
	case p.Parallelism == 0:
		return errors.New("argon2 parallelism must be at least 1")
	case p.Parallelism > maxParallelism:
		return fmt.Errorf("argon2 parallelism %d exceeds %d", p.Parallelism, maxParallelism)
	case p.Iterations == 0:
		return errors.New("argon2 iterations must be at least 1")
	case p.Iterations > maxIterations:
		return fmt.Errorf("argon2 iterations %d exceed %d", p.Iterations, maxIterations)
	case p.Memory < minMemoryPerLn*uint32(p.Parallelism):
		return fmt.Errorf("argon2 memory %d KiB below %d KiB per lane", p.Memory, minMemoryPerLn)
	case p.Memory > maxMemoryKiB:
		return fmt.Errorf("argon2 memory %d KiB exceeds %d KiB", p.Memory, maxMemoryKiB)
	}
	return nil
}

// deriveKey uses Argon2id to derive a 32-byte encryption key from password and salt.
func deriveKey(password, salt []byte, params EncryptionParams) []byte {
	return argon2.IDKey(
		password,
		salt,
		params.Iterations,
		params.Memory,
		params.Parallelism,
		chacha20poly1305.KeySize,
	)
}

// Encrypt encrypts data with password using Argon2id + XChaCha20-Poly1305.
//
// Output format: salt(32) | memory(4) | iterations(4) | parallelism(1) | nonce(24) | ciphertext
func Encrypt(data, password []byte, params EncryptionParams) ([]byte, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	// Generate random salt.
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	// Derive encryption key.
	key := deriveKey(password, salt, params)

	// Create XChaCha20-Poly1305 AEAD.
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	// Generate random nonce.
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	// Encrypt.
	ciphertext := aead.Seal(nil, nonce, data, nil)

	// Build output: salt | params | nonce | ciphertext
	out := make([]byte, 0, headerSize+len(nonce)+len(ciphertext))
	out = append(out, salt...)
	out = binary.LittleEndian.AppendUint32(out, params.Memory)
	out = binary.LittleEndian.AppendUint32(out, params.Iterations)
	out = append(out, params.Parallelism)
	out = append(out, nonce...)
	out = append(out, ciphertext...)

	zero(key)

	return out, nil
}

// Decrypt decrypts data encrypted by Encrypt with the given password.
func Decrypt(encrypted, password []byte) ([]byte, error) {
	nonceSize := chacha20poly1305.NonceSizeX
	minSize := headerSize + nonceSize + chacha20poly1305.Overhead
	if len(encrypted) < minSize {
		return nil, fmt.Errorf("encrypted data too short: %d bytes, need at least %d", len(encrypted), minSize)
	}

	// Parse header.
	salt := encrypted[:SaltSize]
	memory := binary.LittleEndian.Uint32(encrypted[SaltSize:])
	iterations := binary.LittleEndian.Uint32(encrypted[SaltSize+4:])
	parallelism := encrypted[SaltSize+8]

	params := EncryptionParams{
		Memory:      memory,
		Iterations:  iterations,
		Parallelism: parallelism,
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("bad header: %w", err)
	}

	// Parse nonce and ciphertext.
	nonce := encrypted[headerSize : headerSize+nonceSize]
	ciphertext := encrypted[headerSize+nonceSize:]

	// Derive key.
	key := deriveKey(password, salt, params)

	// Create AEAD and decrypt.
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		zero(key)
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	zero(key)

	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}

	return plaintext, nil
}

// SeedCipher encrypts seed phrases for storage. The output is the
// standard base64 encoding of the Encrypt envelope.
type SeedCipher struct {
	params EncryptionParams
}

// NewSeedCipher creates a cipher using params for new envelopes.
// Decryption always uses the parameters stored in the envelope.
func NewSeedCipher(params EncryptionParams) *SeedCipher {
	return &SeedCipher{params: params}
}

// EncryptSeedPhrase encrypts phrase with password.
func (c *SeedCipher) EncryptSeedPhrase(phrase, password string) (string, error) {
	if password == "" {
		return "", &EncryptionError{Err: errors.New("empty password")}
	}
	if phrase == "" {
		return "", &EncryptionError{Err: errors.New("empty seed phrase")}
	}
	out, err := Encrypt([]byte(phrase), []byte(password), c.params)
	if err != nil {
		return "", &EncryptionError{Err: err}
	}
	return base64.StdEncoding.EncodeToString(out), nil
}

// DecryptSeedPhrase reverses EncryptSeedPhrase. A wrong password, a
// tampered envelope or malformed input yields a *DecryptionError.
func (c *SeedCipher) DecryptSeedPhrase(ciphertext, password string) (string, error) {
	if password == "" {
		return "", &DecryptionError{Err: errors.New("empty password")}
	}
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", &DecryptionError{Err: fmt.Errorf("decode envelope: %w", err)}
	}
	plaintext, err := Decrypt(raw, []byte(password))
	if err != nil {
		return "", &DecryptionError{Err: err}
	}
	defer zero(plaintext)
	if !utf8.Valid(plaintext) {
		return "", &DecryptionError{Err: errors.New("plaintext is not valid UTF-8")}
	}
	return string(plaintext), nil
}
