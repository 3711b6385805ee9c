package wallet

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Every typed error below unwraps to one of these so that
// callers can match with errors.Is.
var (
	ErrValidation       = errors.New("validation failed")
	ErrSeedDerivation   = errors.New("seed derivation failed")
	ErrKeyDerivation    = errors.New("key derivation failed")
	ErrPathDerivation   = errors.New("path derivation failed")
	ErrEncryption       = errors.New("encryption failed")
	ErrDecrypt          = errors.New("decryption failed")
	ErrPersistence      = errors.New("persistence failed")
	ErrInsecureFallback = errors.New("mnemonic generation exhausted all implementations")
	ErrNotFound         = errors.New("wallet not found")
)

// ValidationError reports malformed caller input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// StrategyFailure is the failure of one named strategy.
type StrategyFailure struct {
	Strategy string
	Err      error
}

// DerivationError reports that every strategy for an operation failed.
// Kind is the sentinel the error matches (ErrSeedDerivation,
// ErrKeyDerivation or ErrInsecureFallback).
type DerivationError struct {
	Op       string
	Kind     error
	Failures []StrategyFailure

	// FixedPhrase is set only for ErrInsecureFallback. It is the publicly
	// known phrase older clients handed out when generation failed, and is
	// never returned as a usable mnemonic.
	FixedPhrase string
}

func (e *DerivationError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": all strategies failed")
	for i, f := range e.Failures {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s: %v", f.Strategy, f.Err)
	}
	return b.String()
}

func (e *DerivationError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures)+1)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	for _, f := range e.Failures {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errs
}

// KeyDerivationError reports malformed or unusable key material.
type KeyDerivationError struct {
	Op  string
	Err error
}

func (e *KeyDerivationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *KeyDerivationError) Unwrap() []error { return compact(ErrKeyDerivation, e.Err) }

// PathDerivationError reports a malformed path or a symbol missing from
// the path table.
type PathDerivationError struct {
	Symbol string
	Path   string
	Err    error
}

func (e *PathDerivationError) Error() string {
	switch {
	case e.Symbol != "" && e.Path != "":
		return fmt.Sprintf("derive %s at %s: %v", e.Symbol, e.Path, e.Err)
	case e.Symbol != "":
		return fmt.Sprintf("derive %s: %v", e.Symbol, e.Err)
	default:
		return fmt.Sprintf("derive path %q: %v", e.Path, e.Err)
	}
}

func (e *PathDerivationError) Unwrap() []error { return compact(ErrPathDerivation, e.Err) }

// EncryptionError reports a failure to encrypt a seed phrase.
type EncryptionError struct {
	Err error
}

func (e *EncryptionError) Error() string { return fmt.Sprintf("encrypt seed phrase: %v", e.Err) }

func (e *EncryptionError) Unwrap() []error { return compact(ErrEncryption, e.Err) }

// DecryptionError reports a wrong password, a tampered ciphertext or a
// malformed envelope. The causes are deliberately not distinguished.
type DecryptionError struct {
	Err error
}

func (e *DecryptionError) Error() string { return fmt.Sprintf("decrypt seed phrase: %v", e.Err) }

func (e *DecryptionError) Unwrap() []error { return compact(ErrDecrypt, e.Err) }

// PersistenceError reports a record store failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *PersistenceError) Unwrap() []error { return compact(ErrPersistence, e.Err) }

func compact(errs ...error) []error {
	out := errs[:0]
	for _, err := range errs {
		if err != nil {
			out = append(out, err)
		}
	}
	return out
}
