package wallet

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"
)

func TestToSeed_Vector(t *testing.T) {
	seed, err := NewSeedDeriver().ToSeed(testMnemonic)
	if err != nil {
		t.Fatalf("ToSeed() error: %v", err)
	}
	want := "5eb00bbddcf069084889a8ab9155568165f5c453ccb85e70811aaeed6f6a5fc1" +
		"9a5ac40b389cd370d086206dec8aa6c43daea6690f20ad3d8d48b2d2ce9e38e4"
	if got := hex.EncodeToString(seed.Bytes); got != want {
		t.Errorf("seed = %s, want %s", got, want)
	}
	if seed.Strategy != StrategyTylerSmith {
		t.Errorf("Strategy = %q, want %q", seed.Strategy, StrategyTylerSmith)
	}
	if len(seed.Bytes) != SeedSize {
		t.Errorf("seed length = %d, want %d", len(seed.Bytes), SeedSize)
	}
	if !seed.Standard() {
		t.Error("BIP-39 seed should be standard")
	}
}

func TestToSeed_Deterministic(t *testing.T) {
	d := NewSeedDeriver()
	s1, err := d.ToSeed(testMnemonic)
	if err != nil {
		t.Fatalf("ToSeed() error: %v", err)
	}
	s2, err := d.ToSeed(testMnemonic)
	if err != nil {
		t.Fatalf("ToSeed() error: %v", err)
	}
	if !bytes.Equal(s1.Bytes, s2.Bytes) {
		t.Error("same mnemonic should produce same seed")
	}
}

func TestToSeed_LibrariesAgree(t *testing.T) {
	tyler, err := defaultSeedStrategies(testMnemonic)[0].Run()
	if err != nil {
		t.Fatalf("tyler-smith seed error: %v", err)
	}
	cosmos, err := defaultSeedStrategies(testMnemonic)[1].Run()
	if err != nil {
		t.Fatalf("cosmos seed error: %v", err)
	}
	if !bytes.Equal(tyler, cosmos) {
		t.Error("BIP-39 implementations disagree on a standard mnemonic")
	}
}

func TestToSeed_InvalidMnemonic(t *testing.T) {
	_, err := NewSeedDeriver().ToSeed("abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon")
	if !errors.Is(err, ErrSeedDerivation) {
		t.Fatalf("error = %v, want ErrSeedDerivation", err)
	}
	var derr *DerivationError
	if !errors.As(err, &derr) {
		t.Fatalf("error type = %T, want *DerivationError", err)
	}
	want := []string{StrategyTylerSmith, StrategyCosmos, StrategyPrivateKey}
	if len(derr.Failures) != len(want) {
		t.Fatalf("Failures = %d, want %d", len(derr.Failures), len(want))
	}
	for i, name := range want {
		if derr.Failures[i].Strategy != name {
			t.Errorf("Failures[%d] = %q, want %q", i, derr.Failures[i].Strategy, name)
		}
	}
}

func TestToSeed_Empty(t *testing.T) {
	_, err := NewSeedDeriver().ToSeed("   ")
	if !errors.Is(err, ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}

func TestToSeed_StrategyOrder(t *testing.T) {
	tests := []struct {
		name       string
		fail       map[string]bool
		wantWinner string
		wantCalls  []string
	}{
		{"first wins", nil, "a", []string{"a"}},
		{"second wins", map[string]bool{"a": true}, "b", []string{"a", "b"}},
		{"third wins", map[string]bool{"a": true, "b": true}, StrategyPrivateKey, []string{"a", "b", StrategyPrivateKey}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls []string
			mk := func(name string) Strategy[[]byte] {
				return Strategy[[]byte]{Name: name, Run: func() ([]byte, error) {
					calls = append(calls, name)
					if tt.fail[name] {
						return nil, errors.New(name + " failed")
					}
					return bytes.Repeat([]byte{1}, 32), nil
				}}
			}
			d := &SeedDeriver{strategies: func(string) []Strategy[[]byte] {
				return []Strategy[[]byte]{mk("a"), mk("b"), mk(StrategyPrivateKey)}
			}}

			seed, err := d.ToSeed(testMnemonic)
			if err != nil {
				t.Fatalf("ToSeed() error: %v", err)
			}
			if seed.Strategy != tt.wantWinner {
				t.Errorf("Strategy = %q, want %q", seed.Strategy, tt.wantWinner)
			}
			if seed.Standard() == (tt.wantWinner == StrategyPrivateKey) {
				t.Errorf("Standard() = %v for strategy %q", seed.Standard(), seed.Strategy)
			}
			if len(calls) != len(tt.wantCalls) {
				t.Fatalf("calls = %v, want %v", calls, tt.wantCalls)
			}
			for i := range calls {
				if calls[i] != tt.wantCalls[i] {
					t.Errorf("calls = %v, want %v", calls, tt.wantCalls)
				}
			}
		})
	}
}

func TestPrivateKeySeed_MatchesDefaultPathKey(t *testing.T) {
	got, err := privateKeySeed(testMnemonic)
	if err != nil {
		t.Fatalf("privateKeySeed() error: %v", err)
	}
	master, _ := NewMasterKey(testSeed(t))
	want, _ := DeriveChild(master, DefaultEVMPath)
	if !bytes.Equal(got, want.PrivateKeyBytes()) {
		t.Error("non-standard seed should equal the default path private key")
	}
}

func TestSeed_Zero(t *testing.T) {
	s := Seed{Bytes: []byte{1, 2, 3}}
	s.Zero()
	if !bytes.Equal(s.Bytes, []byte{0, 0, 0}) {
		t.Errorf("Zero() left %v", s.Bytes)
	}
}
