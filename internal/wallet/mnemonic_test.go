package wallet

import (
	"errors"
	"strings"
	"testing"
)

func TestGenerate(t *testing.T) {
	g := NewMnemonicGenerator()

	tests := []struct {
		strength int
		words    int
	}{
		{Strength128, 12},
		{Strength256, 24},
	}
	for _, tt := range tests {
		gen, err := g.Generate(tt.strength)
		if err != nil {
			t.Fatalf("Generate(%d) error: %v", tt.strength, err)
		}
		if n := len(strings.Fields(gen.Phrase)); n != tt.words {
			t.Errorf("Generate(%d) word count = %d, want %d", tt.strength, n, tt.words)
		}
		if gen.Strategy != StrategyTylerSmith {
			t.Errorf("Generate(%d) strategy = %q, want %q", tt.strength, gen.Strategy, StrategyTylerSmith)
		}
		if !g.Validate(gen.Phrase) {
			t.Errorf("Generate(%d) produced a phrase that does not validate", tt.strength)
		}
	}
}

func TestGenerate_Unique(t *testing.T) {
	g := NewMnemonicGenerator()
	m1, err := g.Generate(Strength128)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	m2, err := g.Generate(Strength128)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if m1.Phrase == m2.Phrase {
		t.Error("two generated mnemonics should not be identical")
	}
}

func TestGenerate_InvalidStrength(t *testing.T) {
	for _, bits := range []int{0, 64, 160, 192, 512} {
		_, err := NewMnemonicGenerator().Generate(bits)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("Generate(%d) error = %v, want *ValidationError", bits, err)
		}
	}
}

func TestGenerate_FallsBackToSecondary(t *testing.T) {
	calls := map[string]int{}
	g := &MnemonicGenerator{impls: []bip39Impl{
		{name: "primary", generate: func(int) (string, error) {
			calls["primary"]++
			panic("entropy source gone")
		}},
		{name: "secondary", generate: func(bits int) (string, error) {
			calls["secondary"]++
			return cosmosImpl.generate(bits)
		}},
	}}

	gen, err := g.Generate(Strength128)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if gen.Strategy != "secondary" {
		t.Errorf("Strategy = %q, want secondary", gen.Strategy)
	}
	if calls["primary"] != 1 || calls["secondary"] != 1 {
		t.Errorf("calls = %v, want each strategy once", calls)
	}
	if !NewMnemonicGenerator().Validate(gen.Phrase) {
		t.Error("secondary phrase does not validate")
	}
}

func TestGenerate_AllFailRefusesFixedPhrase(t *testing.T) {
	fail := func(int) (string, error) { return "", errors.New("broken") }
	g := &MnemonicGenerator{impls: []bip39Impl{
		{name: "a", generate: fail},
		{name: "b", generate: fail},
	}}

	tests := []struct {
		strength int
		fixed    string
	}{
		{Strength128, fixedPhrase12},
		{Strength256, fixedPhrase24},
	}
	for _, tt := range tests {
		gen, err := g.Generate(tt.strength)
		if !errors.Is(err, ErrInsecureFallback) {
			t.Fatalf("Generate(%d) error = %v, want ErrInsecureFallback", tt.strength, err)
		}
		if gen.Phrase != "" {
			t.Errorf("Generate(%d) returned phrase %q on failure", tt.strength, gen.Phrase)
		}
		var derr *DerivationError
		if !errors.As(err, &derr) {
			t.Fatalf("error type = %T, want *DerivationError", err)
		}
		if len(derr.Failures) != 2 {
			t.Errorf("Failures = %d, want 2", len(derr.Failures))
		}
		if derr.FixedPhrase != tt.fixed {
			t.Errorf("FixedPhrase = %q, want %q", derr.FixedPhrase, tt.fixed)
		}
	}
}

func TestValidate(t *testing.T) {
	g := NewMnemonicGenerator()

	tests := []struct {
		name     string
		mnemonic string
		valid    bool
	}{
		{"12 words", testMnemonic, true},
		{
			"24 words",
			"abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon " +
				"abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon art",
			true,
		},
		{"extra whitespace and case", "  Abandon abandon ABANDON abandon abandon abandon\tabandon abandon abandon abandon abandon about ", true},
		{"bad checksum", "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon", false},
		{"checksum fails for listed phrase", "abandon ability able about above absent absorb abstract absurd abuse access accident", false},
		{"unknown word", "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon zzzz", false},
		{
			"15 words",
			"abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon address",
			false,
		},
		{"too few words", "abandon about", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.Validate(tt.mnemonic); got != tt.valid {
				t.Errorf("Validate() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestValidate_PrimaryTrustedOnlyWhenTrue(t *testing.T) {
	tests := []struct {
		name      string
		primary   func(string) (bool, error)
		secondary func(string) (bool, error)
		want      bool
		secCalls  int
	}{
		{
			name:      "primary true",
			primary:   func(string) (bool, error) { return true, nil },
			secondary: func(string) (bool, error) { return false, nil },
			want:      true,
			secCalls:  0,
		},
		{
			name:      "primary false defers",
			primary:   func(string) (bool, error) { return false, nil },
			secondary: func(string) (bool, error) { return true, nil },
			want:      true,
			secCalls:  1,
		},
		{
			name:      "primary panics defers",
			primary:   func(string) (bool, error) { panic("boom") },
			secondary: func(string) (bool, error) { return true, nil },
			want:      true,
			secCalls:  1,
		},
		{
			name:      "secondary false returned",
			primary:   func(string) (bool, error) { return false, errors.New("nope") },
			secondary: func(string) (bool, error) { return false, nil },
			want:      false,
			secCalls:  1,
		},
		{
			name:      "secondary panics",
			primary:   func(string) (bool, error) { return false, nil },
			secondary: func(string) (bool, error) { panic("boom") },
			want:      false,
			secCalls:  1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			secCalls := 0
			g := &MnemonicGenerator{impls: []bip39Impl{
				{name: "primary", validate: tt.primary},
				{name: "secondary", validate: func(p string) (bool, error) {
					secCalls++
					return tt.secondary(p)
				}},
			}}
			if got := g.Validate(testMnemonic); got != tt.want {
				t.Errorf("Validate() = %v, want %v", got, tt.want)
			}
			if secCalls != tt.secCalls {
				t.Errorf("secondary called %d times, want %d", secCalls, tt.secCalls)
			}
		})
	}
}

func TestCosmosValidateChecksChecksum(t *testing.T) {
	ok, err := cosmosImpl.validate("abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon")
	if ok || err == nil {
		t.Errorf("cosmos validate = %v, %v; want false with error", ok, err)
	}
	ok, err = cosmosImpl.validate(testMnemonic)
	if !ok || err != nil {
		t.Errorf("cosmos validate = %v, %v; want true", ok, err)
	}
}
