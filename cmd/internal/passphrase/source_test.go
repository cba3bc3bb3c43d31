package passphrase

import (
	"errors"
	"testing"
)

func TestSourcePrefersEnvironment(t *testing.T) {
	t.Setenv("STAKEVAULT_TEST_PASSPHRASE", "from-env")
	calls := 0
	src := NewSource("STAKEVAULT_TEST_PASSPHRASE", "signer").WithPrompt(func(string) (string, error) {
		calls++
		return "prompted", nil
	})
	got, err := src.Get()
	if err != nil || got != "from-env" {
		t.Fatalf("unexpected passphrase %q err=%v", got, err)
	}
	if calls != 0 {
		t.Fatalf("prompt should not run when env is set")
	}
}

func TestSourceRejectsEmptyEnvironment(t *testing.T) {
	t.Setenv("STAKEVAULT_TEST_PASSPHRASE", "  ")
	if _, err := NewSource("STAKEVAULT_TEST_PASSPHRASE", "").Get(); err == nil {
		t.Fatalf("expected empty env passphrase to be rejected")
	}
}

func TestSourceCachesPrompt(t *testing.T) {
	calls := 0
	src := NewSource("", "signer").WithPrompt(func(label string) (string, error) {
		calls++
		if label != "signer" {
			t.Fatalf("unexpected label %q", label)
		}
		return "secret", nil
	})
	for i := 0; i < 2; i++ {
		got, err := src.Get()
		if err != nil || got != "secret" {
			t.Fatalf("unexpected passphrase %q err=%v", got, err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected a single prompt, got %d", calls)
	}
}

func TestSourcePropagatesPromptFailure(t *testing.T) {
	src := NewSource("STAKEVAULT_UNSET_PASSPHRASE", "signer").WithPrompt(func(string) (string, error) {
		return "", errNoTerminal
	})
	if _, err := src.Get(); !errors.Is(err, errNoTerminal) {
		t.Fatalf("expected prompt error, got %v", err)
	}
	blank := NewSource("", "signer").WithPrompt(func(string) (string, error) { return " ", nil })
	if _, err := blank.Get(); err == nil {
		t.Fatalf("expected blank passphrase to be rejected")
	}
}
