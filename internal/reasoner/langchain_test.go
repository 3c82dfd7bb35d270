package reasoner

import "testing"

func TestConfig_Validate(t *testing.T) {
	t.Run("missing model", func(t *testing.T) {
		if err := (Config{}).Validate(); err == nil {
			t.Fatal("expected error for missing model")
		}
	})

	t.Run("model set", func(t *testing.T) {
		if err := (Config{Model: "gpt-4o-mini"}).Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestNewLangchainReasoner_RequiresModel(t *testing.T) {
	if _, err := NewLangchainReasoner(Config{}); err == nil {
		t.Fatal("expected error when model is empty")
	}
}
