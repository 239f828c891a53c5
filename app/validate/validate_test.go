package validate

import (
	"testing"

	"overlaytranslate/app/types"
)

func tb(text string, confidence float64, lang string) types.TextBlock {
	return types.TextBlock{Text: text, Confidence: confidence, Language: lang}
}

func TestAcceptRejectsLowConfidence(t *testing.T) {
	v := New(DefaultConfig())
	ok, reason := v.Accept(tb("hello", 0.3, "en"))
	if ok || reason == "" {
		t.Fatalf("expected rejection for low confidence, got ok=%v reason=%q", ok, reason)
	}
}

func TestAcceptRejectsEmptyText(t *testing.T) {
	v := New(DefaultConfig())
	ok, _ := v.Accept(tb("   ", 0.9, "en"))
	if ok {
		t.Fatal("expected rejection for whitespace-only text")
	}
}

func TestAcceptRejectsWrongScript(t *testing.T) {
	v := New(DefaultConfig())
	ok, reason := v.Accept(tb("hello world", 0.9, "ja"))
	if ok || reason == "" {
		t.Fatalf("expected rejection for latin text declared as Japanese, got ok=%v reason=%q", ok, reason)
	}
}

func TestAcceptPassesMatchingScript(t *testing.T) {
	v := New(DefaultConfig())
	ok, _ := v.Accept(tb("こんにちは", 0.9, "ja"))
	if !ok {
		t.Fatal("expected genuine Japanese text declared as ja to pass")
	}
}

func TestAcceptRejectsUIJunk(t *testing.T) {
	v := New(DefaultConfig())
	ok, _ := v.Accept(tb("12:34", 0.9, "en"))
	if ok {
		t.Fatal("expected rejection of a timestamp-shaped string")
	}
}

func TestAcceptPassesGoodText(t *testing.T) {
	v := New(DefaultConfig())
	ok, reason := v.Accept(tb("Hello there", 0.9, "en"))
	if !ok {
		t.Fatalf("expected genuine text to pass, got reason=%q", reason)
	}
}

func TestAcceptDisabledAlwaysPasses(t *testing.T) {
	v := New(Config{Enabled: false})
	ok, _ := v.Accept(tb("", 0.0, "en"))
	if !ok {
		t.Fatal("expected disabled validator to accept everything")
	}
}
