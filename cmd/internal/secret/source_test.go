package secret

import "testing"

func TestSourcePrefersEnvironment(t *testing.T) {
	t.Setenv("MARKET_TEST_SECRET", "hunter2")
	src := NewSource("MARKET_TEST_SECRET", "jwt secret")
	value, err := src.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if value != "hunter2" {
		t.Fatalf("value = %q", value)
	}
}

func TestSourceRejectsBlankEnvironment(t *testing.T) {
	t.Setenv("MARKET_TEST_SECRET", "   ")
	if _, err := NewSource("MARKET_TEST_SECRET", "").Get(); err == nil {
		t.Fatalf("expected error for blank secret")
	}
}
