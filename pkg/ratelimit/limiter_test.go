package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestAllowBurst(t *testing.T) {
	limiter := New(1, 3)

	// полное ведро: три запроса проходят сразу
	for i := 0; i < 3; i++ {
		if !limiter.Allow() {
			t.Fatalf("request %d rejected within burst", i)
		}
	}
	if limiter.Allow() {
		t.Error("request beyond burst should be rejected")
	}
}

func TestAllowRefills(t *testing.T) {
	limiter := New(100, 1) // быстрое пополнение для теста

	if !limiter.Allow() {
		t.Fatal("first request rejected")
	}
	if limiter.Allow() {
		t.Fatal("bucket should be empty")
	}

	time.Sleep(20 * time.Millisecond)
	if !limiter.Allow() {
		t.Error("token not refilled")
	}
}

func TestWaitBlocks(t *testing.T) {
	limiter := New(50, 1)

	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	started := time.Now()
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	if elapsed := time.Since(started); elapsed < 10*time.Millisecond {
		t.Errorf("wait returned too fast: %v", elapsed)
	}
}

func TestWaitCancelled(t *testing.T) {
	limiter := New(0.1, 1) // пополнение раз в 10 секунд
	limiter.Allow()        // опустошаем ведро

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := limiter.Wait(ctx); err == nil {
		t.Error("expected context error")
	}
}

func TestNewSanitizesArguments(t *testing.T) {
	limiter := New(-1, -5)
	if limiter.rate <= 0 {
		t.Errorf("rate = %v, want positive default", limiter.rate)
	}
	if limiter.burst < limiter.rate {
		t.Errorf("burst %v below rate %v", limiter.burst, limiter.rate)
	}
}

func TestTokens(t *testing.T) {
	limiter := New(1, 5)
	if tokens := limiter.Tokens(); tokens != 5 {
		t.Errorf("initial tokens = %v, want 5", tokens)
	}

	limiter.Allow()
	if tokens := limiter.Tokens(); tokens >= 5 {
		t.Errorf("tokens after request = %v, want less than 5", tokens)
	}
}

func TestSetRate(t *testing.T) {
	limiter := New(1, 1)
	limiter.SetRate(100)

	limiter.Allow() // опустошаем
	time.Sleep(20 * time.Millisecond)
	if !limiter.Allow() {
		t.Error("new rate not applied")
	}

	// невалидная скорость игнорируется
	limiter.SetRate(-1)
	if limiter.rate != 100 {
		t.Errorf("rate = %v, want 100 after ignored update", limiter.rate)
	}
}
