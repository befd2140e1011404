package runner

import "testing"

func TestBudgetControllerRaiseEveryTenth(t *testing.T) {
	b := newBudgetController(1000, 100, 10000)
	for i := 0; i < 9; i++ {
		b.OnSuccess()
		if b.Budget() != 1000 {
			t.Fatalf("budget changed after %d successes: %d", i+1, b.Budget())
		}
	}
	b.OnSuccess()
	if b.Budget() != 1100 {
		t.Errorf("budget after 10 successes = %d, want 1100", b.Budget())
	}
	for i := 0; i < 10; i++ {
		b.OnSuccess()
	}
	if b.Budget() != 1210 {
		t.Errorf("budget after 20 successes = %d, want 1210", b.Budget())
	}
}

func TestBudgetControllerCapped(t *testing.T) {
	b := newBudgetController(1000, 100, 1050)
	for i := 0; i < 10; i++ {
		b.OnSuccess()
	}
	if b.Budget() != 1050 {
		t.Errorf("budget = %d, want capped at 1050", b.Budget())
	}
}

func TestBudgetControllerCutResetsStreak(t *testing.T) {
	b := newBudgetController(1000, 100, 10000)
	for i := 0; i < 9; i++ {
		b.OnSuccess()
	}
	b.OnBudgetExceeded()
	if b.Budget() != 800 {
		t.Errorf("budget after cut = %d, want 800", b.Budget())
	}
	// The streak restarted: nine more successes must not raise.
	for i := 0; i < 9; i++ {
		b.OnSuccess()
	}
	if b.Budget() != 800 {
		t.Errorf("budget = %d, want 800 until a full streak", b.Budget())
	}
	b.OnSuccess()
	if b.Budget() != 880 {
		t.Errorf("budget after full streak = %d, want 880", b.Budget())
	}
}

func TestBudgetControllerFloored(t *testing.T) {
	b := newBudgetController(110, 100, 10000)
	b.OnBudgetExceeded()
	if b.Budget() != 100 {
		t.Errorf("budget = %d, want floored at 100", b.Budget())
	}
	b.OnBudgetExceeded()
	if b.Budget() != 100 {
		t.Errorf("budget = %d, must not drop below floor", b.Budget())
	}
}

func TestBudgetControllerClampsStart(t *testing.T) {
	if b := newBudgetController(50, 100, 10000); b.Budget() != 100 {
		t.Errorf("start below min: budget = %d, want 100", b.Budget())
	}
	if b := newBudgetController(20000, 100, 10000); b.Budget() != 10000 {
		t.Errorf("start above max: budget = %d, want 10000", b.Budget())
	}
}
