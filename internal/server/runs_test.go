package server

import "testing"

func TestRunManager_Open(t *testing.T) {
	rm := NewRunManager()
	defer rm.CloseAll()

	// First call should create
	ar1 := rm.Open("conn-1", 1)
	if ar1 == nil || ar1.Ctx == nil {
		t.Fatal("expected non-nil ActiveRun with context")
	}

	// Second call should return the same run
	ar2 := rm.Open("conn-1", 1)
	if ar1 != ar2 {
		t.Error("expected same ActiveRun on second call")
	}

	if _, ok := rm.Get("conn-1"); !ok {
		t.Error("expected Get to find conn-1")
	}
	if rm.Len() != 1 {
		t.Errorf("Len = %d, want 1", rm.Len())
	}
}

func TestRunManager_Remove(t *testing.T) {
	rm := NewRunManager()
	ar := rm.Open("conn-1", 1)

	rm.Remove("conn-1")

	if _, ok := rm.Get("conn-1"); ok {
		t.Error("expected run to be removed")
	}
	if ar.Ctx.Err() == nil {
		t.Error("expected context to be cancelled on remove")
	}

	// Removing twice is a no-op
	rm.Remove("conn-1")
}

func TestRunManager_CloseAll(t *testing.T) {
	rm := NewRunManager()
	a := rm.Open("a", 1)
	b := rm.Open("b", 2)

	rm.CloseAll()

	if rm.Len() != 0 {
		t.Errorf("Len = %d after CloseAll", rm.Len())
	}
	if a.Ctx.Err() == nil || b.Ctx.Err() == nil {
		t.Error("expected all contexts cancelled")
	}
}
