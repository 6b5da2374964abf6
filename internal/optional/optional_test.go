package optional

import "testing"

func TestValue(t *testing.T) {
	t.Run("zero value is none", func(t *testing.T) {
		var v Value[bool]
		if !v.IsNone() {
			t.Fatal("expected zero value to be none")
		}
		if v.UnwrapOr(true) != true {
			t.Fatal("expected fallback")
		}
		if v.String() != "<none>" {
			t.Fatalf("unexpected string %q", v.String())
		}
	})

	t.Run("some keeps false as a real value", func(t *testing.T) {
		v := Some(false)
		if v.IsNone() {
			t.Fatal("expected a set value")
		}
		if v.UnwrapOr(true) != false {
			t.Fatal("expected the stored value, not the fallback")
		}
		if v.Unwrap() != false {
			t.Fatal("unexpected unwrap")
		}
	})

	t.Run("unwrap of none panics", func(t *testing.T) {
		assertPanic(t, func() { None[int]().Unwrap() })
	})
}

func assertPanic(t *testing.T, f func()) {
	t.Helper()
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("expected code to panic")
		}
	}()
	f()
}
