package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseValue,
				Kind:   KindTypeMismatch,
				Path:   []string{"args", "0", "_values"},
				Detail: "expected list",
			},
			contains: []string{"[value]", "type_mismatch", "args.0._values", "expected list"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseTransfer,
				Kind:  KindLease,
			},
			contains: []string{"[transfer]", "lease"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseHelper,
				Kind:   KindCallback,
				Detail: "importer 0",
				Cause:  errors.New("connection reset"),
			},
			contains: []string{"[helper]", "callback", "importer 0", "caused by", "connection reset"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseEngine,
		Kind:  KindTrap,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}

	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseDispatch,
		Kind:  KindInvalidData,
		Path:  []string{"type"},
	}

	if !err.Is(&Error{Phase: PhaseDispatch, Kind: KindInvalidData}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseHelper, Kind: KindInvalidData}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseDispatch, Kind: KindNotFound}) {
		t.Error("Is should not match different kind")
	}

	target := &Error{Phase: PhaseDispatch, Kind: KindInvalidData}
	if !errors.Is(err, target) {
		t.Error("errors.Is should match")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseValue, KindOutOfBounds).
		Path("list", "3").
		Value(3).
		Cause(cause).
		Detail("index %d of %d", 3, 2).
		Build()

	if err.Phase != PhaseValue {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseValue)
	}
	if err.Kind != KindOutOfBounds {
		t.Errorf("Kind = %v, want %v", err.Kind, KindOutOfBounds)
	}
	if len(err.Path) != 2 || err.Path[0] != "list" || err.Path[1] != "3" {
		t.Errorf("Path = %v, want [list 3]", err.Path)
	}
	if err.Value != 3 {
		t.Errorf("Value = %v, want 3", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "index 3 of 2" {
		t.Errorf("Detail = %q, want 'index 3 of 2'", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("InvalidInput", func(t *testing.T) {
		err := InvalidInput(PhaseOptions, "bad")
		if err.Kind != KindInvalidInput || err.Phase != PhaseOptions {
			t.Errorf("got %v/%v", err.Phase, err.Kind)
		}
	})

	t.Run("TypeMismatch", func(t *testing.T) {
		err := TypeMismatch(PhaseValue, []string{"args"}, "list", "number")
		if err.Kind != KindTypeMismatch {
			t.Errorf("Kind = %v, want %v", err.Kind, KindTypeMismatch)
		}
		if !strings.Contains(err.Detail, "expected list, got number") {
			t.Errorf("Detail = %q", err.Detail)
		}
	})

	t.Run("OutOfBounds", func(t *testing.T) {
		err := OutOfBounds(PhaseValue, []string{"list"}, 10, 5)
		if err.Kind != KindOutOfBounds {
			t.Errorf("Kind = %v, want %v", err.Kind, KindOutOfBounds)
		}
		if err.Value != 10 {
			t.Errorf("Value = %v, want 10", err.Value)
		}
	})

	t.Run("Overflow", func(t *testing.T) {
		err := Overflow(PhaseTransfer, 1<<40, "signal word")
		if err.Kind != KindOverflow {
			t.Errorf("Kind = %v, want %v", err.Kind, KindOverflow)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		err := NotFound(PhaseLoad, "export", "sass_compile")
		if !strings.Contains(err.Error(), `export "sass_compile" not found`) {
			t.Errorf("Error() = %q", err.Error())
		}
	})

	t.Run("Callback", func(t *testing.T) {
		cause := errors.New("boom")
		err := Callback("function 2", cause)
		if err.Phase != PhaseHelper || !errors.Is(err, cause) {
			t.Errorf("unexpected %v", err)
		}
	})

	t.Run("Trap", func(t *testing.T) {
		err := Trap("sass_compile", errors.New("unreachable"))
		if err.Phase != PhaseEngine || err.Kind != KindTrap {
			t.Errorf("got %v/%v", err.Phase, err.Kind)
		}
	})

	t.Run("Load", func(t *testing.T) {
		err := Load("compile module", errors.New("bad magic"))
		if err.Phase != PhaseLoad || err.Kind != KindInvalidData {
			t.Errorf("got %v/%v", err.Phase, err.Kind)
		}
	})
}
