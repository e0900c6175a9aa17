package completion

import (
	"runtime"
	"testing"
	"time"
)

func TestCompleteFiresOnce(t *testing.T) {
	var calls int
	var gotErr any
	var gotResult any
	h := New(func(err error, errVal, result any) {
		calls++
		gotErr = errVal
		gotResult = result
	})

	h.Complete(42)
	h.Complete(43)    // no-op, first call already won
	h.SetError("oops") // no-op

	if calls != 1 {
		t.Fatalf("reply invoked %d times, want 1", calls)
	}
	if gotErr != nil {
		t.Fatalf("errVal = %v, want nil", gotErr)
	}
	if gotResult != 42 {
		t.Fatalf("result = %v, want 42", gotResult)
	}
}

func TestSetErrorDefaultMessage(t *testing.T) {
	var gotErrVal any
	h := New(func(err error, errVal, result any) {
		gotErrVal = errVal
	})
	h.SetError()
	if gotErrVal != errorDuringCallMessage {
		t.Fatalf("errVal = %v, want %q", gotErrVal, errorDuringCallMessage)
	}
}

func TestDropWithoutReplySendsDefaultError(t *testing.T) {
	done := make(chan any, 1)
	func() {
		h := New(func(err error, errVal, result any) {
			done <- errVal
		})
		_ = h // goes out of scope without Complete/SetError
	}()

	deadline := time.After(2 * time.Second)
	for {
		runtime.GC()
		select {
		case errVal := <-done:
			if errVal != defaultErrorMessage {
				t.Fatalf("errVal = %v, want %q", errVal, defaultErrorMessage)
			}
			return
		case <-deadline:
			t.Fatal("finalizer did not run before deadline")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
