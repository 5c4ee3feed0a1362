package submit

import (
	"errors"
	"testing"
	"time"
)

func TestStatusWaitBlocksUntilComplete(t *testing.T) {
	st := newStatus()
	if st.State() != StateNotReady {
		t.Fatal("a fresh status must start as StateNotReady")
	}
	if st.Token.String() == "00000000-0000-0000-0000-000000000000" {
		t.Fatal("a fresh status must be assigned a non-zero token")
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		st.complete(nil)
	}()

	if err := st.Wait(); err != nil {
		t.Fatal(err)
	}
	if st.State() != StateReady {
		t.Fatalf("state = %v, want StateReady", st.State())
	}
}

func TestStatusWaitReturnsDeviceError(t *testing.T) {
	st := newStatus()
	want := errors.New("boom")
	st.complete(want)

	if err := st.Wait(); err != want {
		t.Fatalf("Wait error = %v, want %v", err, want)
	}
	if st.State() != StateFailed {
		t.Fatalf("state = %v, want StateFailed", st.State())
	}
}
