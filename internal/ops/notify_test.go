package ops

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestBuildHookPostsToConfiguredURL(t *testing.T) {
	received := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- r.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	hook := NewBuildHook(server.URL)
	hook.Notify()

	select {
	case method := <-received:
		if method != http.MethodPost {
			t.Fatalf("expected POST, got %s", method)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("build hook never fired")
	}
}

func TestBuildHookWithoutURLIsNoOp(t *testing.T) {
	NewBuildHook("").Notify()

	var hook *BuildHook
	hook.Notify() // nil receiver must also be safe
}

func TestBuildHookDoesNotBlockCaller(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	hook := NewBuildHook(server.URL)
	done := make(chan struct{})
	go func() {
		hook.Notify()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on a slow hook endpoint")
	}
}
