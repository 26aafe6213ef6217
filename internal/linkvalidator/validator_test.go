package linkvalidator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestValidateBatchMatchesUnionOfSingleCalls(t *testing.T) {
	live := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer live.Close()

	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer dead.Close()

	v := New(http.DefaultClient, 4)
	urls := []string{live.URL, dead.URL}

	batch := v.ValidateBatch(context.Background(), urls)
	for _, u := range urls {
		single := v.Validate(context.Background(), u)
		if batch[u] != single {
			t.Fatalf("ValidateBatch[%s] = %v, Validate = %v, want equal", u, batch[u], single)
		}
	}
	if !batch[live.URL] {
		t.Errorf("expected %s to be live", live.URL)
	}
	if batch[dead.URL] {
		t.Errorf("expected %s to be dead", dead.URL)
	}
}

func TestValidateFallsBackToGETWhenHEADIsBlanketForbidden(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	v := New(http.DefaultClient, 4)
	if !v.Validate(context.Background(), server.URL) {
		t.Fatalf("expected GET fallback to report the URL live")
	}
}

func TestValidateTreatsRedirectsAsLive(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer target.Close()

	redirecting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL, http.StatusFound)
	}))
	defer redirecting.Close()

	v := New(http.DefaultClient, 4)
	if !v.Validate(context.Background(), redirecting.URL) {
		t.Fatalf("expected a followed 302 redirect to report live")
	}
}
