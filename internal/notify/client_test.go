package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNotify_OK(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/hooks/wallet" {
			t.Fatalf("path = %s, want /hooks/wallet", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Fatalf("content type = %s, want application/json", ct)
		}

		var got WalletRequest
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.ID != "tx-1" || got.Type != "deposit" || got.AmountUSD != "5" || got.Points != 50 {
			t.Fatalf("unexpected request: %+v", got)
		}
		if !got.CreatedAt.Equal(created) {
			t.Fatalf("created_at = %v, want %v", got.CreatedAt, created)
		}

		w.WriteHeader(http.StatusAccepted)
	}))
	defer ts.Close()

	client := NewClient(ts.URL + "/hooks/wallet")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	code, retry, err := client.Notify(ctx, WalletRequest{
		ID:        "tx-1",
		Type:      "deposit",
		AmountUSD: "5",
		Points:    50,
		UserID:    7,
		CreatedAt: created,
	})
	if err != nil {
		t.Fatalf("Notify error: %v", err)
	}
	if code != http.StatusAccepted {
		t.Fatalf("status code = %d, want %d", code, http.StatusAccepted)
	}
	if retry != 0 {
		t.Fatalf("retryAfter = %v, want 0", retry)
	}
}

func TestNotify_TooManyRequests(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	code, retry, err := client.Notify(ctx, WalletRequest{ID: "tx-1"})
	if err != nil {
		t.Fatalf("Notify error: %v", err)
	}
	if code != http.StatusTooManyRequests {
		t.Fatalf("status code = %d, want %d", code, http.StatusTooManyRequests)
	}
	if retry < 5*time.Second {
		t.Fatalf("retryAfter = %v, want at least 5s", retry)
	}
}

func TestNotify_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	code, _, err := client.Notify(ctx, WalletRequest{ID: "tx-1"})
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
	if code != http.StatusInternalServerError {
		t.Fatalf("status code = %d, want %d", code, http.StatusInternalServerError)
	}
}

func TestNotify_NotConfigured(t *testing.T) {
	client := NewClient("")

	if _, _, err := client.Notify(context.Background(), WalletRequest{}); err == nil {
		t.Fatal("expected error for empty url")
	}
}
