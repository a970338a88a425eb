package adapters

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRelayerInfoParsesQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(relayerInfoResponse{
			Available:  true,
			Address:    "0x0000000000000000000000000000000000000001",
			FeePercent: "0.003",
			MinFee:     "100000000000000000",
		})
	}))
	defer srv.Close()

	relayer := NewRelayer(srv.URL, nil)
	quote, err := relayer.Info(context.Background())
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if !quote.Available {
		t.Fatalf("expected relayer to report available")
	}
	if quote.MinFee.Uint64() != 100000000000000000 {
		t.Fatalf("minFee not parsed correctly: %s", quote.MinFee.String())
	}
}

func TestRelayer4xxIsNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad request"}`))
	}))
	defer srv.Close()

	relayer := NewRelayer(srv.URL, nil)
	_, err := relayer.Transfer(context.Background(), TransferRequest{})
	if err == nil {
		t.Fatalf("expected an error for a 4xx response")
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 call for a permanent 4xx failure, got %d", calls)
	}
}

func TestRelayer5xxIsRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	relayer := NewRelayer(srv.URL, nil)
	_, err := relayer.Transfer(context.Background(), TransferRequest{})
	if err == nil {
		t.Fatalf("expected an error after exhausting retries")
	}
	if calls != maxRelayerRetries+1 {
		t.Fatalf("expected %d attempts, got %d", maxRelayerRetries+1, calls)
	}
}
