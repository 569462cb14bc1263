package oracle

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestClient_Quote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/quote" {
			http.NotFound(w, r)
			return
		}
		switch r.URL.Query().Get("symbol") {
		case "BTC":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"symbol":"BTC","price":"60123.45"}`))
		case "BAD":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"symbol":"BAD","price":"-1"}`))
		default:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"unknown symbol"}`))
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 2*time.Second)

	price, err := c.Quote(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if !price.Equal(decimal.NewFromFloat(60123.45)) {
		t.Errorf("price=%s", price)
	}

	if _, err := c.Quote(context.Background(), "NOPE"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable for upstream error, got %v", err)
	}
	if _, err := c.Quote(context.Background(), "BAD"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable for non-positive price, got %v", err)
	}
}

func TestClient_QuoteTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"symbol":"SLOW","price":"1"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 20*time.Millisecond)
	if _, err := c.Quote(context.Background(), "SLOW"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable on timeout, got %v", err)
	}
}

func TestStatic(t *testing.T) {
	s := NewStatic()
	s.SetPrice("ETH", decimal.NewFromInt(3000))

	price, err := s.Quote(context.Background(), "ETH")
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if !price.Equal(decimal.NewFromInt(3000)) {
		t.Errorf("price=%s", price)
	}

	s.Delete("ETH")
	if _, err := s.Quote(context.Background(), "ETH"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable after delete, got %v", err)
	}
}
