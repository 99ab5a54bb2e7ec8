package rates

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/hearthkeep/hearth/internal/domain"
	"github.com/hearthkeep/hearth/internal/infra/sqlite"
)

func TestFetchUSD(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"base":"USD","rates":{"EUR":0.91,"NPR":134.5}}`))
	}))
	defer srv.Close()

	table, err := NewClient(srv.URL).FetchUSD(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if table["EUR"] != 0.91 || table["NPR"] != 134.5 {
		t.Errorf("table = %v", table)
	}
}

func TestFetchUSDRejectsWrongBase(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"base":"EUR","rates":{"USD":1.1}}`))
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL).FetchUSD(context.Background()); err == nil {
		t.Error("non-USD base should be rejected")
	}
}

func TestFetchUSDErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL).FetchUSD(context.Background()); err == nil {
		t.Error("non-200 should error")
	}
}

func TestRefresherPersistsTable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"base":"USD","rates":{"EUR":0.91,"NPR":134.5}}`))
	}))
	defer srv.Close()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	refresher := NewRefresher(NewClient(srv.URL), db, time.Hour)
	if err := refresher.RefreshNow(context.Background()); err != nil {
		t.Fatal(err)
	}

	cache, err := db.LoadRates()
	if err != nil {
		t.Fatal(err)
	}
	eur, ok := cache[domain.RatePairKey("USD", "EUR")]
	if !ok || eur.Rate != 0.91 {
		t.Errorf("cache = %v", cache)
	}
	if _, ok := cache[domain.RatePairKey("USD", "NPR")]; !ok {
		t.Error("NPR pair missing")
	}
}
