package scraper

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"dealwatch/models"
)

type stubHandler struct {
	name  string
	frags []models.Fragment
	err   error
	calls int
	lastQ Query
}

func (h *stubHandler) Name() string { return h.name }

func (h *stubHandler) Search(_ context.Context, q Query) ([]models.Fragment, error) {
	h.calls++
	h.lastQ = q
	return h.frags, h.err
}

func frags(n int) []models.Fragment {
	out := make([]models.Fragment, n)
	for i := range out {
		out[i] = models.Fragment{HTML: "<div>card</div>", Page: 1}
	}
	return out
}

func TestFetch_FirstStrategyWins(t *testing.T) {
	primary := &stubHandler{name: "browser", frags: frags(3)}
	fallback := &stubHandler{name: "http", frags: frags(5)}
	f := NewFetcherWithHandlers([]Handler{primary, fallback})

	got, strategy, err := f.Fetch(context.Background(), Query{Keyword: "earbuds", MaxPages: 2})
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if strategy != "browser" {
		t.Fatalf("expected browser strategy, got %s", strategy)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 fragments, got %d", len(got))
	}
	if fallback.calls != 0 {
		t.Fatalf("fallback ran despite primary success")
	}
}

func TestFetch_FallsBackOnAnyPrimaryFailure(t *testing.T) {
	cases := []struct {
		name    string
		primary *stubHandler
	}{
		{"error", &stubHandler{name: "browser", err: errors.New("launch failed")}},
		{"blocked", &stubHandler{name: "browser", err: fmt.Errorf("%w: captcha", ErrBlocked)}},
		{"empty", &stubHandler{name: "browser"}},
	}

	for _, c := range cases {
		fallback := &stubHandler{name: "http", frags: frags(2)}
		f := NewFetcherWithHandlers([]Handler{c.primary, fallback})

		got, strategy, err := f.Fetch(context.Background(), Query{Keyword: "earbuds", MaxPages: 1})
		if err != nil {
			t.Fatalf("%s: fetch failed: %v", c.name, err)
		}
		if strategy != "http" {
			t.Fatalf("%s: expected http fallback, got %s", c.name, strategy)
		}
		if len(got) != 2 {
			t.Fatalf("%s: expected 2 fragments, got %d", c.name, len(got))
		}
	}
}

func TestFetch_AllBlocked(t *testing.T) {
	f := NewFetcherWithHandlers([]Handler{
		&stubHandler{name: "browser", err: fmt.Errorf("%w: captcha", ErrBlocked)},
		&stubHandler{name: "http", err: fmt.Errorf("%w: status 503", ErrBlocked)},
	})

	_, _, err := f.Fetch(context.Background(), Query{Keyword: "earbuds", MaxPages: 1})
	if !errors.Is(err, ErrBlocked) {
		t.Fatalf("expected ErrBlocked, got %v", err)
	}
}

func TestFetch_TransportFailure(t *testing.T) {
	f := NewFetcherWithHandlers([]Handler{
		&stubHandler{name: "browser", err: errors.New("launch failed")},
		&stubHandler{name: "http", err: errors.New("dial tcp: connection refused")},
	})

	_, _, err := f.Fetch(context.Background(), Query{Keyword: "earbuds", MaxPages: 1})
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if errors.Is(err, ErrBlocked) {
		t.Fatalf("transport failure must not read as blocked")
	}
}

func TestFetch_AllEmptyReadsAsBlocked(t *testing.T) {
	f := NewFetcherWithHandlers([]Handler{
		&stubHandler{name: "browser"},
		&stubHandler{name: "http"},
	})

	_, _, err := f.Fetch(context.Background(), Query{Keyword: "earbuds", MaxPages: 1})
	if !errors.Is(err, ErrBlocked) {
		t.Fatalf("expected ErrBlocked for all-empty, got %v", err)
	}
}

func TestFetch_ClampsPages(t *testing.T) {
	h := &stubHandler{name: "http", frags: frags(1)}
	f := NewFetcherWithHandlers([]Handler{h})

	if _, _, err := f.Fetch(context.Background(), Query{Keyword: "x", MaxPages: 99}); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if h.lastQ.MaxPages != 5 {
		t.Fatalf("expected pages clamped to 5, got %d", h.lastQ.MaxPages)
	}

	if _, _, err := f.Fetch(context.Background(), Query{Keyword: "x", MaxPages: 0}); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if h.lastQ.MaxPages != 1 {
		t.Fatalf("expected pages clamped to 1, got %d", h.lastQ.MaxPages)
	}
}
