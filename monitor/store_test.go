package monitor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dealwatch/email"
	"dealwatch/models"
	"dealwatch/scraper"
)

const stubCardHTML = `<div data-asin="B0TESTASIN1">
  <h2><a href="/Stub-Product/dp/B0TESTASIN1"><span>Stub Product</span></a></h2>
  <span class="a-price"><span class="a-offscreen">$19.99</span></span>
  <span class="a-icon-alt">4.2 out of 5 stars</span>
  <span class="a-size-base s-underline-text">321</span>
</div>`

type stubFetcher struct {
	frags []models.Fragment
	err   error
	calls int
}

func (f *stubFetcher) Fetch(_ context.Context, _ scraper.Query) ([]models.Fragment, string, error) {
	f.calls++
	if f.err != nil {
		return nil, "", f.err
	}
	return f.frags, "stub", nil
}

type stubRenderer struct{ err error }

func (r *stubRenderer) HTML(_ *models.AnalysisResult) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return "<html>report</html>", nil
}

type stubNotifier struct {
	sent      int
	recipient string
	err       error
}

func (n *stubNotifier) Send(_ email.Credentials, recipient, _, _ string, _ bool) error {
	if n.err != nil {
		return n.err
	}
	n.sent++
	n.recipient = recipient
	return nil
}

func goodFragments() []models.Fragment {
	return []models.Fragment{{HTML: stubCardHTML, Page: 1}}
}

func newTestStore(t *testing.T, fetcher *stubFetcher, notifier *stubNotifier) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "monitors.json")
	return NewStore(path, fetcher, &stubRenderer{}, notifier, nil)
}

func testCreds() email.Credentials {
	return email.Credentials{Email: "sender@example.com", Password: "secret"}
}

func TestCreate_Validation(t *testing.T) {
	s := newTestStore(t, &stubFetcher{}, &stubNotifier{})

	if _, err := s.Create("  ", "", 1, "", models.FrequencyDaily); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for blank keyword, got %v", err)
	}
	if _, err := s.Create("earbuds", "", 1, "", models.Frequency("hourly")); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for bad frequency, got %v", err)
	}

	m, err := s.Create("earbuds", "Electronics", 99, "a@b.c", models.FrequencyDaily)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if m.MaxPages != 5 {
		t.Fatalf("expected max pages clamped to 5, got %d", m.MaxPages)
	}
	if !m.Enabled {
		t.Fatalf("expected new monitor enabled")
	}

	want := m.CreatedAt.Add(24 * time.Hour)
	if !m.NextDueAt.Equal(want) {
		t.Fatalf("expected first due at %v, got %v", want, m.NextDueAt)
	}
}

func TestRegistry_SurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitors.json")
	s := NewStore(path, &stubFetcher{}, &stubRenderer{}, &stubNotifier{}, nil)

	m, err := s.Create("earbuds", "", 2, "a@b.c", models.FrequencyWeekly)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	reopened := NewStore(path, &stubFetcher{}, &stubRenderer{}, &stubNotifier{}, nil)
	got, err := reopened.Get(m.ID)
	if err != nil {
		t.Fatalf("get after restart failed: %v", err)
	}
	if got.Keyword != "earbuds" || got.Frequency != models.FrequencyWeekly || got.MaxPages != 2 {
		t.Fatalf("reloaded monitor does not match: %+v", got)
	}
}

func TestRegistry_CorruptFileIsNotEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitors.json")
	if err := os.WriteFile(path, []byte(`{"monitors": {truncated`), 0o644); err != nil {
		t.Fatalf("writing corrupt file: %v", err)
	}

	s := NewStore(path, &stubFetcher{}, &stubRenderer{}, &stubNotifier{}, nil)
	if _, err := s.List(); !errors.Is(err, ErrRegistryCorrupt) {
		t.Fatalf("expected ErrRegistryCorrupt, got %v", err)
	}
	if _, err := s.Create("earbuds", "", 1, "", models.FrequencyDaily); !errors.Is(err, ErrRegistryCorrupt) {
		t.Fatalf("expected create to refuse a corrupt registry, got %v", err)
	}
}

func TestRun_SuccessReanchorsSchedule(t *testing.T) {
	fetcher := &stubFetcher{frags: goodFragments()}
	notifier := &stubNotifier{}
	s := newTestStore(t, fetcher, notifier)

	m, err := s.Create("earbuds", "", 1, "reader@example.com", models.FrequencyDaily)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	record, err := s.Run(context.Background(), m.ID, testCreds())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !record.Success {
		t.Fatalf("expected success, got failure at %s: %s", record.FailedStage, record.Error)
	}
	if record.TotalProducts != 1 || record.ValidProducts != 1 {
		t.Fatalf("unexpected product counts: %d/%d", record.ValidProducts, record.TotalProducts)
	}
	if !record.EmailSent || notifier.sent != 1 || notifier.recipient != "reader@example.com" {
		t.Fatalf("expected one email to the monitor address")
	}
	if len(record.TopPicks) == 0 {
		t.Fatalf("expected top picks in the record")
	}

	after, err := s.Get(m.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if after.LastRunAt == nil || !after.LastRunAt.Equal(record.Timestamp) {
		t.Fatalf("expected last run at %v, got %v", record.Timestamp, after.LastRunAt)
	}
	want := record.Timestamp.Add(24 * time.Hour)
	if !after.NextDueAt.Equal(want) {
		t.Fatalf("expected next due %v, got %v", want, after.NextDueAt)
	}
	if len(after.RunHistory) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(after.RunHistory))
	}
}

func TestRun_FailureKeepsMonitorDue(t *testing.T) {
	fetcher := &stubFetcher{err: fmt.Errorf("%w: captcha wall", scraper.ErrBlocked)}
	s := newTestStore(t, fetcher, &stubNotifier{})

	m, err := s.Create("earbuds", "", 1, "reader@example.com", models.FrequencyDaily)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	record, err := s.Run(context.Background(), m.ID, testCreds())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if record.Success {
		t.Fatalf("expected a failed run")
	}
	if record.FailedStage != models.StageFetch {
		t.Fatalf("expected fetch stage failure, got %s", record.FailedStage)
	}
	if record.EmailSent {
		t.Fatalf("no email on a failed run")
	}

	after, err := s.Get(m.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if after.LastRunAt != nil {
		t.Fatalf("failed run must not set last run time")
	}
	if !after.NextDueAt.Equal(m.NextDueAt) {
		t.Fatalf("failed run must not move the due time: %v vs %v", after.NextDueAt, m.NextDueAt)
	}
	if len(after.RunHistory) != 1 {
		t.Fatalf("expected the failure recorded in history, got %d entries", len(after.RunHistory))
	}
}

func TestRun_DeliverFailureRecorded(t *testing.T) {
	fetcher := &stubFetcher{frags: goodFragments()}
	notifier := &stubNotifier{err: errors.New("smtp: auth failed")}
	s := newTestStore(t, fetcher, notifier)

	m, err := s.Create("earbuds", "", 1, "reader@example.com", models.FrequencyDaily)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	record, err := s.Run(context.Background(), m.ID, testCreds())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if record.Success || record.FailedStage != models.StageDeliver {
		t.Fatalf("expected deliver stage failure, got %+v", record)
	}
	if record.ValidProducts != 1 {
		t.Fatalf("parse results should survive a deliver failure")
	}
}

func TestRun_NoEmailConfiguredStillSucceeds(t *testing.T) {
	fetcher := &stubFetcher{frags: goodFragments()}
	notifier := &stubNotifier{}
	s := newTestStore(t, fetcher, notifier)

	m, err := s.Create("earbuds", "", 1, "", models.FrequencyDaily)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	record, err := s.Run(context.Background(), m.ID, testCreds())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !record.Success {
		t.Fatalf("expected success without a recipient, got %+v", record)
	}
	if record.EmailSent || notifier.sent != 0 {
		t.Fatalf("no email should be sent without a recipient")
	}
}

func TestRun_DisabledMonitor(t *testing.T) {
	s := newTestStore(t, &stubFetcher{frags: goodFragments()}, &stubNotifier{})

	m, err := s.Create("earbuds", "", 1, "", models.FrequencyDaily)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := s.SetEnabled(m.ID, false); err != nil {
		t.Fatalf("disable failed: %v", err)
	}

	if _, err := s.Run(context.Background(), m.ID, testCreds()); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}

	due, err := s.Due(m.ID, time.Now().Add(365*24*time.Hour))
	if err != nil {
		t.Fatalf("due check failed: %v", err)
	}
	if due {
		t.Fatalf("a disabled monitor is never due")
	}
}

func TestRemove(t *testing.T) {
	s := newTestStore(t, &stubFetcher{}, &stubNotifier{})

	m, err := s.Create("earbuds", "", 1, "", models.FrequencyDaily)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := s.Remove(m.ID); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if _, err := s.Get(m.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after remove, got %v", err)
	}
	if err := s.Remove(m.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for double remove, got %v", err)
	}
}

func TestList_OrderedByCreation(t *testing.T) {
	s := newTestStore(t, &stubFetcher{}, &stubNotifier{})

	first, err := s.Create("first", "", 1, "", models.FrequencyDaily)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	second, err := s.Create("second", "", 1, "", models.FrequencyWeekly)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	listed, err := s.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 monitors, got %d", len(listed))
	}
	ids := []string{listed[0].ID, listed[1].ID}
	if listed[0].CreatedAt.After(listed[1].CreatedAt) {
		t.Fatalf("monitors out of creation order: %v", ids)
	}
	seen := map[string]bool{ids[0]: true, ids[1]: true}
	if !seen[first.ID] || !seen[second.ID] {
		t.Fatalf("listing missing created monitors: %v", ids)
	}
}
