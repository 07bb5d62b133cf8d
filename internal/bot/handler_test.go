package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram-bot-api/telegram-bot-api"

	"github.com/pachmu/job_finder_bot/internal/application"
	"github.com/pachmu/job_finder_bot/internal/jobs"
	"github.com/pachmu/job_finder_bot/internal/theme"
)

const testChatID = 42

type fakeAPI struct {
	mu      sync.Mutex
	sent    []tgbotapi.Chattable
	answers []tgbotapi.CallbackConfig
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) AnswerCallbackQuery(cfg tgbotapi.CallbackConfig) (tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, cfg)
	return tgbotapi.APIResponse{Ok: true}, nil
}

func messageText(c tgbotapi.Chattable) (string, bool) {
	switch m := c.(type) {
	case tgbotapi.MessageConfig:
		return m.Text, true
	case *tgbotapi.MessageConfig:
		return m.Text, true
	case tgbotapi.EditMessageTextConfig:
		return m.Text, true
	}
	return "", false
}

func (f *fakeAPI) lastText(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatal("nothing was sent")
	}
	txt, ok := messageText(f.sent[len(f.sent)-1])
	if !ok {
		t.Fatalf("last message %T has no text", f.sent[len(f.sent)-1])
	}
	return txt
}

// waitForText polls until a sent message contains want.
func (f *fakeAPI) waitForText(t *testing.T, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		for _, c := range f.sent {
			if txt, ok := messageText(c); ok && strings.Contains(txt, want) {
				f.mu.Unlock()
				return
			}
		}
		f.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no message containing %q was sent", want)
}

func (f *fakeAPI) lastNotice(t *testing.T) string {
	t.Helper()
	if len(f.answers) == 0 {
		t.Fatal("no callback was answered")
	}
	return f.answers[len(f.answers)-1].Text
}

type fakeSource struct {
	postings []jobs.Posting
	err      error
}

func (f fakeSource) Fetch(ctx context.Context) ([]jobs.Posting, error) {
	return f.postings, f.err
}

var postings = []jobs.Posting{
	{ID: "p1", Title: "Senior Go Developer", Company: "Acme", Salary: "$120k"},
	{ID: "p2", Title: "Frontend Engineer", Company: "Globex", Salary: "$90k"},
}

// flakySource fails its first fetch.
type flakySource struct {
	mu    sync.Mutex
	calls int
}

func (f *flakySource) Fetch(ctx context.Context) ([]jobs.Posting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls == 1 {
		return nil, errors.New("connection refused")
	}
	return postings, nil
}

func newTestHandler(t *testing.T, src jobs.Source, load bool) (*MessageHandler, *fakeAPI) {
	t.Helper()
	board := jobs.NewBoard(src, jobs.NewMemoryStorage())
	if load {
		if err := board.Load(context.Background()); err != nil {
			t.Fatalf("load: %v", err)
		}
	}
	h := NewMessageHandler(testChatID, board, &theme.Switch{})
	api := &fakeAPI{}
	if err := h.init(api); err != nil {
		t.Fatalf("init: %v", err)
	}
	return h, api
}

func text(t *testing.T, h *MessageHandler, txt string) {
	t.Helper()
	upd := tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: testChatID}, Text: txt}}
	if err := h.handle(context.Background(), upd); err != nil {
		t.Fatalf("handle %q: %v", txt, err)
	}
}

func press(t *testing.T, h *MessageHandler, data string) {
	t.Helper()
	upd := tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		Data:    data,
		Message: &tgbotapi.Message{MessageID: 7, Chat: &tgbotapi.Chat{ID: testChatID}},
	}}
	if err := h.handle(context.Background(), upd); err != nil {
		t.Fatalf("handle callback %q: %v", data, err)
	}
}

func TestHandleUnauthorizedChat(t *testing.T) {
	h, api := newTestHandler(t, fakeSource{postings: postings}, true)
	upd := tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 99}, Text: "/jobs"}}
	if err := h.handle(context.Background(), upd); err == nil {
		t.Fatal("expected unauthorized error")
	}
	if len(api.sent) != 0 {
		t.Fatalf("expected no responses, got %d", len(api.sent))
	}
}

func TestListingShowsPostings(t *testing.T) {
	h, api := newTestHandler(t, fakeSource{postings: postings}, true)
	text(t, h, "/jobs")
	got := api.lastText(t)
	for _, want := range []string{"Job Finder", "Senior Go Developer", "Globex", "$90k"} {
		if !strings.Contains(got, want) {
			t.Errorf("listing %q does not contain %q", got, want)
		}
	}
}

func TestListingWhileLoading(t *testing.T) {
	h, api := newTestHandler(t, fakeSource{postings: postings}, false)
	text(t, h, "/jobs")
	if got := api.lastText(t); !strings.Contains(got, "Loading jobs...") {
		t.Fatalf("expected loading notice, got %q", got)
	}

	h.loadPostings(context.Background())
	if got := api.lastText(t); !strings.Contains(got, "Senior Go Developer") {
		t.Fatalf("expected listing after load, got %q", got)
	}
}

func TestLoadFailureAlerts(t *testing.T) {
	h, api := newTestHandler(t, fakeSource{err: errors.New("boom")}, false)
	h.loadPostings(context.Background())
	if got := api.lastText(t); !strings.Contains(got, fetchFailedText) {
		t.Fatalf("expected fetch alert, got %q", got)
	}
	text(t, h, "/jobs")
	if got := api.lastText(t); strings.Contains(got, "Senior Go Developer") {
		t.Fatalf("failed load must not list postings, got %q", got)
	}
}

func TestStartRetriesFailedLoad(t *testing.T) {
	h, api := newTestHandler(t, &flakySource{}, false)
	h.loadPostings(context.Background())
	if h.board.State() != jobs.Failed {
		t.Fatalf("state = %s, want failed", h.board.State())
	}

	text(t, h, "/start")
	api.waitForText(t, "Senior Go Developer")
	if h.board.State() != jobs.Loaded {
		t.Fatalf("state = %s, want loaded", h.board.State())
	}
}

func TestStartDoesNotReloadLoadedBoard(t *testing.T) {
	src := &flakySource{calls: 1}
	h, api := newTestHandler(t, src, true)
	text(t, h, "/start")
	if got := api.lastText(t); !strings.Contains(got, "Browse jobs") {
		t.Fatalf("expected menu, got %q", got)
	}
	src.mu.Lock()
	defer src.mu.Unlock()
	if src.calls != 2 {
		t.Fatalf("source called %d times, want 2", src.calls)
	}
}

func longPostings(n, titleLen, companyLen int) []jobs.Posting {
	out := make([]jobs.Posting, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, jobs.Posting{
			ID:      fmt.Sprintf("long-%d", i),
			Title:   strings.Repeat("T", titleLen),
			Company: strings.Repeat("C", companyLen),
			Salary:  "$1",
		})
	}
	return out
}

func TestListingFitsMessageLimit(t *testing.T) {
	h, api := newTestHandler(t, fakeSource{postings: longPostings(20, 240, 60)}, true)
	text(t, h, "/jobs")

	msg := api.sent[len(api.sent)-1].(tgbotapi.MessageConfig)
	if n := textLen(msg.Text); n > maxMessageLen {
		t.Fatalf("listing length = %d, over %d", n, maxMessageLen)
	}
	if !strings.Contains(msg.Text, "of 20 jobs") {
		t.Fatalf("expected a showing hint, got %q", msg.Text)
	}
	if strings.Contains(msg.Text, strings.Repeat("T", maxFieldLen+1)) {
		t.Fatal("long title must be truncated")
	}
	kb := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	shown := strings.Count(msg.Text, theme.Light.Palette().Bullet)
	if len(kb.InlineKeyboard) != shown+1 {
		t.Fatalf("keyboard rows = %d, want %d postings plus navigation", len(kb.InlineKeyboard), shown)
	}
	if shown == 0 || shown >= 20 {
		t.Fatalf("shown = %d", shown)
	}
}

func TestSavedFitsMessageLimit(t *testing.T) {
	long := longPostings(25, 1000, 1000)
	h, api := newTestHandler(t, fakeSource{postings: long}, true)
	for _, p := range long {
		if err := h.board.AddToSaved(p); err != nil {
			t.Fatal(err)
		}
	}
	text(t, h, "/saved")
	msg := api.sent[len(api.sent)-1].(tgbotapi.MessageConfig)
	if n := textLen(msg.Text); n > maxMessageLen {
		t.Fatalf("saved length = %d, over %d", n, maxMessageLen)
	}
	if !strings.Contains(msg.Text, "of 25 saved jobs") {
		t.Fatalf("expected a showing hint, got %q", msg.Text)
	}
}

func TestSearchByPlainText(t *testing.T) {
	h, api := newTestHandler(t, fakeSource{postings: postings}, true)
	text(t, h, "frontend")
	got := api.lastText(t)
	if !strings.Contains(got, "Frontend Engineer") || strings.Contains(got, "Senior Go Developer") {
		t.Fatalf("unexpected search result %q", got)
	}

	text(t, h, "/search")
	if got := api.lastText(t); !strings.Contains(got, "Senior Go Developer") {
		t.Fatalf("empty search must list everything, got %q", got)
	}
}

func TestSaveAndRemove(t *testing.T) {
	h, api := newTestHandler(t, fakeSource{postings: postings}, true)

	press(t, h, "save p1")
	if got := api.lastNotice(t); got != "Job saved" {
		t.Fatalf("notice = %q", got)
	}
	if _, ok := api.sent[len(api.sent)-1].(tgbotapi.EditMessageReplyMarkupConfig); !ok {
		t.Fatalf("expected keyboard edit, got %T", api.sent[len(api.sent)-1])
	}
	press(t, h, "save p1")
	if got := api.lastNotice(t); got != "Saved" {
		t.Fatalf("second save notice = %q", got)
	}
	saved, _ := h.board.Saved()
	if len(saved) != 1 {
		t.Fatalf("saved = %v", saved)
	}

	text(t, h, "/saved")
	if got := api.lastText(t); !strings.Contains(got, "Senior Go Developer") {
		t.Fatalf("saved screen %q", got)
	}

	press(t, h, "remove p1")
	if got := api.lastText(t); !strings.Contains(got, "No saved jobs yet.") {
		t.Fatalf("saved screen after remove %q", got)
	}
}

func TestSaveUnknownPosting(t *testing.T) {
	h, api := newTestHandler(t, fakeSource{postings: postings}, true)
	press(t, h, "save nope")
	if got := api.lastNotice(t); got != "This job is no longer available" {
		t.Fatalf("notice = %q", got)
	}
}

func TestCallbackWithoutID(t *testing.T) {
	h, _ := newTestHandler(t, fakeSource{postings: postings}, true)
	upd := tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		Data:    "save",
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: testChatID}},
	}}
	if err := h.handle(context.Background(), upd); err == nil {
		t.Fatal("expected error for missing posting id")
	}
}

func TestApplicationFormFlow(t *testing.T) {
	h, api := newTestHandler(t, fakeSource{postings: postings}, true)

	press(t, h, "apply p2")
	if got := api.lastText(t); !strings.Contains(got, "Job Title: Frontend Engineer") || !strings.HasSuffix(got, "Name:") {
		t.Fatalf("form header %q", got)
	}

	text(t, h, "Jo")
	if got := api.lastText(t); got != "Email:" {
		t.Fatalf("prompt = %q", got)
	}
	text(t, h, "bad")
	text(t, h, "1234567890")
	text(t, h, "because")

	// invalid email is reported and asked again
	if len(api.sent) < 2 {
		t.Fatal("expected alert and prompt")
	}
	alertMsg := api.sent[len(api.sent)-2].(tgbotapi.MessageConfig)
	if !strings.Contains(alertMsg.Text, application.ErrInvalidEmail.Message) {
		t.Fatalf("alert = %q", alertMsg.Text)
	}
	if got := api.lastText(t); got != "Email:" {
		t.Fatalf("prompt after failure = %q", got)
	}
	if ok, _ := h.board.IsApplied("p2"); ok {
		t.Fatal("posting must not be applied after a failed validation")
	}

	text(t, h, "a@b.com")
	if got := api.lastText(t); !strings.Contains(got, submittedText) {
		t.Fatalf("expected submitted alert, got %q", got)
	}
	if ok, _ := h.board.IsApplied("p2"); !ok {
		t.Fatal("posting must be applied")
	}
	if h.session.draft.form != (application.Form{}) {
		t.Fatalf("form must be cleared, got %+v", h.session.draft.form)
	}

	sent := len(api.sent)
	press(t, h, "ok")
	if h.session.draft != nil {
		t.Fatal("form must be closed after acknowledgement")
	}
	if len(api.sent) != sent {
		t.Fatal("listing form must not navigate on acknowledgement")
	}

	press(t, h, "apply p2")
	if got := api.lastNotice(t); got != "Applied" {
		t.Fatalf("notice = %q", got)
	}
}

func TestApplicationFromSavedReturnsToListing(t *testing.T) {
	h, api := newTestHandler(t, fakeSource{postings: postings}, true)
	press(t, h, "save p1")
	press(t, h, "apply_saved p1")
	for _, v := range []string{"Jo", "a@b.com", "1234567890", "because"} {
		text(t, h, v)
	}
	press(t, h, "ok")
	got := api.lastText(t)
	if !strings.Contains(got, "Job Finder") || !strings.Contains(got, "Senior Go Developer") {
		t.Fatalf("expected listing after acknowledgement, got %q", got)
	}
}

func TestCloseForm(t *testing.T) {
	h, api := newTestHandler(t, fakeSource{postings: postings}, true)
	press(t, h, "apply p1")
	press(t, h, "close")
	if h.session.draft != nil {
		t.Fatal("form must be closed")
	}
	text(t, h, "Jo")
	if got := api.lastText(t); !strings.Contains(got, "No jobs found.") {
		t.Fatalf("text after close must search, got %q", got)
	}
}

func TestToggleTheme(t *testing.T) {
	h, api := newTestHandler(t, fakeSource{postings: postings}, true)
	press(t, h, "theme")
	if h.theme.Current() != theme.Dark {
		t.Fatalf("theme = %s, want dark", h.theme.Current())
	}
	if got := api.lastText(t); !strings.HasPrefix(got, theme.Dark.Palette().Header) {
		t.Fatalf("listing not rendered in dark theme: %q", got)
	}
	text(t, h, "/theme")
	if h.theme.Current() != theme.Light {
		t.Fatalf("theme = %s, want light", h.theme.Current())
	}
}

func TestUnknownCommand(t *testing.T) {
	h, api := newTestHandler(t, fakeSource{postings: postings}, true)
	text(t, h, "/nope")
	if got := api.lastText(t); got != "Unknown command" {
		t.Fatalf("reply = %q", got)
	}
}
