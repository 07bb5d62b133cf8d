package bot

import (
	"context"
	"encoding/json"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-telegram-bot-api/telegram-bot-api"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/pachmu/job_finder_bot/internal/application"
	"github.com/pachmu/job_finder_bot/internal/jobs"
	"github.com/pachmu/job_finder_bot/internal/theme"
)

// TelegramBot represents bot api.
type TelegramBot interface {
	Run(ctx context.Context) error
}

// NewTelegramBot returns telegram api compatible struct.
func NewTelegramBot(token string, handler *MessageHandler) (TelegramBot, error) {
	b, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return &bot{
		handler: handler,
		bot:     b,
	}, nil
}

const (
	actionStart  = "/start"
	actionJobs   = "/jobs"
	actionSearch = "/search"
	actionSaved  = "/saved"
	actionTheme  = "/theme"
	actionCancel = "/cancel"
)

const (
	callbackJobs       = "jobs"
	callbackSaved      = "saved"
	callbackTheme      = "theme"
	callbackSave       = "save"
	callbackRemove     = "remove"
	callbackApply      = "apply"
	callbackApplySaved = "apply_saved"
	callbackClose      = "close"
	callbackOK         = "ok"
)

// telegramAPI is the part of tgbotapi.BotAPI the handler talks to.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	AnswerCallbackQuery(config tgbotapi.CallbackConfig) (tgbotapi.APIResponse, error)
}

// reply holds the messages produced for an update and, for callbacks, the
// notice shown in the callback answer.
type reply struct {
	messages []tgbotapi.Chattable
	notice   string
}

func replyWith(messages ...tgbotapi.Chattable) *reply {
	return &reply{messages: messages}
}

type botActions map[string]func(ctx context.Context, m *tgbotapi.Message, params []string) (*reply, error)
type botCallbacks map[string]func(ctx context.Context, query *tgbotapi.CallbackQuery, args []string) (*reply, error)

type bot struct {
	handler *MessageHandler
	bot     *tgbotapi.BotAPI
}

func (b *bot) Run(ctx context.Context) error {
	err := b.handler.init(b.bot)
	if err != nil {
		return err
	}
	b.bot.Debug = false

	logrus.Infof("Authorized on account %s", b.bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates, err := b.bot.GetUpdatesChan(u)
	if err != nil {
		return errors.WithStack(err)
	}

	// Do not handle a large backlog of old messages
	time.Sleep(time.Millisecond * 500)
	updates.Clear()

	errGr, ctx := errgroup.WithContext(ctx)
	errGr.Go(func() error {
		b.handler.loadPostings(ctx)
		return nil
	})
	errGr.Go(func() error {
		for {
			var update tgbotapi.Update
			select {
			case update = <-updates:
				err := b.handler.handle(ctx, update)
				if err != nil {
					logrus.Error(err)
				}
			case <-ctx.Done():
				return nil
			}
		}
	})
	return errGr.Wait()
}

// NewMessageHandler returns MessageHandler.
func NewMessageHandler(chatID int64, board *jobs.Board, themes *theme.Switch) *MessageHandler {
	return &MessageHandler{
		chatID: chatID,
		board:  board,
		theme:  themes,
	}
}

// MessageHandler renders the job finder screens into the chat and applies
// user actions to the board.
type MessageHandler struct {
	api       telegramAPI
	chatID    int64
	actions   botActions
	callbacks botCallbacks
	board     *jobs.Board
	theme     *theme.Switch

	// mu guards session.
	mu      sync.Mutex
	session session
	// listingPending is set when the listing was requested before postings
	// were loaded; it is sent once the load completes.
	listingPending atomic.Bool
}

func (h *MessageHandler) init(api telegramAPI) error {
	h.api = api

	h.actions = botActions{
		actionStart: func(ctx context.Context, m *tgbotapi.Message, params []string) (*reply, error) {
			if h.board.State() == jobs.Failed {
				h.listingPending.Store(true)
				go h.loadPostings(ctx)
			}
			return replyWith(menu(m.Chat.ID, h.theme.Current())), nil
		},
		actionJobs: func(ctx context.Context, m *tgbotapi.Message, params []string) (*reply, error) {
			return h.listing(m.Chat.ID)
		},
		actionSearch: func(ctx context.Context, m *tgbotapi.Message, params []string) (*reply, error) {
			h.session.query = strings.TrimSpace(strings.Join(params, " "))
			return h.listing(m.Chat.ID)
		},
		actionSaved: func(ctx context.Context, m *tgbotapi.Message, params []string) (*reply, error) {
			return h.saved(m.Chat.ID)
		},
		actionTheme: func(ctx context.Context, m *tgbotapi.Message, params []string) (*reply, error) {
			return h.toggleTheme(m.Chat.ID)
		},
		actionCancel: func(ctx context.Context, m *tgbotapi.Message, params []string) (*reply, error) {
			if h.session.draft == nil {
				return nil, nil
			}
			h.session.draft = nil
			return replyWith(h.getReplyText(m, "Application form closed.")), nil
		},
	}

	h.callbacks = botCallbacks{
		callbackJobs: func(ctx context.Context, query *tgbotapi.CallbackQuery, args []string) (*reply, error) {
			return h.listing(query.Message.Chat.ID)
		},
		callbackSaved: func(ctx context.Context, query *tgbotapi.CallbackQuery, args []string) (*reply, error) {
			return h.saved(query.Message.Chat.ID)
		},
		callbackTheme: func(ctx context.Context, query *tgbotapi.CallbackQuery, args []string) (*reply, error) {
			return h.toggleTheme(query.Message.Chat.ID)
		},
		callbackSave: func(ctx context.Context, query *tgbotapi.CallbackQuery, args []string) (*reply, error) {
			id, err := postingID(args)
			if err != nil {
				return nil, err
			}
			return h.savePosting(query.Message, id)
		},
		callbackRemove: func(ctx context.Context, query *tgbotapi.CallbackQuery, args []string) (*reply, error) {
			id, err := postingID(args)
			if err != nil {
				return nil, err
			}
			return h.removePosting(query.Message, id)
		},
		callbackApply: func(ctx context.Context, query *tgbotapi.CallbackQuery, args []string) (*reply, error) {
			id, err := postingID(args)
			if err != nil {
				return nil, err
			}
			return h.openForm(query.Message.Chat.ID, id, false)
		},
		callbackApplySaved: func(ctx context.Context, query *tgbotapi.CallbackQuery, args []string) (*reply, error) {
			id, err := postingID(args)
			if err != nil {
				return nil, err
			}
			return h.openForm(query.Message.Chat.ID, id, true)
		},
		callbackClose: func(ctx context.Context, query *tgbotapi.CallbackQuery, args []string) (*reply, error) {
			h.session.draft = nil
			return &reply{notice: "Application form closed"}, nil
		},
		callbackOK: func(ctx context.Context, query *tgbotapi.CallbackQuery, args []string) (*reply, error) {
			return h.acknowledge(query.Message.Chat.ID)
		},
	}

	return nil
}

func (h *MessageHandler) handle(ctx context.Context, upd tgbotapi.Update) error {
	defer func() {
		if err := recover(); err != nil {
			logrus.Error(err, string(debug.Stack()))
		}
	}()

	id := getChat(upd)
	err := h.authorize(id)
	if err != nil {
		return err
	}
	logrus.Infof("Message from chat [%d]", id)
	j, err := json.Marshal(upd)
	if err != nil {
		return err
	}
	logrus.Debugf("Message [%s]", j)

	h.mu.Lock()
	defer h.mu.Unlock()

	var resp *reply
	switch {
	case upd.Message != nil:
		resp, err = h.handleActions(ctx, upd.Message)
	case upd.CallbackQuery != nil:
		resp, err = h.handleCallback(ctx, upd.CallbackQuery)
	default:
		return nil
	}
	if err != nil {
		return err
	}
	if resp == nil {
		return nil
	}
	for _, m := range resp.messages {
		_, err = h.api.Send(m)
		if err != nil {
			return errors.WithStack(err)
		}
	}

	return nil
}

func (h *MessageHandler) getReplyText(m *tgbotapi.Message, txt string) *tgbotapi.MessageConfig {
	resp := tgbotapi.NewMessage(m.Chat.ID, txt)
	return &resp
}

func (h *MessageHandler) handleActions(ctx context.Context, msg *tgbotapi.Message) (*reply, error) {
	logrus.Infof("Message [%+v]", msg.Text)

	if strings.TrimSpace(msg.Text) == "" {
		return nil, nil
	}
	words := strings.Split(msg.Text, " ")
	// Commands in groups carry the bot name: /jobs@bot.
	name := strings.SplitN(words[0], "@", 2)[0]
	if cmd, ok := h.actions[name]; ok {
		return cmd(ctx, msg, words[1:])
	}

	if d := h.session.draft; d != nil && !d.submitted {
		return h.fillForm(msg.Chat.ID, msg.Text)
	}
	if strings.HasPrefix(msg.Text, "/") {
		return replyWith(h.getReplyText(msg, "Unknown command")), nil
	}
	h.session.query = strings.TrimSpace(msg.Text)
	return h.listing(msg.Chat.ID)
}

func (h *MessageHandler) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) (*reply, error) {
	logrus.Infof("Callback [%+v]", query.Data)
	if len(query.Data) == 0 {
		return nil, errors.WithStack(errors.New("failed to execute callback, data is empty"))
	}
	if query.Message == nil {
		return nil, errors.WithStack(errors.New("failed to execute callback, message is missing"))
	}
	args := strings.Split(query.Data, " ")
	callback, ok := h.callbacks[args[0]]
	if !ok {
		return replyWith(h.getReplyText(query.Message, "Unknown callback")), nil
	}

	resp, err := callback(ctx, query, args[1:])
	if err != nil {
		return nil, err
	}
	cfg := tgbotapi.CallbackConfig{
		CallbackQueryID: query.ID,
	}
	if resp != nil {
		cfg.Text = resp.notice
	}
	ans, err := h.api.AnswerCallbackQuery(cfg)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if !ans.Ok {
		return nil, errors.WithStack(errors.New(string(ans.Result)))
	}
	return resp, nil
}

// loadPostings runs the one-shot postings fetch. A failure is reported to the
// chat as an alert.
func (h *MessageHandler) loadPostings(ctx context.Context) {
	err := h.board.Load(ctx)
	if err != nil {
		h.listingPending.Store(false)
		logrus.Errorf("failed to load postings: %v", err)
		h.send(alert(h.chatID, h.theme.Current(), "Error", fetchFailedText))
		return
	}
	if h.board.State() != jobs.Loaded || !h.listingPending.CompareAndSwap(true, false) {
		return
	}

	h.mu.Lock()
	resp, err := h.listing(h.chatID)
	h.mu.Unlock()
	if err != nil {
		logrus.Errorf("failed to render listing: %v", err)
		return
	}
	for _, m := range resp.messages {
		h.send(m)
	}
}

func (h *MessageHandler) send(c tgbotapi.Chattable) {
	if _, err := h.api.Send(c); err != nil {
		logrus.Errorf("failed to send response: %v", err)
	}
}

func (h *MessageHandler) views(postings []jobs.Posting) ([]postingView, error) {
	views := make([]postingView, 0, len(postings))
	for _, p := range postings {
		saved, err := h.board.IsSaved(p.ID)
		if err != nil {
			return nil, err
		}
		applied, err := h.board.IsApplied(p.ID)
		if err != nil {
			return nil, err
		}
		views = append(views, postingView{Posting: p, Saved: saved, Applied: applied})
	}
	return views, nil
}

func (h *MessageHandler) listingViews() ([]postingView, int, error) {
	if h.board.State() != jobs.Loaded {
		return nil, 0, nil
	}
	found := h.board.Search(h.session.query)
	total := len(found)
	if len(found) > maxListed {
		found = found[:maxListed]
	}
	views, err := h.views(found)
	return views, total, err
}

func (h *MessageHandler) listing(chatID int64) (*reply, error) {
	state := h.board.State()
	if state == jobs.NotStarted || state == jobs.Loading {
		h.listingPending.Store(true)
	}
	views, total, err := h.listingViews()
	if err != nil {
		return nil, err
	}
	th := h.theme.Current()
	txt, shown := listingText(th, state, h.session.query, views, total)
	resp := tgbotapi.NewMessage(chatID, txt)
	resp.ReplyMarkup = listingKeyboard(th, views[:shown])
	return replyWith(resp), nil
}

func (h *MessageHandler) savedViews() ([]postingView, error) {
	saved, err := h.board.Saved()
	if err != nil {
		return nil, err
	}
	return h.views(saved)
}

func (h *MessageHandler) saved(chatID int64) (*reply, error) {
	views, err := h.savedViews()
	if err != nil {
		return nil, err
	}
	txt, shown := savedText(h.theme.Current(), views)
	resp := tgbotapi.NewMessage(chatID, txt)
	resp.ReplyMarkup = savedKeyboard(views[:shown])
	return replyWith(resp), nil
}

func (h *MessageHandler) toggleTheme(chatID int64) (*reply, error) {
	th := h.theme.Toggle()
	logrus.Infof("Theme switched to %s", th)
	resp, err := h.listing(chatID)
	if err != nil {
		return nil, err
	}
	resp.notice = "Theme: " + th.String()
	return resp, nil
}

func (h *MessageHandler) savePosting(m *tgbotapi.Message, id string) (*reply, error) {
	posting, ok := h.board.Posting(id)
	if !ok {
		return &reply{notice: "This job is no longer available"}, nil
	}
	saved, err := h.board.IsSaved(id)
	if err != nil {
		return nil, err
	}
	if saved {
		return &reply{notice: "Saved"}, nil
	}
	if err := h.board.AddToSaved(posting); err != nil {
		return nil, err
	}
	views, total, err := h.listingViews()
	if err != nil {
		return nil, err
	}
	th := h.theme.Current()
	_, shown := listingText(th, h.board.State(), h.session.query, views, total)
	edit := tgbotapi.NewEditMessageReplyMarkup(m.Chat.ID, m.MessageID, listingKeyboard(th, views[:shown]))
	return &reply{messages: []tgbotapi.Chattable{edit}, notice: "Job saved"}, nil
}

func (h *MessageHandler) removePosting(m *tgbotapi.Message, id string) (*reply, error) {
	if err := h.board.RemoveFromSaved(id); err != nil {
		return nil, err
	}
	views, err := h.savedViews()
	if err != nil {
		return nil, err
	}
	txt, shown := savedText(h.theme.Current(), views)
	edit := tgbotapi.NewEditMessageText(m.Chat.ID, m.MessageID, txt)
	kb := savedKeyboard(views[:shown])
	edit.ReplyMarkup = &kb
	return &reply{messages: []tgbotapi.Chattable{edit}, notice: "Job removed"}, nil
}

func (h *MessageHandler) openForm(chatID int64, id string, fromSaved bool) (*reply, error) {
	posting, ok := h.board.Posting(id)
	if fromSaved {
		posting, ok = h.findSaved(id)
	}
	if !ok {
		return &reply{notice: "This job is no longer available"}, nil
	}
	applied, err := h.board.IsApplied(id)
	if err != nil {
		return nil, err
	}
	if applied {
		return &reply{notice: "Applied"}, nil
	}
	h.session.draft = newDraft(posting, fromSaved)
	return replyWith(formPrompt(chatID, h.theme.Current(), h.session.draft, true)), nil
}

func (h *MessageHandler) findSaved(id string) (jobs.Posting, bool) {
	saved, err := h.board.Saved()
	if err != nil {
		logrus.Errorf("failed to list saved postings: %v", err)
		return jobs.Posting{}, false
	}
	for _, p := range saved {
		if p.ID == id {
			return p, true
		}
	}
	return jobs.Posting{}, false
}

func (h *MessageHandler) fillForm(chatID int64, text string) (*reply, error) {
	d := h.session.draft
	th := h.theme.Current()
	if !d.fill(text) {
		return replyWith(formPrompt(chatID, th, d, false)), nil
	}

	err := application.Submit(h.board, d.posting.ID, &d.form)
	var verr *application.ValidationError
	if errors.As(err, &verr) {
		d.field = verr.Field
		return replyWith(alert(chatID, th, "Error", verr.Message), formPrompt(chatID, th, d, false)), nil
	}
	if err != nil {
		return nil, err
	}
	d.submitted = true
	logrus.WithField("posting", d.posting.ID).Info("Application submitted")
	return replyWith(alert(chatID, th, submittedTitle, submittedText)), nil
}

// acknowledge handles the Okay action of an alert. After a submitted
// application it closes the form and, when the form was opened from the saved
// jobs, returns to the listing.
func (h *MessageHandler) acknowledge(chatID int64) (*reply, error) {
	d := h.session.draft
	if d == nil || !d.submitted {
		return nil, nil
	}
	h.session.draft = nil
	if d.fromSaved {
		return h.listing(chatID)
	}
	return nil, nil
}

func (h *MessageHandler) authorize(chatID int64) error {
	if chatID != h.chatID {
		return errors.New("unauthorized")
	}
	return nil
}

func postingID(args []string) (string, error) {
	if len(args) == 0 || args[0] == "" {
		return "", errors.WithStack(errors.New("failed to execute callback, posting id is missing"))
	}
	return args[0], nil
}

func getChat(upd tgbotapi.Update) int64 {
	var id int64
	if upd.Message != nil {
		id = upd.Message.Chat.ID
	}
	if upd.CallbackQuery != nil && upd.CallbackQuery.Message != nil {
		id = upd.CallbackQuery.Message.Chat.ID
	}

	return id
}
