package bot

import (
	"fmt"
	"strings"

	"github.com/go-telegram-bot-api/telegram-bot-api"

	"github.com/pachmu/job_finder_bot/internal/application"
	"github.com/pachmu/job_finder_bot/internal/jobs"
	"github.com/pachmu/job_finder_bot/internal/theme"
)

const maxListed = 20

const (
	// maxMessageLen is the Telegram limit on message text, in UTF-16 units.
	maxMessageLen = 4096
	// maxFieldLen bounds a single title, company, salary or query.
	maxFieldLen = 200
	// hintReserve keeps room for the "Showing N of M" line.
	hintReserve = 100
)

const (
	fetchFailedText = "Failed to load jobs. Please try again later."
	submittedTitle  = "Application Submitted"
	submittedText   = "Your application has been submitted successfully!"
)

// postingView is a posting with its saved and applied marks.
type postingView struct {
	jobs.Posting
	Saved   bool
	Applied bool
}

// textLen counts s the way Telegram does, in UTF-16 code units.
func textLen(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxFieldLen {
		return s
	}
	return string(r[:maxFieldLen-1]) + "…"
}

func postingEntry(p theme.Palette, n int, posting jobs.Posting) string {
	return fmt.Sprintf("\n%s %d. %s\n%s %s\n%s %s\n",
		p.Bullet, n, truncate(posting.Title),
		p.Company, truncate(posting.Company),
		p.Salary, truncate(posting.Salary))
}

// writePostings appends as many entries as fit in a message and returns
// how many were written.
func writePostings(b *strings.Builder, p theme.Palette, views []postingView) int {
	size := textLen(b.String())
	for i, v := range views {
		entry := postingEntry(p, i+1, v.Posting)
		n := textLen(entry)
		if size+n > maxMessageLen-hintReserve {
			return i
		}
		b.WriteString(entry)
		size += n
	}
	return len(views)
}

func listingNavRow(p theme.Palette) []tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Go to Saved Jobs", callbackSaved),
		tgbotapi.NewInlineKeyboardButtonData(p.Switch, callbackTheme),
	)
}

// listingText renders the listing screen. It returns the text and the number
// of views it shows, which the keyboard must match.
func listingText(th theme.Theme, state jobs.LoadState, query string, views []postingView, total int) (string, int) {
	p := th.Palette()
	var b strings.Builder
	fmt.Fprintf(&b, "%s Job Finder\n", p.Header)
	if query != "" {
		fmt.Fprintf(&b, "Search: %q\n", truncate(query))
	}
	switch {
	case state == jobs.NotStarted || state == jobs.Loading:
		b.WriteString("\nLoading jobs...")
		return b.String(), 0
	case state == jobs.Failed:
		b.WriteString("\n" + fetchFailedText + " Send /start to retry.")
		return b.String(), 0
	case len(views) == 0:
		b.WriteString("\nNo jobs found.")
		return b.String(), 0
	}
	shown := writePostings(&b, p, views)
	if total > shown {
		fmt.Fprintf(&b, "\nShowing %d of %d jobs. Type a title to narrow the list.", shown, total)
	}
	return b.String(), shown
}

func listingKeyboard(th theme.Theme, views []postingView) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, v := range views {
		save := fmt.Sprintf("%d. Save Job", i+1)
		if v.Saved {
			save = fmt.Sprintf("%d. Saved", i+1)
		}
		apply := fmt.Sprintf("%d. Apply", i+1)
		if v.Applied {
			apply = fmt.Sprintf("%d. Applied", i+1)
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(save, callbackSave+" "+v.ID),
			tgbotapi.NewInlineKeyboardButtonData(apply, callbackApply+" "+v.ID),
		))
	}
	rows = append(rows, listingNavRow(th.Palette()))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// savedText renders the saved jobs screen and returns the number of views it
// shows.
func savedText(th theme.Theme, views []postingView) (string, int) {
	p := th.Palette()
	var b strings.Builder
	fmt.Fprintf(&b, "%s Saved Jobs\n", p.Header)
	if len(views) == 0 {
		b.WriteString("\nNo saved jobs yet.")
		return b.String(), 0
	}
	listed := views
	if len(listed) > maxListed {
		listed = listed[:maxListed]
	}
	shown := writePostings(&b, p, listed)
	if len(views) > shown {
		fmt.Fprintf(&b, "\nShowing %d of %d saved jobs. Remove some to see the rest.", shown, len(views))
	}
	return b.String(), shown
}

func savedKeyboard(views []postingView) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, v := range views {
		apply := fmt.Sprintf("%d. Apply", i+1)
		if v.Applied {
			apply = fmt.Sprintf("%d. Applied", i+1)
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%d. Remove Job", i+1), callbackRemove+" "+v.ID),
			tgbotapi.NewInlineKeyboardButtonData(apply, callbackApplySaved+" "+v.ID),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Back to Job Finder", callbackJobs),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func formPrompt(chatID int64, th theme.Theme, d *draft, withHeader bool) tgbotapi.MessageConfig {
	var b strings.Builder
	if withHeader {
		fmt.Fprintf(&b, "%s Application Form\nJob Title: %s\n\n", th.Palette().Header, truncate(d.posting.Title))
	}
	label := d.field.String()
	if !strings.HasSuffix(label, "?") {
		label += ":"
	}
	b.WriteString(label)
	if d.field == application.FieldPhone {
		b.WriteString(" (10-15 digits)")
	}
	resp := tgbotapi.NewMessage(chatID, b.String())
	resp.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Close", callbackClose)),
	)
	return resp
}

// alert is a message with a single acknowledgement action.
func alert(chatID int64, th theme.Theme, title, text string) tgbotapi.MessageConfig {
	resp := tgbotapi.NewMessage(chatID, fmt.Sprintf("%s %s\n%s", th.Palette().Header, title, text))
	resp.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Okay", callbackOK)),
	)
	return resp
}

func menu(chatID int64, th theme.Theme) tgbotapi.MessageConfig {
	p := th.Palette()
	resp := tgbotapi.NewMessage(chatID, fmt.Sprintf(
		"%s Hey! Browse jobs, type a title to search, save the ones you like and apply.", p.Header))
	resp.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Browse Jobs", callbackJobs),
		),
		listingNavRow(p),
	)
	return resp
}
