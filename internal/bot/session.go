package bot

import (
	"github.com/pachmu/job_finder_bot/internal/application"
	"github.com/pachmu/job_finder_bot/internal/jobs"
)

// session is the transient UI state of the served chat.
type session struct {
	query string
	draft *draft
}

// draft is an application form in progress.
type draft struct {
	posting   jobs.Posting
	fromSaved bool
	form      application.Form
	field     application.Field
	// reviewing is set once every field was asked; further input goes
	// straight to validation.
	reviewing bool
	submitted bool
}

func newDraft(p jobs.Posting, fromSaved bool) *draft {
	return &draft{
		posting:   p,
		fromSaved: fromSaved,
		field:     application.FieldName,
	}
}

// fill stores value into the current field and reports whether the form is
// ready to be submitted.
func (d *draft) fill(value string) bool {
	d.form.Set(d.field, value)
	if d.reviewing || d.field == application.FieldReason {
		d.reviewing = true
		return true
	}
	d.field++
	return false
}
