// Package application validates and submits the job application form.
package application

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// ValidationError is a rejected form field. Message is shown to the user as is.
type ValidationError struct {
	Field   Field
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

var (
	ErrMissingName   = &ValidationError{Field: FieldName, Message: "Name is required."}
	ErrInvalidEmail  = &ValidationError{Field: FieldEmail, Message: "Please enter a valid email address."}
	ErrInvalidPhone  = &ValidationError{Field: FieldPhone, Message: "Please enter a valid contact number (10-15 digits)."}
	ErrMissingReason = &ValidationError{Field: FieldReason, Message: "Reason is required."}
)

var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRe = regexp.MustCompile(`^[0-9]{10,15}$`)
)

// Field names a form input. Fields are filled and validated in this order.
type Field int

const (
	FieldName Field = iota
	FieldEmail
	FieldPhone
	FieldReason
)

// Fields lists the form inputs in order.
var Fields = []Field{FieldName, FieldEmail, FieldPhone, FieldReason}

func (f Field) String() string {
	switch f {
	case FieldName:
		return "Name"
	case FieldEmail:
		return "Email"
	case FieldPhone:
		return "Contact Number"
	case FieldReason:
		return "Why should we hire you?"
	}
	return "Unknown"
}

// Form holds the free text inputs of an application.
type Form struct {
	Name   string
	Email  string
	Phone  string
	Reason string
}

// Set stores value into field.
func (f *Form) Set(field Field, value string) {
	switch field {
	case FieldName:
		f.Name = value
	case FieldEmail:
		f.Email = value
	case FieldPhone:
		f.Phone = value
	case FieldReason:
		f.Reason = value
	}
}

// Reset clears all fields.
func (f *Form) Reset() {
	*f = Form{}
}

// Validate checks the fields in order and returns the first failure.
func (f Form) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return ErrMissingName
	}
	if strings.TrimSpace(f.Email) == "" || !emailRe.MatchString(f.Email) {
		return ErrInvalidEmail
	}
	if strings.TrimSpace(f.Phone) == "" || !phoneRe.MatchString(f.Phone) {
		return ErrInvalidPhone
	}
	if strings.TrimSpace(f.Reason) == "" {
		return ErrMissingReason
	}
	return nil
}

// Marker records a successful application.
type Marker interface {
	MarkApplied(id string) error
}

// Submit validates form and marks postingID as applied. Submission is local,
// nothing is sent over the network. The form is cleared on success.
func Submit(m Marker, postingID string, form *Form) error {
	if err := form.Validate(); err != nil {
		return err
	}
	if err := m.MarkApplied(postingID); err != nil {
		return errors.Wrapf(err, "failed to submit application for %s", postingID)
	}
	form.Reset()
	return nil
}
