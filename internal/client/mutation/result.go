package mutation

import "fmt"

// Kind names a write operation.
type Kind string

const (
	KindRegister      Kind = "register"
	KindEdit          Kind = "edit"
	KindDelete        Kind = "delete"
	KindSubmitTest    Kind = "submitTest"
	KindUpdateProfile Kind = "updateProfile"
	KindUploadPicture Kind = "uploadPicture"
)

// Outcome discriminates a Result.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeValidationError
	OutcomeConflict
	OutcomeServerError
	// OutcomeUnauthorized means the credential was rejected and has been
	// dropped; the user must log in again.
	OutcomeUnauthorized
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeValidationError:
		return "validationError"
	case OutcomeConflict:
		return "conflict"
	case OutcomeServerError:
		return "serverError"
	case OutcomeUnauthorized:
		return "unauthorized"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Result is what Perform returns. It never carries a panic or an unclassified
// error: Message is always ready to show.
type Result struct {
	Kind    Kind
	Outcome Outcome
	Message string
	// Ref identifies what was written: a patient id, a test id or a picture
	// reference with a cache-busting marker.
	Ref string
	// Data is the decoded server reply, when there is one.
	Data any
	// Err is the underlying error for logs.
	Err error
}

// OK reports whether the write succeeded.
func (r Result) OK() bool { return r.Outcome == OutcomeOK }
