// Package mutation performs writes against the API and resynchronizes the
// collections they affect.
package mutation

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/atinyakov/MedKeeper/internal/client/collection"
	"github.com/atinyakov/MedKeeper/internal/client/gateway"
	"github.com/atinyakov/MedKeeper/internal/client/transfer"
	"github.com/atinyakov/MedKeeper/internal/logger"
	"github.com/atinyakov/MedKeeper/internal/models"
)

// Backend is the part of the API client the coordinator writes through.
type Backend interface {
	CreatePatient(ctx context.Context, in models.PatientInput) (models.PatientAck, error)
	UpdatePatient(ctx context.Context, id int64, in models.PatientInput) (models.PatientAck, error)
	DeletePatient(ctx context.Context, id int64) error
	SubmitTest(ctx context.Context, patientID int64, image gateway.File) (models.TestSubmitted, error)
	UpdateMe(ctx context.Context, in models.ProfileUpdate) (models.ProfileUpdated, error)
	UploadProfilePicture(ctx context.Context, picture gateway.File) (models.PictureUploaded, error)
}

// Reloader is anything that can refetch its authoritative state, such as a
// *collection.Store.
type Reloader interface {
	Load(ctx context.Context) error
}

// Resync targets.
const (
	TargetPatients = "patients"
	TargetProfile  = "profile"
)

// PatientTarget names the detail view of one patient.
func PatientTarget(id int64) string { return "patient/" + strconv.FormatInt(id, 10) }

// TestsTarget names the test list of one patient.
func TestsTarget(patientID int64) string { return "tests/" + strconv.FormatInt(patientID, 10) }

// Coordinator runs mutations.
type Coordinator struct {
	backend  Backend
	validate *validator.Validate
	log      *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	nextID   int
	reloader map[string]map[int]Reloader
}

// New creates a Coordinator.
func New(backend Backend, log *zap.Logger) *Coordinator {
	return &Coordinator{
		backend:  backend,
		validate: models.Validator(),
		log:      logger.OrNop(log),
		now:      time.Now,
		reloader: make(map[string]map[int]Reloader),
	}
}

// Attach registers r to be reloaded after writes that affect target.
func (c *Coordinator) Attach(target string, r Reloader) (detach func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	if c.reloader[target] == nil {
		c.reloader[target] = make(map[int]Reloader)
	}
	c.reloader[target][id] = r
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.reloader[target], id)
		if len(c.reloader[target]) == 0 {
			delete(c.reloader, target)
		}
	}
}

// Attached returns how many reloaders listen on target.
func (c *Coordinator) Attached(target string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.reloader[target])
}

// Perform validates payload, executes the write and, on success, reloads
// every collection attached to the affected targets before returning.
func (c *Coordinator) Perform(ctx context.Context, kind Kind, payload any) Result {
	res := c.perform(ctx, kind, payload)
	res.Kind = kind
	if res.OK() {
		c.log.Info("mutation applied", zap.String("kind", string(kind)), zap.String("ref", res.Ref))
	} else {
		c.log.Info("mutation rejected",
			zap.String("kind", string(kind)),
			zap.Stringer("outcome", res.Outcome),
			zap.Error(res.Err),
		)
	}
	return res
}

func (c *Coordinator) perform(ctx context.Context, kind Kind, payload any) Result {
	switch kind {
	case KindRegister:
		p, ok := asPayload[Register](payload)
		if !ok {
			return invalid(MsgBadPayload)
		}
		in, msg := checkPatient(c.validate, p.Form)
		if msg != "" {
			return invalid(msg)
		}
		ack, err := c.backend.CreatePatient(ctx, in)
		if err != nil {
			return c.failed(err, MsgDuplicate)
		}
		c.resync(ctx, TargetPatients)
		return Result{Outcome: OutcomeOK, Message: orDefault(ack.Message, "Patient registered."), Ref: strconv.FormatInt(ack.PatientID, 10), Data: ack}

	case KindEdit:
		p, ok := asPayload[Edit](payload)
		if !ok {
			return invalid(MsgBadPayload)
		}
		if p.PatientID <= 0 {
			return invalid(MsgNoPatient)
		}
		in, msg := checkPatient(c.validate, p.Form)
		if msg != "" {
			return invalid(msg)
		}
		ack, err := c.backend.UpdatePatient(ctx, p.PatientID, in)
		if err != nil {
			return c.failed(err, MsgDuplicate)
		}
		c.resync(ctx, TargetPatients, PatientTarget(p.PatientID))
		return Result{Outcome: OutcomeOK, Message: orDefault(ack.Message, "Patient updated."), Ref: strconv.FormatInt(p.PatientID, 10), Data: ack}

	case KindDelete:
		p, ok := asPayload[Delete](payload)
		if !ok {
			return invalid(MsgBadPayload)
		}
		if p.PatientID <= 0 {
			return invalid(MsgNoPatient)
		}
		if err := c.backend.DeletePatient(ctx, p.PatientID); err != nil {
			return c.failed(err, "")
		}
		c.resync(ctx, TargetPatients)
		return Result{Outcome: OutcomeOK, Message: "Patient deleted.", Ref: strconv.FormatInt(p.PatientID, 10)}

	case KindSubmitTest:
		p, ok := asPayload[SubmitTest](payload)
		if !ok {
			return invalid(MsgBadPayload)
		}
		if p.PatientID <= 0 {
			return invalid(MsgNoPatient)
		}
		if p.Image.Content == nil {
			return invalid(MsgNoImage)
		}
		out, err := c.backend.SubmitTest(ctx, p.PatientID, p.Image)
		if err != nil {
			return c.failed(err, "")
		}
		c.resync(ctx, TestsTarget(p.PatientID))
		return Result{Outcome: OutcomeOK, Message: orDefault(out.Message, "Test submitted."), Ref: strconv.FormatInt(out.TestID, 10), Data: out}

	case KindUpdateProfile:
		p, ok := asPayload[UpdateProfile](payload)
		if !ok {
			return invalid(MsgBadPayload)
		}
		if msg := checkProfile(c.validate, p.Profile); msg != "" {
			return invalid(msg)
		}
		out, err := c.backend.UpdateMe(ctx, p.Profile)
		if err != nil {
			return c.failed(err, "")
		}
		c.resync(ctx, TargetProfile)
		return Result{Outcome: OutcomeOK, Message: orDefault(out.Message, "Profile updated."), Data: out}

	case KindUploadPicture:
		p, ok := asPayload[UploadPicture](payload)
		if !ok {
			return invalid(MsgBadPayload)
		}
		if p.Picture.Content == nil {
			return invalid(MsgNoPicture)
		}
		out, err := c.backend.UploadProfilePicture(ctx, p.Picture)
		if err != nil {
			return c.failed(err, "")
		}
		c.resync(ctx, TargetProfile)
		return Result{
			Outcome: OutcomeOK,
			Message: orDefault(out.Message, "Profile picture updated."),
			Ref:     transfer.CacheBust(out.ProfilePicture, c.now()),
			Data:    out,
		}
	}
	return invalid(MsgBadPayload)
}

// asPayload accepts both a value and a pointer payload.
func asPayload[T any](payload any) (T, bool) {
	switch p := payload.(type) {
	case T:
		return p, true
	case *T:
		if p != nil {
			return *p, true
		}
	}
	var zero T
	return zero, false
}

// resync reloads every reloader attached to targets, in order.
func (c *Coordinator) resync(ctx context.Context, targets ...string) {
	for _, target := range targets {
		c.mu.Lock()
		rs := make([]Reloader, 0, len(c.reloader[target]))
		for _, r := range c.reloader[target] {
			rs = append(rs, r)
		}
		c.mu.Unlock()

		for _, r := range rs {
			err := r.Load(ctx)
			switch {
			case err == nil,
				errors.Is(err, collection.ErrSuperseded),
				errors.Is(err, collection.ErrClosed):
			default:
				c.log.Warn("resync failed", zap.String("target", target), zap.Error(err))
			}
		}
	}
}

// failed converts a gateway error into a Result. conflictMsg replaces the
// server message for 409 when set.
func (c *Coordinator) failed(err error, conflictMsg string) Result {
	res := Result{Err: err, Message: gateway.MessageOf(err)}
	switch gateway.KindOf(err) {
	case gateway.KindUnauthorized:
		res.Outcome = OutcomeUnauthorized
	case gateway.KindConflict:
		res.Outcome = OutcomeConflict
		if conflictMsg != "" {
			res.Message = conflictMsg
		}
	case gateway.KindClient:
		res.Outcome = OutcomeValidationError
		if strings.TrimSpace(res.Message) == "" {
			res.Message = msgRejected
		}
	default:
		res.Outcome = OutcomeServerError
	}
	return res
}

func invalid(msg string) Result {
	return Result{Outcome: OutcomeValidationError, Message: msg}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
