package mutation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/MedKeeper/internal/client/collection"
	"github.com/atinyakov/MedKeeper/internal/client/gateway"
	"github.com/atinyakov/MedKeeper/internal/models"
)

// fakeBackend keeps patients in memory and fails on demand.
type fakeBackend struct {
	patients []models.Patient
	nextID   int64
	err      error
	calls    int
	lastIn   models.PatientInput
}

func (f *fakeBackend) CreatePatient(_ context.Context, in models.PatientInput) (models.PatientAck, error) {
	f.calls++
	f.lastIn = in
	if f.err != nil {
		return models.PatientAck{}, f.err
	}
	f.nextID++
	f.patients = append(f.patients, models.Patient{ID: f.nextID, Name: in.Name, Phone: in.Phone})
	return models.PatientAck{Message: "Patient created successfully", PatientID: f.nextID}, nil
}

func (f *fakeBackend) UpdatePatient(_ context.Context, id int64, in models.PatientInput) (models.PatientAck, error) {
	f.calls++
	if f.err != nil {
		return models.PatientAck{}, f.err
	}
	return models.PatientAck{PatientID: id}, nil
}

func (f *fakeBackend) DeletePatient(_ context.Context, id int64) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	for i, p := range f.patients {
		if p.ID == id {
			f.patients = append(f.patients[:i], f.patients[i+1:]...)
			return nil
		}
	}
	return &gateway.Error{Kind: gateway.KindClient, Status: 404, Message: "Patient not found"}
}

func (f *fakeBackend) SubmitTest(_ context.Context, patientID int64, _ gateway.File) (models.TestSubmitted, error) {
	f.calls++
	if f.err != nil {
		return models.TestSubmitted{}, f.err
	}
	return models.TestSubmitted{PatientID: patientID, TestID: 77, Result: "NORMAL", Confidence: 0.9}, nil
}

func (f *fakeBackend) UpdateMe(_ context.Context, in models.ProfileUpdate) (models.ProfileUpdated, error) {
	f.calls++
	if f.err != nil {
		return models.ProfileUpdated{}, f.err
	}
	return models.ProfileUpdated{Message: "Profile updated successfully.", User: models.User{ID: 1, DisplayName: in.DisplayName}}, nil
}

func (f *fakeBackend) UploadProfilePicture(_ context.Context, _ gateway.File) (models.PictureUploaded, error) {
	f.calls++
	if f.err != nil {
		return models.PictureUploaded{}, f.err
	}
	return models.PictureUploaded{ProfilePicture: "/uploads/profile_pictures/me.png"}, nil
}

type countingReloader struct{ n int }

func (c *countingReloader) Load(context.Context) error { c.n++; return nil }

func validForm() models.PatientForm {
	return models.PatientForm{
		Name:        "Ann",
		DateOfBirth: "1990-01-31",
		Gender:      "female",
		CountryCode: "+86",
		LocalPhone:  "13800138000",
	}
}

func TestPerform_RegisterResyncsPatients(t *testing.T) {
	be := &fakeBackend{}
	c := New(be, nil)
	store := collection.New(collection.Config[models.Patient]{
		Name:     "patients",
		Load:     func(context.Context) ([]models.Patient, error) { return append([]models.Patient(nil), be.patients...), nil },
		Match:    collection.PatientMatch,
		PageSize: 7,
	})
	defer store.Close()
	c.Attach(TargetPatients, store)

	res := c.Perform(context.Background(), KindRegister, Register{Form: validForm()})
	require.True(t, res.OK(), res.Message)
	assert.Equal(t, KindRegister, res.Kind)
	assert.Equal(t, "1", res.Ref)
	assert.Equal(t, "+8613800138000", be.lastIn.Phone)
	assert.Equal(t, models.GenderFemale, be.lastIn.Gender)

	n := 0
	for _, p := range store.All() {
		if p.ID == 1 {
			n++
		}
	}
	assert.Equal(t, 1, n)
}

func TestPerform_Validation(t *testing.T) {
	cases := []struct {
		name    string
		kind    Kind
		payload any
		msg     string
	}{
		{"missing name", KindRegister, Register{Form: func() models.PatientForm { f := validForm(); f.Name = " "; return f }()}, MsgRequired},
		{"missing local phone", KindRegister, Register{Form: func() models.PatientForm { f := validForm(); f.LocalPhone = ""; return f }()}, MsgRequired},
		{"missing gender", KindRegister, Register{Form: func() models.PatientForm { f := validForm(); f.Gender = ""; return f }()}, MsgRequired},
		{"bad phone", KindRegister, Register{Form: func() models.PatientForm { f := validForm(); f.CountryCode = "+0"; return f }()}, MsgPhone},
		{"letters in phone", KindRegister, Register{Form: func() models.PatientForm { f := validForm(); f.LocalPhone = "12ab"; return f }()}, MsgPhone},
		{"bad date", KindRegister, Register{Form: func() models.PatientForm { f := validForm(); f.DateOfBirth = "31.01.1990"; return f }()}, MsgDate},
		{"bad gender", KindRegister, Register{Form: func() models.PatientForm { f := validForm(); f.Gender = "robot"; return f }()}, MsgGender},
		{"edit without id", KindEdit, Edit{Form: validForm()}, MsgNoPatient},
		{"delete without id", KindDelete, Delete{}, MsgNoPatient},
		{"test without image", KindSubmitTest, SubmitTest{PatientID: 3}, MsgNoImage},
		{"profile without name", KindUpdateProfile, UpdateProfile{}, MsgRequired},
		{"profile bad email", KindUpdateProfile, UpdateProfile{Profile: models.ProfileUpdate{DisplayName: "A", Email: "nope"}}, MsgEmail},
		{"picture without content", KindUploadPicture, UploadPicture{}, MsgNoPicture},
		{"wrong payload", KindDelete, Register{}, MsgBadPayload},
		{"unknown kind", Kind("archive"), Delete{PatientID: 1}, MsgBadPayload},
		{"nil pointer payload", KindDelete, (*Delete)(nil), MsgBadPayload},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			be := &fakeBackend{}
			c := New(be, nil)
			r := &countingReloader{}
			c.Attach(TargetPatients, r)

			res := c.Perform(context.Background(), tc.kind, tc.payload)
			assert.Equal(t, OutcomeValidationError, res.Outcome)
			assert.Equal(t, tc.msg, res.Message)
			assert.Zero(t, be.calls, "backend must not be called")
			assert.Zero(t, r.n)
		})
	}
}

func TestPerform_PointerPayload(t *testing.T) {
	be := &fakeBackend{patients: []models.Patient{{ID: 5}}}
	c := New(be, nil)
	res := c.Perform(context.Background(), KindDelete, &Delete{PatientID: 5})
	assert.True(t, res.OK())
}

func TestPerform_ErrorMapping(t *testing.T) {
	cases := []struct {
		name    string
		kind    Kind
		payload any
		err     error
		outcome Outcome
		msg     string
	}{
		{"duplicate phone", KindRegister, Register{Form: validForm()},
			&gateway.Error{Kind: gateway.KindConflict, Status: 409, Message: "Phone number already registered"},
			OutcomeConflict, MsgDuplicate},
		{"server detail surfaced", KindEdit, Edit{PatientID: 2, Form: validForm()},
			&gateway.Error{Kind: gateway.KindClient, Status: 400, Message: "Invalid date format. Use YYYY-MM-DD."},
			OutcomeValidationError, "Invalid date format. Use YYYY-MM-DD."},
		{"server error", KindSubmitTest, SubmitTest{PatientID: 2, Image: gateway.File{Content: strings.NewReader("x")}},
			&gateway.Error{Kind: gateway.KindServer, Status: 500, Message: "try later"},
			OutcomeServerError, "try later"},
		{"network", KindUpdateProfile, UpdateProfile{Profile: models.ProfileUpdate{DisplayName: "A"}},
			&gateway.Error{Kind: gateway.KindNetwork, Message: "offline"},
			OutcomeServerError, "offline"},
		{"unauthorized", KindUploadPicture, UploadPicture{Picture: gateway.File{Content: strings.NewReader("x")}},
			&gateway.Error{Kind: gateway.KindUnauthorized, Status: 401, Message: "log in"},
			OutcomeUnauthorized, "log in"},
		{"unclassified", KindDelete, Delete{PatientID: 9}, errors.New("boom"), OutcomeServerError, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			be := &fakeBackend{err: tc.err}
			c := New(be, nil)
			r := &countingReloader{}
			for _, target := range []string{TargetPatients, TargetProfile, TestsTarget(2), PatientTarget(2)} {
				c.Attach(target, r)
			}
			res := c.Perform(context.Background(), tc.kind, tc.payload)
			assert.Equal(t, tc.outcome, res.Outcome)
			if tc.msg != "" {
				assert.Equal(t, tc.msg, res.Message)
			} else {
				assert.NotEmpty(t, res.Message)
			}
			assert.ErrorIs(t, res.Err, tc.err)
			assert.Zero(t, r.n, "failed writes must not resync")
		})
	}
}

func TestPerform_DeleteTwiceIsClientError(t *testing.T) {
	be := &fakeBackend{patients: []models.Patient{{ID: 4, Name: "Ann"}}}
	c := New(be, nil)
	require.True(t, c.Perform(context.Background(), KindDelete, Delete{PatientID: 4}).OK())

	res := c.Perform(context.Background(), KindDelete, Delete{PatientID: 4})
	assert.Equal(t, OutcomeValidationError, res.Outcome)
	assert.Equal(t, "Patient not found", res.Message)
	assert.Equal(t, 2, be.calls)
}

func TestPerform_ResyncTargets(t *testing.T) {
	cases := []struct {
		kind    Kind
		payload any
		targets []string
	}{
		{KindRegister, Register{Form: validForm()}, []string{TargetPatients}},
		{KindEdit, Edit{PatientID: 2, Form: validForm()}, []string{TargetPatients, PatientTarget(2)}},
		{KindDelete, Delete{PatientID: 2}, []string{TargetPatients}},
		{KindSubmitTest, SubmitTest{PatientID: 2, Image: gateway.File{Content: strings.NewReader("x")}}, []string{TestsTarget(2)}},
		{KindUpdateProfile, UpdateProfile{Profile: models.ProfileUpdate{DisplayName: "Dr"}}, []string{TargetProfile}},
		{KindUploadPicture, UploadPicture{Picture: gateway.File{Content: strings.NewReader("x")}}, []string{TargetProfile}},
	}
	all := []string{TargetPatients, TargetProfile, PatientTarget(2), TestsTarget(2)}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			be := &fakeBackend{patients: []models.Patient{{ID: 2}}}
			c := New(be, nil)
			reloaders := map[string]*countingReloader{}
			for _, target := range all {
				reloaders[target] = &countingReloader{}
				c.Attach(target, reloaders[target])
			}
			require.True(t, c.Perform(context.Background(), tc.kind, tc.payload).OK())
			for _, target := range all {
				want := 0
				for _, tt := range tc.targets {
					if tt == target {
						want = 1
					}
				}
				assert.Equal(t, want, reloaders[target].n, "target %s", target)
			}
		})
	}
}

func TestPerform_UploadPictureCacheBusts(t *testing.T) {
	c := New(&fakeBackend{}, nil)
	c.now = func() time.Time { return time.UnixMilli(1700000000000) }
	res := c.Perform(context.Background(), KindUploadPicture, UploadPicture{Picture: gateway.File{Content: strings.NewReader("x")}})
	require.True(t, res.OK())
	assert.Equal(t, "/uploads/profile_pictures/me.png?timestamp=1700000000000", res.Ref)
}

func TestPerform_SubmitTestRef(t *testing.T) {
	c := New(&fakeBackend{}, nil)
	res := c.Perform(context.Background(), KindSubmitTest, SubmitTest{PatientID: 3, Image: gateway.File{Content: strings.NewReader("x")}})
	require.True(t, res.OK())
	assert.Equal(t, "77", res.Ref)
	out, ok := res.Data.(models.TestSubmitted)
	require.True(t, ok)
	assert.Equal(t, "NORMAL", out.Result)
}

func TestAttach_Detach(t *testing.T) {
	c := New(&fakeBackend{}, nil)
	r := &countingReloader{}
	detach := c.Attach(TargetPatients, r)
	assert.Equal(t, 1, c.Attached(TargetPatients))
	detach()
	assert.Equal(t, 0, c.Attached(TargetPatients))

	require.True(t, c.Perform(context.Background(), KindRegister, Register{Form: validForm()}).OK())
	assert.Zero(t, r.n)
}

func TestPerform_ClosedStoreIgnored(t *testing.T) {
	c := New(&fakeBackend{}, nil)
	store := collection.New(collection.Config[models.Patient]{
		Load: func(context.Context) ([]models.Patient, error) { return nil, nil },
	})
	store.Close()
	c.Attach(TargetPatients, store)
	assert.True(t, c.Perform(context.Background(), KindRegister, Register{Form: validForm()}).OK())
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "ok", OutcomeOK.String())
	assert.Equal(t, "conflict", OutcomeConflict.String())
	assert.Equal(t, "unauthorized", OutcomeUnauthorized.String())
	assert.Equal(t, "outcome(42)", Outcome(42).String())
}
