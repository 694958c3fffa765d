package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/atinyakov/MedKeeper/internal/client/app"
	"github.com/atinyakov/MedKeeper/internal/client/collection"
	"github.com/atinyakov/MedKeeper/internal/client/mutation"
	"github.com/atinyakov/MedKeeper/internal/client/prompt"
	"github.com/atinyakov/MedKeeper/internal/client/transfer"
	"github.com/atinyakov/MedKeeper/internal/models"
)

const shellHelp = `Available commands:
  login                       sign in
  patients                    list patients
  search <text>               filter the patient list by name or phone
  page <n>                    show page n of the patient list
  show <patientId>            patient details and tests
  register                    register a patient
  edit <patientId>            edit a patient
  delete <patientId>          delete a patient
  submit <patientId> <image>  submit an X-ray image
  test <testId>               test details
  report <testId> [dir]       download the PDF report
  profile                     show your profile
  edit-profile                change your profile
  picture <image>             upload a profile picture
  logout                      sign out
  exit                        leave the shell`

type shell struct {
	app     *app.App
	out     io.Writer
	prompt  *prompt.Prompter
	patient *app.View[models.Patient]
}

// newShell creates a shell. Commands and form answers share one prompter.
func newShell(a *app.App, in io.Reader, out io.Writer) *shell {
	return &shell{app: a, out: out, prompt: prompt.New(in, out)}
}

// run reads commands until exit or end of input.
func (s *shell) run(ctx context.Context) {
	defer s.closePatients()
	for {
		line, ok := s.prompt.Next("medkeeper> ")
		if !ok {
			return
		}
		if line == "" {
			continue
		}
		if !s.exec(ctx, strings.Fields(line)) {
			return
		}
	}
}

func (s *shell) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

// visit routes path through the guard and reports whether it may render.
func (s *shell) visit(path string) bool {
	d := s.app.Router.Go(path)
	if d.Path != path {
		s.printf("Please log in first.\n")
		return false
	}
	return true
}

// exec runs one command and reports whether the shell should continue.
func (s *shell) exec(ctx context.Context, args []string) bool {
	switch args[0] {
	case "help":
		s.printf("%s\n", shellHelp)
	case "exit", "quit":
		s.printf("Bye\n")
		return false
	case "login":
		username, password := s.prompt.Credentials()
		if _, err := s.app.Login(ctx, username, password); err != nil {
			s.printf("Login failed: %s\n", userError(err))
			return true
		}
		s.printf("Logged in.\n")
	case "logout":
		if err := s.app.Logout(); err != nil {
			s.printf("Logout: %v\n", err)
		}
		s.printf("Logged out.\n")
	case "patients":
		if s.visit("/manage-patients") {
			s.listPatients(ctx)
		}
	case "search":
		if s.visit("/manage-patients") && s.ensurePatients(ctx) {
			s.patient.SetFilter(strings.Join(args[1:], " "))
			s.printPatients()
		}
	case "page":
		n, ok := s.intArg(args, 1, "page <n>")
		if ok && s.visit("/manage-patients") && s.ensurePatients(ctx) {
			if !s.patient.SetPage(int(n)) {
				s.printf("No such page.\n")
			}
			s.printPatients()
		}
	case "show":
		if id, ok := s.intArg(args, 1, "show <patientId>"); ok && s.visit(fmt.Sprintf("/patients/%d", id)) {
			s.showPatient(ctx, id)
		}
	case "register":
		if s.visit("/register-patient") {
			form := s.prompt.Patient(s.app.Options().CountryCode, nil)
			s.report(s.app.Mutations.Perform(ctx, mutation.KindRegister, mutation.Register{Form: form}))
		}
	case "edit":
		if id, ok := s.intArg(args, 1, "edit <patientId>"); ok && s.visit(fmt.Sprintf("/edit-patient/%d", id)) {
			s.editPatient(ctx, id)
		}
	case "delete":
		if id, ok := s.intArg(args, 1, "delete <patientId>"); ok && s.visit("/manage-patients") {
			if s.prompt.Confirm(fmt.Sprintf("Delete patient %d?", id)) {
				s.report(s.app.Mutations.Perform(ctx, mutation.KindDelete, mutation.Delete{PatientID: id}))
			}
		}
	case "submit":
		id, ok := s.intArg(args, 1, "submit <patientId> <image>")
		if ok && len(args) < 3 {
			s.printf("Usage: submit <patientId> <image>\n")
			ok = false
		}
		if ok && s.visit(fmt.Sprintf("/submit-test/%d", id)) {
			s.submitTest(ctx, id, args[2])
		}
	case "test":
		if id, ok := s.intArg(args, 1, "test <testId>"); ok && s.visit(fmt.Sprintf("/test/%d", id)) {
			s.showTest(ctx, id)
		}
	case "report":
		if id, ok := s.intArg(args, 1, "report <testId> [dir]"); ok && s.visit(fmt.Sprintf("/test/%d", id)) {
			dir := ""
			if len(args) > 2 {
				dir = args[2]
			}
			s.downloadReport(ctx, id, dir)
		}
	case "profile":
		if s.visit("/profile") {
			if u, ok := s.loadProfile(ctx); ok {
				s.printUser(u)
			}
		}
	case "edit-profile":
		if s.visit("/profile") {
			if u, ok := s.loadProfile(ctx); ok {
				upd := s.prompt.Profile(u)
				s.report(s.app.Mutations.Perform(ctx, mutation.KindUpdateProfile, mutation.UpdateProfile{Profile: upd}))
			}
		}
	case "picture":
		if len(args) < 2 {
			s.printf("Usage: picture <image>\n")
			return true
		}
		if s.visit("/profile") {
			s.uploadPicture(ctx, args[1])
		}
	default:
		s.printf("Unknown command. Type 'help' for a list of commands.\n")
	}
	return true
}

func (s *shell) intArg(args []string, i int, usage string) (int64, bool) {
	if len(args) <= i {
		s.printf("Usage: %s\n", usage)
		return 0, false
	}
	n, err := strconv.ParseInt(args[i], 10, 64)
	if err != nil || n <= 0 {
		s.printf("Usage: %s\n", usage)
		return 0, false
	}
	return n, true
}

func (s *shell) report(res mutation.Result) {
	s.printf("%s\n", res.Message)
	if res.Outcome == mutation.OutcomeUnauthorized {
		s.printf("Please log in again.\n")
	}
}

func (s *shell) closePatients() {
	if s.patient != nil {
		s.patient.Close()
		s.patient = nil
	}
}

// ensurePatients opens and loads the patient list unless a live one exists.
func (s *shell) ensurePatients(ctx context.Context) bool {
	if s.patient != nil && !s.patient.Closed() && s.patient.Snapshot().Loaded {
		return true
	}
	return s.loadPatients(ctx)
}

func (s *shell) loadPatients(ctx context.Context) bool {
	if s.patient == nil || s.patient.Closed() {
		s.patient = s.app.OpenPatients()
	}
	if err := s.patient.Load(ctx); err != nil {
		s.printf("Failed to load patients: %s\n", loadError(err))
		return false
	}
	return true
}

func (s *shell) listPatients(ctx context.Context) {
	if s.loadPatients(ctx) {
		s.printPatients()
	}
}

func (s *shell) printPatients() {
	snap := s.patient.Snapshot()
	if snap.Filtered == 0 {
		s.printf("No patients found.\n")
		return
	}
	for _, p := range snap.Items {
		s.printf("%-5d %-24s %-10s %-7s %s\n", p.ID, p.Name, p.DateOfBirth, p.Gender, p.Phone)
	}
	s.printf("Page %d of %d (%d patients)\n", snap.Page, snap.TotalPages, snap.Filtered)
}

func (s *shell) showPatient(ctx context.Context, id int64) {
	detail := s.app.OpenPatient(id)
	defer detail.Close()
	if err := detail.Load(ctx); err != nil {
		s.printf("Failed to load patient: %s\n", loadError(err))
		return
	}
	p := detail.All()[0]
	s.printf("Name:          %s\nDate of birth: %s\nGender:        %s\nPhone:         %s\n",
		p.Name, p.DateOfBirth, p.Gender, p.Phone)
	if p.Address != "" {
		s.printf("Address:       %s\n", p.Address)
	}

	tests := s.app.OpenTests(id)
	defer tests.Close()
	if err := tests.Load(ctx); err != nil {
		s.printf("Failed to load tests: %s\n", loadError(err))
		return
	}
	snap := tests.Snapshot()
	if snap.Total == 0 {
		s.printf("No tests yet.\n")
		return
	}
	for _, t := range snap.Items {
		s.printf("  test %-5d %-13s %5.1f%%  %s\n", t.ID, t.Result, t.Confidence*100, t.DateConducted.Format("2006-01-02 15:04"))
	}
	s.printf("  Page %d of %d (%d tests)\n", snap.Page, snap.TotalPages, snap.Total)
}

func (s *shell) editPatient(ctx context.Context, id int64) {
	detail := s.app.OpenPatient(id)
	defer detail.Close()
	if err := detail.Load(ctx); err != nil {
		s.printf("Failed to load patient: %s\n", loadError(err))
		return
	}
	current := detail.All()[0]
	form := s.prompt.Patient(s.app.Options().CountryCode, &current)
	s.report(s.app.Mutations.Perform(ctx, mutation.KindEdit, mutation.Edit{PatientID: id, Form: form}))
}

func (s *shell) submitTest(ctx context.Context, patientID int64, path string) {
	file, f, err := transfer.FileFromPath("image", path)
	if err != nil {
		s.printf("%v\n", err)
		return
	}
	defer f.Close()
	res := s.app.Mutations.Perform(ctx, mutation.KindSubmitTest, mutation.SubmitTest{PatientID: patientID, Image: file})
	s.report(res)
	if out, ok := res.Data.(models.TestSubmitted); ok {
		s.printf("Test %d: %s (%.1f%%)\n", out.TestID, out.Result, out.Confidence*100)
	}
}

func (s *shell) showTest(ctx context.Context, id int64) {
	view := s.app.OpenTest(id)
	defer view.Close()
	if err := view.Load(ctx); err != nil {
		s.printf("Failed to load test: %s\n", loadError(err))
		return
	}
	t := view.All()[0]
	s.printf("Test %d for patient %d\nResult:     %s\nConfidence: %.1f%% (%s)\nConducted:  %s\n",
		t.ID, t.PatientID, t.Result, t.Confidence*100, t.Band(), t.DateConducted.Format("2006-01-02 15:04"))
	for _, p := range t.Predictions {
		s.printf("  %-13s %5.1f%%\n", p.Label, p.Confidence*100)
	}
}

func (s *shell) downloadReport(ctx context.Context, testID int64, dir string) {
	h, err := s.app.API.DownloadReport(ctx, testID)
	if err != nil {
		s.printf("Failed to download report: %s\n", loadError(err))
		return
	}
	defer h.Release()
	if dir == "" && s.app.Archive == nil {
		dir = "."
	}
	where, err := s.app.ExportReport(ctx, h, dir)
	if err != nil {
		s.printf("Failed to save report: %v\n", err)
		return
	}
	s.printf("Report saved to %s\n", where)
}

func (s *shell) loadProfile(ctx context.Context) (models.User, bool) {
	view := s.app.OpenProfile()
	defer view.Close()
	if err := view.Load(ctx); err != nil {
		s.printf("Failed to load profile: %s\n", loadError(err))
		return models.User{}, false
	}
	return view.All()[0], true
}

func (s *shell) printUser(u models.User) {
	s.printf("Username:     %s\nDisplay name: %s\n", u.Username, u.DisplayName)
	if u.Email != "" {
		s.printf("Email:        %s\n", u.Email)
	}
	if u.Bio != "" {
		s.printf("Bio:          %s\n", u.Bio)
	}
	if u.ContactNumber != "" {
		s.printf("Contact:      %s\n", u.ContactNumber)
	}
	if u.ProfilePicture != nil {
		s.printf("Picture:      %s\n", s.app.Gateway.Resolve(*u.ProfilePicture, nil))
	}
}

func (s *shell) uploadPicture(ctx context.Context, path string) {
	file, f, err := transfer.FileFromPath("file", path)
	if err != nil {
		s.printf("%v\n", err)
		return
	}
	defer f.Close()
	s.report(s.app.Mutations.Perform(ctx, mutation.KindUploadPicture, mutation.UploadPicture{Picture: file}))
}

// loadError explains a failed Load. A store closed mid-load means the
// session ended underneath it.
func loadError(err error) string {
	if errors.Is(err, collection.ErrClosed) || errors.Is(err, transfer.ErrDiscarded) {
		return "your session has ended, please log in again"
	}
	return userError(err)
}
