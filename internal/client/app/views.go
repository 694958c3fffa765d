package app

import (
	"context"

	"github.com/atinyakov/MedKeeper/internal/client/collection"
	"github.com/atinyakov/MedKeeper/internal/client/mutation"
	"github.com/atinyakov/MedKeeper/internal/models"
)

// View is a collection store owned by one open view. Close it when the
// view goes away.
type View[T any] struct {
	*collection.Store[T]
	close func()
}

// Close detaches the store from the coordinator and closes it.
func (v *View[T]) Close() { v.close() }

// open registers a store with the App and, when target is set, with the
// coordinator so writes affecting target reload it.
func open[T any](a *App, target string, cfg collection.Config[T]) *View[T] {
	cfg.Logger = a.log.Named("collection")
	store := collection.New(cfg)
	detach := func() {}
	if target != "" {
		detach = a.Mutations.Attach(target, store)
	}

	a.mu.Lock()
	id := a.nextID
	a.nextID++
	closeView := func() {
		detach()
		store.Close()
	}
	a.views[id] = closeView
	a.mu.Unlock()

	return &View[T]{Store: store, close: func() {
		a.mu.Lock()
		delete(a.views, id)
		a.mu.Unlock()
		closeView()
	}}
}

// closeViews closes every open view and returns how many there were.
func (a *App) closeViews() int {
	a.mu.Lock()
	views := a.views
	a.views = make(map[int]func())
	a.mu.Unlock()
	for _, closeView := range views {
		closeView()
	}
	return len(views)
}

// OpenViews returns the number of views not yet closed.
func (a *App) OpenViews() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.views)
}

// OpenPatients opens the patient list.
func (a *App) OpenPatients() *View[models.Patient] {
	return open(a, mutation.TargetPatients, collection.Config[models.Patient]{
		Name:     "patients",
		Load:     a.API.ListPatients,
		Match:    collection.PatientMatch,
		PageSize: a.opts.PatientsPageSize,
	})
}

// OpenPatient opens the detail view of one patient.
func (a *App) OpenPatient(id int64) *View[models.Patient] {
	return open(a, mutation.PatientTarget(id), collection.Config[models.Patient]{
		Name: mutation.PatientTarget(id),
		Load: collection.One(func(ctx context.Context) (models.Patient, error) {
			return a.API.GetPatient(ctx, id)
		}),
		PageSize: 1,
	})
}

// OpenTests opens the test list of one patient.
func (a *App) OpenTests(patientID int64) *View[models.TestResult] {
	return open(a, mutation.TestsTarget(patientID), collection.Config[models.TestResult]{
		Name: mutation.TestsTarget(patientID),
		Load: func(ctx context.Context) ([]models.TestResult, error) {
			return a.API.ListTests(ctx, patientID)
		},
		Match:    collection.TestMatch,
		PageSize: a.opts.TestsPageSize,
	})
}

// OpenTest opens one test. Tests never change after submission, so the view
// is not attached to any resync target.
func (a *App) OpenTest(id int64) *View[models.TestResult] {
	return open(a, "", collection.Config[models.TestResult]{
		Name: "test",
		Load: collection.One(func(ctx context.Context) (models.TestResult, error) {
			return a.API.GetTest(ctx, id)
		}),
		PageSize: 1,
	})
}

// OpenProfile opens the signed-in user's profile.
func (a *App) OpenProfile() *View[models.User] {
	return open(a, mutation.TargetProfile, collection.Config[models.User]{
		Name:     mutation.TargetProfile,
		Load:     collection.One(a.API.Me),
		PageSize: 1,
	})
}
