package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/beexponential/insights/internal/api/schema"
	"github.com/beexponential/insights/internal/clickup"
	"github.com/beexponential/insights/internal/schedule"
	"github.com/beexponential/insights/internal/syncwizard"
)

type stubClickUp struct{}

func (stubClickUp) ValidateToken(_ context.Context, token string) (clickup.User, error) {
	if token != "pk_test" {
		return clickup.User{}, clickup.ErrUnauthorized
	}
	return clickup.User{ID: 1, Username: "ana"}, nil
}

func (stubClickUp) ListWorkspaces(context.Context, string) ([]clickup.Workspace, error) {
	return []clickup.Workspace{{ID: "t1", Name: "Acme"}}, nil
}

func (stubClickUp) ListSpaces(context.Context, string, string) ([]clickup.Space, error) {
	return []clickup.Space{{ID: "s1", Name: "Ops"}}, nil
}

func (stubClickUp) ListFolders(context.Context, string, string) ([]clickup.Folder, error) {
	return nil, nil
}

func (stubClickUp) ListLists(context.Context, string, string) ([]clickup.List, error) {
	return nil, nil
}

func (stubClickUp) ListFolderlessLists(context.Context, string, string) ([]clickup.List, error) {
	return []clickup.List{{ID: "l1", Name: "Onboarding"}}, nil
}

func (stubClickUp) ListFields(context.Context, string, string) ([]clickup.Field, error) {
	return []clickup.Field{{ID: "id", Name: "id"}, {ID: "name", Name: "name"}}, nil
}

type savedSyncs struct{ got []syncwizard.Payload }

func (s *savedSyncs) Save(_ context.Context, p syncwizard.Payload) (string, error) {
	s.got = append(s.got, p)
	return "sync-1", nil
}

func TestSyncWizardTimeEntries(t *testing.T) {
	store := &savedSyncs{}
	h := NewSyncWizardHandler(SyncWizardHandler{API: stubClickUp{}, Store: store}, time.Minute)
	ctx := tctx()

	out, err := h.open(ctx, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	id := out.Body.ID
	if _, err := h.next(ctx, &wizardIDParam{ID: id}); !isStatus(err, http.StatusUnprocessableEntity) {
		t.Fatalf("next without a type: %v", err)
	}
	steps := []func() (*wizardOut, error){
		func() (*wizardOut, error) {
			return h.setType(ctx, &syncTypeInput{ID: id, Body: schema.SyncTypeInput{SyncType: syncwizard.SyncTimeEntries}})
		},
		func() (*wizardOut, error) { return h.next(ctx, &wizardIDParam{ID: id}) },
		func() (*wizardOut, error) {
			return h.connect(ctx, &connectInput{ID: id, Body: schema.ConnectInput{Token: "pk_test"}})
		},
		func() (*wizardOut, error) {
			return h.selectWorkspace(ctx, &selectInput{ID: id, Body: schema.SelectInput{ID: "t1"}})
		},
		func() (*wizardOut, error) { return h.next(ctx, &wizardIDParam{ID: id}) },
		func() (*wizardOut, error) { return h.next(ctx, &wizardIDParam{ID: id}) },
	}
	for i, step := range steps {
		if out, err = step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if out.Body.Step != syncwizard.StepSchedule || !out.Body.Connected || out.Body.User != "ana" {
		t.Fatalf("unexpected view %+v", out.Body.View)
	}
	if out.Body.Cron != "0 9 * * *" {
		t.Fatalf("default cron = %q", out.Body.Cron)
	}

	saved, err := h.save(ctx, &wizardIDParam{ID: id})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.Body.ID != "sync-1" || saved.Body.Payload.SyncConfig.APIToken != "" {
		t.Fatalf("unexpected response %+v", saved.Body)
	}
	if len(store.got) != 1 || store.got[0].SyncConfig.APIToken != "pk_test" {
		t.Fatalf("stored payload must keep the token: %+v", store.got)
	}
	if h.Drafts.Len() != 0 {
		t.Fatalf("saved wizard must be released")
	}
}

func TestSyncWizardBadToken(t *testing.T) {
	h := NewSyncWizardHandler(SyncWizardHandler{API: stubClickUp{}, Store: &savedSyncs{}}, time.Minute)
	ctx := tctx()
	out, _ := h.open(ctx, nil)
	id := out.Body.ID
	_, _ = h.setType(ctx, &syncTypeInput{ID: id, Body: schema.SyncTypeInput{SyncType: syncwizard.SyncTasks}})
	_, _ = h.next(ctx, &wizardIDParam{ID: id})
	if _, err := h.connect(ctx, &connectInput{ID: id, Body: schema.ConnectInput{Token: "nope"}}); !isStatus(err, http.StatusUnprocessableEntity) {
		t.Fatalf("bad token: %v", err)
	}
	if _, err := h.cancel(ctx, &wizardIDParam{ID: id}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := h.cancel(ctx, &wizardIDParam{ID: id}); !isStatus(err, http.StatusNotFound) {
		t.Fatalf("second cancel: %v", err)
	}
}

func TestPreviewCron(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	h := &SyncHandler{Now: func() time.Time { return now }}
	dow := 5
	out, err := h.previewCron(context.Background(), &cronPreviewInput{
		Count: 2,
		Body:  schedule.Schedule{Type: schedule.TypeWeekly, Time: "14:30", DayOfWeek: &dow},
	})
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if out.Body.Cron != "30 14 * * 5" {
		t.Fatalf("cron = %q", out.Body.Cron)
	}
	want := []time.Time{
		time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC),
		time.Date(2024, 3, 8, 14, 30, 0, 0, time.UTC),
	}
	if diff := cmp.Diff(want, out.Body.Next); diff != "" {
		t.Fatalf("next runs (-want +got):\n%s", diff)
	}

	out, err = h.previewCron(context.Background(), &cronPreviewInput{})
	if err != nil {
		t.Fatalf("default schedule: %v", err)
	}
	if out.Body.Cron != "0 9 * * *" || len(out.Body.Next) != 5 {
		t.Fatalf("default preview %+v", out.Body)
	}

	bad := 0
	if _, err := h.previewCron(context.Background(), &cronPreviewInput{
		Body: schedule.Schedule{Type: schedule.TypeInterval, Interval: &bad},
	}); !isStatus(err, http.StatusUnprocessableEntity) {
		t.Fatalf("zero interval: %v", err)
	}
}
