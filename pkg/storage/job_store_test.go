package storage

import (
	"testing"

	"github.com/z-wentao/castscribe/pkg/models"
)

func newTestJob(id string, status models.JobStatus) *models.Job {
	return &models.Job{JobID: id, Status: status}
}

func TestJobStoreUpdateAllowsLegalForwardTransition(t *testing.T) {
	js := NewJobStore()
	_ = js.Save(newTestJob("j1", models.StatusQueued))

	err := js.Update("j1", func(j *models.Job) {
		j.Status = models.StatusPreparing
	})
	if err != nil {
		t.Fatalf("unexpected error on a legal transition: %v", err)
	}

	got, _ := js.Get("j1")
	if got.Status != models.StatusPreparing {
		t.Fatalf("expected status to advance to preparing, got %s", got.Status)
	}
}

func TestJobStoreUpdateRejectsIllegalTransitionAndRollsBack(t *testing.T) {
	js := NewJobStore()
	_ = js.Save(newTestJob("j1", models.StatusQueued))

	err := js.Update("j1", func(j *models.Job) {
		j.Status = models.StatusDone
	})
	if err == nil {
		t.Fatalf("expected an error for an illegal queued -> done jump")
	}

	got, _ := js.Get("j1")
	if got.Status != models.StatusQueued {
		t.Fatalf("expected status to roll back to queued after a rejected transition, got %s", got.Status)
	}
}

func TestJobStoreUpdateAllowsFailureFromAnyInProgressStatus(t *testing.T) {
	js := NewJobStore()
	_ = js.Save(newTestJob("j1", models.StatusRendering))

	err := js.Update("j1", func(j *models.Job) {
		j.Status = models.StatusFailed
	})
	if err != nil {
		t.Fatalf("unexpected error failing out of rendering: %v", err)
	}
}

func TestJobStoreListByStatusFiltersToRequestedSet(t *testing.T) {
	js := NewJobStore()
	_ = js.Save(newTestJob("queued", models.StatusQueued))
	_ = js.Save(newTestJob("rendering", models.StatusRendering))
	_ = js.Save(newTestJob("done", models.StatusDone))
	_ = js.Save(newTestJob("failed", models.StatusFailed))

	active, err := js.ListByStatus(models.StatusQueued, models.StatusRendering)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected 2 active jobs, got %d: %+v", len(active), active)
	}

	seen := map[string]bool{}
	for _, j := range active {
		seen[j.JobID] = true
	}
	if !seen["queued"] || !seen["rendering"] {
		t.Fatalf("expected queued and rendering jobs in the result, got %+v", active)
	}
	if seen["done"] || seen["failed"] {
		t.Fatalf("did not expect terminal-state jobs in the active set, got %+v", active)
	}
}

func TestJobStoreDeleteRemovesJob(t *testing.T) {
	js := NewJobStore()
	_ = js.Save(newTestJob("j1", models.StatusQueued))

	if err := js.Delete("j1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := js.Get("j1"); err == nil {
		t.Fatalf("expected an error fetching a deleted job")
	}
}
