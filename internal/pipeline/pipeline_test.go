package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/websift/websift/internal/model"
)

// recordingStep appends its name to a shared log when executed.
type recordingStep struct {
	name string
	err  error
	log  *[]string
}

func (s *recordingStep) Name() string { return s.name }

func (s *recordingStep) Do(_ context.Context, _ *model.HarvestReport) error {
	*s.log = append(*s.log, s.name)
	return s.err
}

// TestPipelineExecute tests sequential step execution.
func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("runs steps in order", func(t *testing.T) {
		t.Parallel()

		var log []string
		p := New()
		p.AddSteps(
			&recordingStep{name: "first", log: &log},
			&recordingStep{name: "second", log: &log},
			&recordingStep{name: "third", log: &log},
		)

		report := model.NewHarvestReport("s", "http://example.com/")
		if err := p.Execute(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(log) != 3 || log[0] != "first" || log[2] != "third" {
			t.Errorf("unexpected execution order: %v", log)
		}
		if len(report.PerformedSteps) != 3 {
			t.Errorf("expected 3 performed steps, got %v", report.PerformedSteps)
		}
	})

	t.Run("stops on first error by default", func(t *testing.T) {
		t.Parallel()

		var log []string
		boom := errors.New("boom")
		p := New()
		p.AddSteps(
			&recordingStep{name: "ok", log: &log},
			&recordingStep{name: "fails", err: boom, log: &log},
			&recordingStep{name: "never", log: &log},
		)

		report := model.NewHarvestReport("s", "http://example.com/")
		err := p.Execute(context.Background(), report)
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}

		if len(log) != 2 {
			t.Errorf("expected execution to stop after failure, got %v", log)
		}
		if report.Error == nil || report.ErrorMessage != "boom" {
			t.Errorf("error not recorded in report: %+v", report)
		}
	})

	t.Run("continue on error runs remaining steps", func(t *testing.T) {
		t.Parallel()

		var log []string
		p := New(WithContinueOnError(true))
		p.AddSteps(
			&recordingStep{name: "fails", err: errors.New("boom"), log: &log},
			&recordingStep{name: "still runs", log: &log},
		)

		report := model.NewHarvestReport("s", "http://example.com/")
		if err := p.Execute(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(log) != 2 {
			t.Errorf("expected both steps to run, got %v", log)
		}
	})

	t.Run("cancellation marks report", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		var log []string
		p := New()
		p.AddStep(&recordingStep{name: "never", log: &log})

		report := model.NewHarvestReport("s", "http://example.com/")
		err := p.Execute(ctx, report)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if !report.Cancelled {
			t.Error("expected report to be marked cancelled")
		}
		if len(log) != 0 {
			t.Errorf("no steps should run after cancellation, got %v", log)
		}
	})
}

// TestPipelineIntrospection tests step counting and naming.
func TestPipelineIntrospection(t *testing.T) {
	t.Parallel()

	var log []string
	p := New()
	if p.StepCount() != 0 {
		t.Errorf("empty pipeline should have 0 steps, got %d", p.StepCount())
	}

	p.AddSteps(
		&recordingStep{name: "collect", log: &log},
		&recordingStep{name: "extract", log: &log},
	)

	if p.StepCount() != 2 {
		t.Errorf("expected 2 steps, got %d", p.StepCount())
	}

	names := p.StepNames()
	if len(names) != 2 || names[0] != "collect" || names[1] != "extract" {
		t.Errorf("unexpected step names: %v", names)
	}
}
