package intake

import (
	"context"
	"sync"

	"expatdesk/internal/review/models"
	"expatdesk/internal/review/rules"
	dErrors "expatdesk/pkg/domain-errors"
)

// Draft holds the wizard state between saves. It is safe for concurrent use
// by the wizard and an Autosaver.
type Draft struct {
	port  Port
	token string

	mu        sync.Mutex
	answers   models.Answers
	progress  []models.Section
	current   int
	submitted bool
}

// NewDraft starts an empty draft on the first section.
func NewDraft(port Port, token string) *Draft {
	return &Draft{
		port:     port,
		token:    token,
		answers:  models.Answers{},
		progress: []models.Section{},
	}
}

// Resume loads remote state and positions the draft on the first section
// not yet completed.
func Resume(ctx context.Context, port Port, token string) (*Draft, error) {
	snap, err := port.Load(ctx, token)
	if err != nil {
		return nil, err
	}
	d := NewDraft(port, token)
	if snap.FormData != nil {
		d.answers = snap.FormData.Clone()
	}
	d.progress = models.MergeProgress(nil, snap.FormProgress)
	d.submitted = snap.Status != "" && snap.Status != models.StatusFormPending
	d.current = firstIncomplete(d.progress)
	return d, nil
}

func firstIncomplete(progress []models.Section) int {
	done := make(map[models.Section]bool, len(progress))
	for _, s := range progress {
		done[s] = true
	}
	for i, s := range models.Sections {
		if !done[s] {
			return i
		}
	}
	return len(models.Sections) - 1
}

// Set records an answer. A nil answer clears the question.
func (d *Draft) Set(key models.QuestionKey, answer models.Answer) error {
	if answer != nil {
		if err := (models.Answers{key: answer}).Validate(); err != nil {
			return err
		}
	} else if _, ok := models.LookupQuestion(key); !ok {
		return dErrors.New(dErrors.CodeValidation, "unknown question "+string(key))
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.submitted {
		return dErrors.New(dErrors.CodeConflict, "review form is frozen after submission")
	}
	if answer == nil {
		delete(d.answers, key)
		return nil
	}
	d.answers[key] = answer
	return nil
}

// Answer returns the current answer for key.
func (d *Draft) Answer(key models.QuestionKey) (models.Answer, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.answers[key]
	return a, ok
}

// Answers returns a copy of every answer.
func (d *Draft) Answers() models.Answers {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.answers.Clone()
}

// Progress returns a copy of the completed sections.
func (d *Draft) Progress() []models.Section {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]models.Section{}, d.progress...)
}

// Current returns the section the wizard is on.
func (d *Draft) Current() models.Section {
	d.mu.Lock()
	defer d.mu.Unlock()
	return models.Sections[d.current]
}

// Submitted reports whether the draft has been finalised.
func (d *Draft) Submitted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.submitted
}

// Back moves to the previous section without validating or saving.
func (d *Draft) Back() models.Section {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current > 0 {
		d.current--
	}
	return models.Sections[d.current]
}

// Advance saves with the current section marked complete and moves on. On
// failure the draft stays where it is.
func (d *Draft) Advance(ctx context.Context) (models.Section, error) {
	d.mu.Lock()
	if d.submitted {
		d.mu.Unlock()
		return "", dErrors.New(dErrors.CodeConflict, "review form is frozen after submission")
	}
	at := d.current
	progress := models.MergeProgress(d.progress, []models.Section{models.Sections[at]})
	req := SaveRequest{FormData: d.answers.Clone(), FormProgress: progress}
	d.mu.Unlock()

	if err := d.port.Save(ctx, d.token, req); err != nil {
		return "", err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.progress = models.MergeProgress(d.progress, progress)
	if d.current == at && d.current < len(models.Sections)-1 {
		d.current++
	}
	return models.Sections[d.current], nil
}

// Save writes the current state without moving. Used by the autosaver.
func (d *Draft) Save(ctx context.Context) error {
	d.mu.Lock()
	if d.submitted {
		d.mu.Unlock()
		return nil
	}
	req := SaveRequest{FormData: d.answers.Clone(), FormProgress: append([]models.Section{}, d.progress...)}
	d.mu.Unlock()
	return d.port.Save(ctx, d.token, req)
}

// HasAnswers reports whether anything is worth autosaving.
func (d *Draft) HasAnswers() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.submitted && len(d.answers) > 0
}

// Submit finalises the intake with a locally computed assessment. The
// server recomputes and stores its own; a failed submit leaves the draft
// on its current section.
func (d *Draft) Submit(ctx context.Context) (models.Assessment, error) {
	d.mu.Lock()
	if d.submitted {
		d.mu.Unlock()
		return models.Assessment{}, dErrors.New(dErrors.CodeConflict, "review already submitted")
	}
	answers := d.answers.Clone()
	d.mu.Unlock()

	assessment := rules.Assess(answers)
	err := d.port.Save(ctx, d.token, SaveRequest{
		FormData:        answers,
		FormProgress:    models.AllSections(),
		Submit:          true,
		EscalationFlags: assessment.EscalationFlags,
		AmbiguityScore:  assessment.AmbiguityScore,
	})
	if err != nil {
		return models.Assessment{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.submitted = true
	d.progress = models.AllSections()
	return assessment, nil
}
