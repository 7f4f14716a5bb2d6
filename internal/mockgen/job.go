package mockgen

import (
	"context"
	"fmt"
	"time"

	"github.com/crmkit/genwatch/internal/common/cnst"
	"github.com/crmkit/genwatch/internal/common/config"
	"github.com/crmkit/genwatch/internal/common/dto"

	"go.uber.org/zap"
)

// Job is one synthetic generation run for one session. It walks the same
// phases as the real batch generator (companies, then contacts with
// linking) and pushes the full event vocabulary over the session's
// connection as it goes.
type Job struct {
	logger    *zap.Logger
	mgr       *Manager
	gen       *Generator
	cfg       *config.MockServerConfig
	sessionID string
}

// NewJob creates a job for the session.
func NewJob(logger *zap.Logger, mgr *Manager, cfg *config.MockServerConfig, sessionID string) *Job {
	return &Job{
		logger:    logger.Named("mockgen.job"),
		mgr:       mgr,
		gen:       NewGenerator(0),
		cfg:       cfg,
		sessionID: sessionID,
	}
}

// Run executes the job to completion, pausing while the session has no
// connection and aborting when the pause outlives the grace period.
func (j *Job) Run(ctx context.Context) (*dto.TriggerResponse, error) {
	j.send(&dto.Event{Type: cnst.EventStart.String(), Message: "Starting test data generation..."})

	companies, err := j.companiesPhase(ctx)
	if err != nil {
		j.fail(err)
		return nil, err
	}

	companies, links, err := j.contactsPhase(ctx, companies)
	if err != nil {
		j.fail(err)
		return nil, err
	}

	contacts := 0
	for _, c := range companies {
		contacts += len(c.Contacts)
	}

	j.send(&dto.Event{
		Type:      cnst.EventComplete.String(),
		Message:   "Done! Random linking complete",
		Companies: companies,
	})
	j.mgr.FinishGeneration(j.sessionID)
	j.logger.Info("generation finished",
		zap.String("session", shortID(j.sessionID)),
		zap.Int("companies", len(companies)),
		zap.Int("contacts", contacts),
		zap.Int("links", links))

	return &dto.TriggerResponse{
		Message:          "Test data created successfully",
		ContactsCreated:  contacts,
		CompaniesCreated: len(companies),
		SuccessfulLinks:  links,
	}, nil
}

func (j *Job) companiesPhase(ctx context.Context) ([]dto.Company, error) {
	total := j.cfg.Companies
	j.send(&dto.Event{
		Type:    cnst.EventCompaniesStart.String(),
		Message: fmt.Sprintf("Creating %d companies...", total),
		Current: 0,
		Total:   total,
	})

	companies := make([]dto.Company, 0, total)
	for start := 0; start < total; start += j.cfg.BatchSize {
		if err := j.checkpoint(ctx); err != nil {
			return nil, err
		}

		end := start + j.cfg.BatchSize
		if end > total {
			end = total
		}
		for i := start; i < end; i++ {
			c := j.gen.Company()
			companies = append(companies, c)
			j.send(&dto.Event{
				Type:    cnst.EventCompanyCreated.String(),
				Message: fmt.Sprintf("Company created: %s", c.Title),
			})
		}
		j.send(&dto.Event{
			Type:    cnst.EventCompaniesProgress.String(),
			Message: fmt.Sprintf("Creating companies %d/%d...", end, total),
			Current: end,
			Total:   total,
		})
		j.pause(ctx)
	}

	j.send(&dto.Event{
		Type:    cnst.EventCompaniesComplete.String(),
		Message: fmt.Sprintf("Created %d companies", total),
		Current: total,
		Total:   total,
	})
	return companies, nil
}

// contactsPhase creates contacts and links them to companies one to one,
// spilling extra contacts onto the earliest companies.
func (j *Job) contactsPhase(ctx context.Context, companies []dto.Company) ([]dto.Company, int, error) {
	total := j.cfg.Contacts
	links := 0
	created := 0

	for i := range companies {
		if created >= total {
			break
		}
		if err := j.checkpoint(ctx); err != nil {
			return nil, links, err
		}

		contact := j.gen.Contact()
		created++
		companies[i].Contacts = append(companies[i].Contacts, contact)
		j.send(&dto.Event{
			Type:        cnst.EventCompanyWithContact.String(),
			Message:     fmt.Sprintf("Linked %s %s to %s", contact.Name, contact.LastName, companies[i].Title),
			CompanyData: &companies[i],
			ContactData: &contact,
		})
		ok := true
		j.send(&dto.Event{
			Type:      cnst.EventContactLinked.String(),
			CompanyID: companies[i].ID,
			Success:   &ok,
		})
		links++

		if (i+1)%j.cfg.BatchSize == 0 {
			j.pause(ctx)
		}
	}

	// Remainder contacts go to the first companies, mirroring the
	// one-to-one linker's remainder distribution.
	for i := 0; created < total; i = (i + 1) % len(companies) {
		if err := j.checkpoint(ctx); err != nil {
			return nil, links, err
		}
		contact := j.gen.Contact()
		created++
		companies[i].Contacts = append(companies[i].Contacts, contact)
		j.send(&dto.Event{
			Type:        cnst.EventContactAdded.String(),
			Message:     fmt.Sprintf("Added %s %s to %s", contact.Name, contact.LastName, companies[i].Title),
			CompanyID:   companies[i].ID,
			ContactData: &contact,
		})
		links++
	}

	return companies, links, nil
}

// checkpoint aborts a job whose session is gone and blocks while it is
// paused.
func (j *Job) checkpoint(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if j.mgr.ShouldAbort(j.sessionID) {
		return cnst.ErrSessionNotFound
	}
	return j.mgr.WaitResume(ctx, j.sessionID)
}

func (j *Job) pause(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(j.cfg.BatchPause):
	}
}

func (j *Job) fail(err error) {
	j.logger.Warn("generation aborted",
		zap.String("session", shortID(j.sessionID)),
		zap.Error(err))
	j.send(&dto.Event{
		Type:    cnst.EventError.String(),
		Message: fmt.Sprintf("Data generation failed: %v", err),
	})
	j.mgr.FinishGeneration(j.sessionID)
}

// send pushes one event, ignoring delivery errors: a session mid-pause has
// no connection and events during that window are simply lost, the same as
// the real backend.
func (j *Job) send(ev *dto.Event) {
	_ = j.mgr.Send(j.sessionID, ev)
}
