package dispatch

import (
	"encoding/json"
	"fmt"

	"github.com/crmkit/genwatch/internal/common/cnst"
	"github.com/crmkit/genwatch/internal/common/dto"
	"github.com/crmkit/genwatch/internal/state"
	"github.com/crmkit/genwatch/pkg/metrics"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Dispatcher maps inbound connection events to state store mutations. It is
// a pure mapping: no network, no timers, no side channel of its own. Unknown
// event types are logged and ignored.
type Dispatcher struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
	store   *state.Store
}

// New creates a dispatcher writing into store.
func New(logger *zap.Logger, m *metrics.Metrics, store *state.Store) *Dispatcher {
	return &Dispatcher{
		logger:  logger.Named("dispatch"),
		metrics: m,
		store:   store,
	}
}

// Handle decodes one raw event and applies its store mutations.
func (d *Dispatcher) Handle(raw []byte) {
	eventType := gjson.GetBytes(raw, "type").String()
	if eventType == "" {
		d.logger.Warn("event without type discriminator, dropping",
			zap.ByteString("data", raw))
		return
	}

	var ev dto.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		d.logger.Warn("failed to decode event, dropping",
			zap.String("type", eventType),
			zap.Error(err))
		return
	}

	d.metrics.EventDispatched(eventType)

	switch cnst.EventType(eventType) {
	case cnst.EventStart:
		d.store.SetLoading(true)
		d.store.Set(cnst.KeyProgress, dto.JobProgress{Phase: dto.PhaseIdle})
		d.store.SetStatus(messageOr(ev, "Starting test data generation..."), cnst.StatusTypeLoading)

	case cnst.EventCompaniesStart:
		d.store.Set(cnst.KeyProgress, dto.JobProgress{
			Phase:   dto.PhaseCompanies,
			Current: ev.Current,
			Total:   ev.Total,
			Message: ev.Message,
		})
		d.store.SetStatus(messageOr(ev, "Creating companies..."), cnst.StatusTypeLoading)

	case cnst.EventCompaniesProgress:
		d.store.Set(cnst.KeyProgress, dto.JobProgress{
			Phase:   dto.PhaseCompanies,
			Current: ev.Current,
			Total:   ev.Total,
			Message: ev.Message,
		})
		d.store.SetStatus(messageOr(ev, fmt.Sprintf("Creating companies %d/%d...", ev.Current, ev.Total)), cnst.StatusTypeLoading)

	case cnst.EventCompanyCreated:
		d.store.SetStatus(messageOr(ev, "Company created"), cnst.StatusTypeLoading)

	case cnst.EventCompaniesComplete:
		total := ev.Total
		if total == 0 {
			total = ev.Current
		}
		d.store.Set(cnst.KeyProgress, dto.JobProgress{
			Phase:   dto.PhaseCompanies,
			Current: total,
			Total:   total,
			Message: ev.Message,
		})
		d.store.SetStatus(messageOr(ev, "Companies created"), cnst.StatusTypeLoading)

	case cnst.EventCompanyWithContact:
		d.appendCompany(ev)

	case cnst.EventContactAdded:
		d.appendContact(ev)

	case cnst.EventContactLinked:
		if ev.Success != nil && !*ev.Success {
			d.store.SetStatus(messageOr(ev, "Failed to link contact"), cnst.StatusTypeError)
		} else {
			d.store.SetStatus(messageOr(ev, "Contact linked"), cnst.StatusTypeLoading)
		}

	case cnst.EventComplete:
		if ev.Companies != nil {
			d.store.Set(cnst.KeyCompanies, ev.Companies)
		}
		d.store.Set(cnst.KeyProgress, dto.JobProgress{Phase: dto.PhaseComplete})
		d.store.SetLoading(false)
		d.store.SetStatus(messageOr(ev, "Done!"), cnst.StatusTypeSuccess)

	case cnst.EventError:
		d.store.Set(cnst.KeyProgress, dto.JobProgress{Phase: dto.PhaseError})
		d.store.SetLoading(false)
		d.store.SetStatus(messageOr(ev, "Generation failed"), cnst.StatusTypeError)

	default:
		d.logger.Warn("unknown event type, ignoring",
			zap.String("type", eventType))
	}
}

// appendCompany adds a freshly created company (with its first contact when
// present) to the company list.
func (d *Dispatcher) appendCompany(ev dto.Event) {
	if ev.CompanyData == nil {
		d.logger.Warn("company_with_contact without company_data, dropping")
		return
	}
	company := *ev.CompanyData
	if company.Contacts == nil {
		company.Contacts = []dto.Contact{}
	}
	if ev.ContactData != nil {
		company.Contacts = append(company.Contacts, *ev.ContactData)
	}

	companies := append(cloneCompanies(d.store.Companies()), company)
	d.store.Set(cnst.KeyCompanies, companies)
	if ev.Message != "" {
		d.store.SetStatus(ev.Message, cnst.StatusTypeLoading)
	}
}

// appendContact appends a contact to the company it references. A contact
// for a company this tab has never seen is a server/client inconsistency:
// the contact is kept under a synthesized placeholder company and the
// mismatch is surfaced as a non-fatal status message.
func (d *Dispatcher) appendContact(ev dto.Event) {
	if ev.ContactData == nil {
		d.logger.Warn("contact_added without contact_data, dropping")
		return
	}

	companies := cloneCompanies(d.store.Companies())
	for i := range companies {
		if companies[i].ID == ev.CompanyID {
			companies[i].Contacts = append(companies[i].Contacts, *ev.ContactData)
			d.store.Set(cnst.KeyCompanies, companies)
			if ev.Message != "" {
				d.store.SetStatus(ev.Message, cnst.StatusTypeLoading)
			}
			return
		}
	}

	d.logger.Warn("contact references unknown company, synthesizing placeholder",
		zap.Int64("company_id", ev.CompanyID),
		zap.Int64("contact_id", ev.ContactData.ID))
	companies = append(companies, dto.Company{
		ID:       ev.CompanyID,
		Title:    fmt.Sprintf("Company %d", ev.CompanyID),
		Contacts: []dto.Contact{*ev.ContactData},
	})
	d.store.Set(cnst.KeyCompanies, companies)
	d.store.SetStatus(fmt.Sprintf("Received contact for unknown company %d", ev.CompanyID), cnst.StatusTypeError)
}

// cloneCompanies copies the list and each contact slice so store readers
// never observe in-place mutation.
func cloneCompanies(in []dto.Company) []dto.Company {
	out := make([]dto.Company, len(in))
	copy(out, in)
	for i := range out {
		contacts := make([]dto.Contact, len(in[i].Contacts))
		copy(contacts, in[i].Contacts)
		out[i].Contacts = contacts
	}
	return out
}

func messageOr(ev dto.Event, fallback string) string {
	if ev.Message != "" {
		return ev.Message
	}
	return fallback
}
