package bridge

import (
	"context"
	"sort"
	"time"

	"github.com/bissquit/cti-webhook/internal/domain"
	"github.com/bissquit/cti-webhook/internal/statuses"
)

// Relationship types queried during enrichment.
const (
	RelationshipRelatedTo = "related-to"
	RelationshipIndicates = "indicates"
)

// MaxReports caps the number of reports attached to an alert.
const MaxReports = 8

// Platform is the subset of the platform API used for enrichment.
type Platform interface {
	ListRelationships(ctx context.Context, elementID, relationshipType string) ([]domain.Relationship, error)
	ReadIndicator(ctx context.Context, id string) (*domain.Indicator, error)
	ObservedData(ctx context.Context, observableID string) (*domain.ObservedData, error)
	ListReports(ctx context.Context, objectID string, first int) ([]domain.Report, error)
}

// Enricher assembles a complete alert for an incident.
type Enricher struct {
	platform Platform
	statuses StatusResolver
}

// NewEnricher creates a new enricher.
func NewEnricher(platform Platform, statuses StatusResolver) *Enricher {
	return &Enricher{
		platform: platform,
		statuses: statuses,
	}
}

// Assemble runs the lookups for a Create classification and builds the alert.
// Lookups run sequentially; the first failure aborts with *EnrichmentError.
func (e *Enricher) Assemble(ctx context.Context, ev *domain.StreamEvent, cls Classification) (*domain.Alert, error) {
	related, err := e.platform.ListRelationships(ctx, cls.IncidentID, RelationshipRelatedTo)
	if err != nil {
		return nil, &EnrichmentError{Step: "related indicator", Err: err}
	}
	if len(related) == 0 || related[0].To.ID == "" {
		return nil, &EnrichmentError{Step: "related indicator", Err: ErrNoIndicator}
	}
	indicatorID := related[0].To.ID

	indicator, err := e.platform.ReadIndicator(ctx, indicatorID)
	if err != nil {
		return nil, &EnrichmentError{Step: "indicator", Err: err}
	}
	if indicator == nil {
		return nil, &EnrichmentError{Step: "indicator", Err: ErrIndicatorNotFound}
	}

	observables, hits, err := e.observe(ctx, indicator.Observables)
	if err != nil {
		return nil, err
	}

	indicates, err := e.indicates(ctx, indicatorID)
	if err != nil {
		return nil, err
	}

	reports, err := e.reports(ctx, indicatorID)
	if err != nil {
		return nil, err
	}

	var indicatorStatusID, creatorName string
	if indicator.Status != nil {
		indicatorStatusID = indicator.Status.ID
	}
	if indicator.Creator != nil {
		creatorName = indicator.Creator.Name
	}

	return &domain.Alert{
		Action:      domain.ActionCreate,
		ID:          cls.IncidentID,
		Status:      cls.StatusName,
		StatusID:    cls.StatusID,
		Created:     ev.Data.Created,
		Modified:    ev.Data.Modified,
		Revoked:     ev.Data.Revoked,
		Confidence:  ev.Data.Confidence,
		Name:        ev.Data.Name,
		Description: ev.Data.Description,
		FirstSeen:   ev.Data.FirstSeen,
		LastSeen:    ev.Data.LastSeen,

		IndicatorID:                 indicator.ID,
		IndicatorName:               indicator.Name,
		IndicatorStatus:             e.statuses.Lookup(statuses.LabelIndicator, indicatorStatusID),
		IndicatorStatusID:           indicatorStatusID,
		IndicatorValidFrom:          indicator.ValidFrom,
		IndicatorValidUntil:         indicator.ValidUntil,
		IndicatorCreatorName:        creatorName,
		IndicatorDetection:          indicator.Detection,
		IndicatorScore:              indicator.Score,
		IndicatorMainObservableType: indicator.MainObservableType,
		IndicatorHits:               hits,

		Observables: observables,
		Indicates:   indicates,
		Reports:     reports,
	}, nil
}

// observe attaches observed-data counters to each observable and sums them.
func (e *Enricher) observe(ctx context.Context, in []domain.Observable) ([]domain.Observable, int, error) {
	out := make([]domain.Observable, 0, len(in))
	hits := 0

	for _, obs := range in {
		od, err := e.platform.ObservedData(ctx, obs.ID)
		if err != nil {
			return nil, 0, &EnrichmentError{Step: "observed data " + obs.ID, Err: err}
		}
		if od != nil {
			first, last, count := od.FirstObserved, od.LastObserved, od.NumberObserved
			obs.FirstObserved = &first
			obs.LastObserved = &last
			obs.NumberObserved = &count
			hits += count
		}
		out = append(out, obs)
	}

	return out, hits, nil
}

func (e *Enricher) indicates(ctx context.Context, indicatorID string) ([]domain.IndicatingEntity, error) {
	rels, err := e.platform.ListRelationships(ctx, indicatorID, RelationshipIndicates)
	if err != nil {
		return nil, &EnrichmentError{Step: "indicated entities", Err: err}
	}

	entities := make([]domain.IndicatingEntity, 0, len(rels))
	for _, rel := range rels {
		// fromOrToId matches both directions; only the indicator's own targets count.
		if rel.From.ID != indicatorID {
			continue
		}
		entities = append(entities, domain.IndicatingEntity{
			EntityType: rel.To.EntityType,
			Value:      rel.To.Name,
		})
	}
	return entities, nil
}

func (e *Enricher) reports(ctx context.Context, indicatorID string) ([]domain.Report, error) {
	reports, err := e.platform.ListReports(ctx, indicatorID, MaxReports)
	if err != nil {
		return nil, &EnrichmentError{Step: "reports", Err: err}
	}

	sort.SliceStable(reports, func(i, j int) bool {
		return publishedAt(reports[i]).After(publishedAt(reports[j]))
	})
	if len(reports) > MaxReports {
		reports = reports[:MaxReports]
	}

	out := make([]domain.Report, 0, len(reports))
	for _, r := range reports {
		out = append(out, domain.Report{
			ID:          r.ID,
			Name:        r.Name,
			Description: r.Description,
		})
	}
	return out, nil
}

// publishedAt parses the report publication date; unparseable dates sort last.
func publishedAt(r domain.Report) time.Time {
	t, err := time.Parse(time.RFC3339, r.Published)
	if err != nil {
		return time.Time{}
	}
	return t
}
