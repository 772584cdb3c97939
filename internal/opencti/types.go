package opencti

import "github.com/bissquit/cti-webhook/internal/domain"

// connection is a relay-style GraphQL list.
type connection[T any] struct {
	Edges []struct {
		Node T `json:"node"`
	} `json:"edges"`
}

func (c connection[T]) nodes() []T {
	result := make([]T, 0, len(c.Edges))
	for _, e := range c.Edges {
		result = append(result, e.Node)
	}
	return result
}

// SubType is an entity type together with its workflow statuses.
type SubType struct {
	ID              string
	Label           string
	WorkflowEnabled bool
	Statuses        []Status
}

// Status is one workflow status of a subtype.
type Status struct {
	ID       string         `json:"id"`
	Order    int            `json:"order"`
	Template StatusTemplate `json:"template"`
}

// StatusTemplate carries the display name of a status.
type StatusTemplate struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

type subTypeNode struct {
	ID              string             `json:"id"`
	Label           string             `json:"label"`
	WorkflowEnabled bool               `json:"workflowEnabled"`
	Statuses        connection[Status] `json:"statuses"`
}

type observableNode struct {
	ID              string `json:"id"`
	EntityType      string `json:"entity_type"`
	ObservableValue string `json:"observable_value"`
}

type indicatorNode struct {
	ID                 string                     `json:"id"`
	Name               string                     `json:"name"`
	ValidFrom          string                     `json:"valid_from"`
	ValidUntil         string                     `json:"valid_until"`
	Status             *domain.Ref                `json:"status"`
	Creator            *domain.Creator            `json:"creator"`
	Detection          bool                       `json:"x_opencti_detection"`
	Score              *int                       `json:"x_opencti_score"`
	MainObservableType string                     `json:"x_opencti_main_observable_type"`
	Observables        connection[observableNode] `json:"observables"`
}

func (n *indicatorNode) toDomain() *domain.Indicator {
	observables := make([]domain.Observable, 0, len(n.Observables.Edges))
	for _, o := range n.Observables.nodes() {
		observables = append(observables, domain.Observable{
			ID:         o.ID,
			EntityType: o.EntityType,
			Value:      o.ObservableValue,
		})
	}

	return &domain.Indicator{
		ID:                 n.ID,
		Name:               n.Name,
		ValidFrom:          n.ValidFrom,
		ValidUntil:         n.ValidUntil,
		Status:             n.Status,
		Creator:            n.Creator,
		Detection:          n.Detection,
		Score:              n.Score,
		MainObservableType: n.MainObservableType,
		Observables:        observables,
	}
}

type reportNode struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Published   string `json:"published"`
}

type filterGroup struct {
	Mode         string        `json:"mode"`
	Filters      []filter      `json:"filters"`
	FilterGroups []filterGroup `json:"filterGroups"`
}

type filter struct {
	Key    []string `json:"key"`
	Values []string `json:"values"`
}
