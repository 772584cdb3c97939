package domain

// Ref is a reference to another platform object.
type Ref struct {
	ID string `json:"id"`
}

// Creator identifies who created a platform object.
type Creator struct {
	Name string `json:"name"`
}

// Indicator is a detection pattern linked to an incident.
type Indicator struct {
	ID                 string       `json:"id"`
	Name               string       `json:"name"`
	ValidFrom          string       `json:"valid_from"`
	ValidUntil         string       `json:"valid_until"`
	Status             *Ref         `json:"status"`
	Creator            *Creator     `json:"creator"`
	Detection          bool         `json:"x_opencti_detection"`
	Score              *int         `json:"x_opencti_score"`
	MainObservableType string       `json:"x_opencti_main_observable_type"`
	Observables        []Observable `json:"observables"`
}

// Observable is a concrete data point an indicator matches.
// Observation fields stay nil when no observed-data record exists.
type Observable struct {
	ID             string  `json:"id"`
	EntityType     string  `json:"entity_type"`
	Value          string  `json:"value"`
	FirstObserved  *string `json:"first_observed,omitempty"`
	LastObserved   *string `json:"last_observed,omitempty"`
	NumberObserved *int    `json:"number_observed,omitempty"`
}

// ObservedData describes how often and when an observable was seen.
type ObservedData struct {
	FirstObserved  string `json:"first_observed"`
	LastObserved   string `json:"last_observed"`
	NumberObserved int    `json:"number_observed"`
}

// Relationship links two platform objects.
type Relationship struct {
	ID               string             `json:"id"`
	RelationshipType string             `json:"relationship_type"`
	From             RelationshipTarget `json:"from"`
	To               RelationshipTarget `json:"to"`
}

// RelationshipTarget is one side of a relationship.
type RelationshipTarget struct {
	ID         string `json:"id"`
	EntityType string `json:"entity_type"`
	Name       string `json:"name"`
}

// IndicatingEntity is something an indicator indicates (malware, tool, actor...).
type IndicatingEntity struct {
	EntityType string `json:"entity_type"`
	Value      string `json:"value"`
}

// Report is a published report containing an indicator.
type Report struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Published   string `json:"-"`
}
