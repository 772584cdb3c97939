package domain

// Outbound actions.
const (
	ActionCreate = "create"
	ActionDelete = "delete"
)

// Alert is the payload sent for a new inferred incident.
type Alert struct {
	Action      string `json:"action"`
	ID          string `json:"id"`
	Status      string `json:"status"`
	StatusID    string `json:"status_id"`
	Created     string `json:"created"`
	Modified    string `json:"modified"`
	Revoked     bool   `json:"revoked"`
	Confidence  int    `json:"confidence"`
	Name        string `json:"name"`
	Description string `json:"description"`
	FirstSeen   string `json:"first_seen"`
	LastSeen    string `json:"last_seen"`

	IndicatorID                 string `json:"indicator_id"`
	IndicatorName               string `json:"indicator_name"`
	IndicatorStatus             string `json:"indicator_status"`
	IndicatorStatusID           string `json:"indicator_status_id"`
	IndicatorValidFrom          string `json:"indicator_valid_from"`
	IndicatorValidUntil         string `json:"indicator_valid_until"`
	IndicatorCreatorName        string `json:"indicator_creator_name"`
	IndicatorDetection          bool   `json:"indicator_opencti_detection"`
	IndicatorScore              *int   `json:"indicator_opencti_score"`
	IndicatorMainObservableType string `json:"indicator_opencti_main_observable_type"`
	IndicatorHits               int    `json:"indicator_hits"`

	Observables []Observable       `json:"observables"`
	Indicates   []IndicatingEntity `json:"indicates"`
	Reports     []Report           `json:"reports"`
}

// DeleteNotice is the payload sent when an incident is deleted.
type DeleteNotice struct {
	Message    string `json:"message"`
	Action     string `json:"action"`
	IncidentID string `json:"incident_id"`
}

// NewDeleteNotice creates a delete notice for the given incident.
func NewDeleteNotice(message, incidentID string) DeleteNotice {
	return DeleteNotice{
		Message:    message,
		Action:     ActionDelete,
		IncidentID: incidentID,
	}
}
