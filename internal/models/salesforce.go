// internal/models/salesforce.go
package models

// EntityDescriptor is one entry of the org-wide sobject listing.
type EntityDescriptor struct {
	Name                string `json:"name"`
	Label               string `json:"label,omitempty"`
	Queryable           bool   `json:"queryable"`
	Layoutable          bool   `json:"layoutable"`
	DeprecatedAndHidden bool   `json:"deprecatedAndHidden"`
}

// Eligible reports whether the entity may be offered to the resolver.
func (e EntityDescriptor) Eligible() bool {
	return e.Queryable && e.Layoutable && !e.DeprecatedAndHidden
}

// RawFieldDescriptor is a field description exactly as the store returned it.
type RawFieldDescriptor map[string]interface{}

// FieldDescriptor is the filtered view of a field that is handed to query
// synthesis. Pointer members are nil when the store omitted the attribute.
type FieldDescriptor struct {
	Name           *string  `json:"name"`
	Label          *string  `json:"label"`
	Type           *string  `json:"type"`
	Nillable       *bool    `json:"nillable"`
	Createable     *bool    `json:"createable"`
	Updateable     *bool    `json:"updateable"`
	Length         *int     `json:"length"`
	Precision      *int     `json:"precision"`
	Scale          *int     `json:"scale"`
	PicklistValues []string `json:"picklistValues"`
	ExternalID     bool     `json:"externalId"`
	Unique         bool     `json:"unique"`
	ReferenceTo    []string `json:"referenceTo,omitempty"`
}

// QueryResult is the raw response of a SOQL query.
type QueryResult struct {
	TotalSize      int                      `json:"totalSize"`
	Done           bool                     `json:"done"`
	NextRecordsURL string                   `json:"nextRecordsUrl,omitempty"`
	Records        []map[string]interface{} `json:"records"`
}

// ResolutionAttempt records one pass of entity resolution.
type ResolutionAttempt struct {
	AttemptNumber int     `json:"attemptNumber"`
	CandidateName *string `json:"candidateName"`
	IsValid       bool    `json:"isValid"`
}
