package bead

// Issue is a single validation finding tied to one field.
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult aggregates findings for one record. Errors block the
// write; warnings are rendered but never block. Valid is true exactly when
// Errors is empty, regardless of warning count.
type ValidationResult struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

func (r *ValidationResult) addError(field, message string) {
	r.Errors = append(r.Errors, Issue{Field: field, Message: message})
}

func (r *ValidationResult) addWarning(field, message string) {
	r.Warnings = append(r.Warnings, Issue{Field: field, Message: message})
}

func (r *ValidationResult) finish() ValidationResult {
	r.Valid = len(r.Errors) == 0
	return *r
}
