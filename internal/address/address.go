package address

import "context"

// Validator defines the interface for carrier-backed address validation.
// Implementations forward the address to a carrier and hand back its answer
// untouched so the caller can relay it.
type Validator interface {
	// Validate submits addr to the carrier and returns the raw response.
	// A non-2xx carrier status is not an error; it is reported in Result.
	Validate(ctx context.Context, addr Address) (*Result, error)
}

// Address represents a physical address to be validated.
type Address struct {
	StreetLines      []string `validate:"required,min=1,max=3,dive,max=35"`
	City             string   `validate:"required,max=35"`
	State            string   `validate:"omitempty,max=2"`
	PostalCode       string   `validate:"omitempty,max=10"`
	Country          string   `validate:"required,iso3166_1_alpha2"`
	UrbanizationCode string   `validate:"omitempty,max=35"`
}

// Result is the carrier's response to a validation request.
type Result struct {
	StatusCode    int
	ContentType   string
	Body          []byte
	TransactionID string
}
