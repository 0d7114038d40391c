package address

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// dateLayout is the carrier's inEffectAsOfTimestamp format.
const dateLayout = "2006-01-02"

// ValidationRequest is the FedEx address resolution request body.
type ValidationRequest struct {
	InEffectAsOfTimestamp            string              `json:"inEffectAsOfTimestamp"`
	ValidateAddressControlParameters ControlParameters   `json:"validateAddressControlParameters"`
	AddressesToValidate              []AddressToValidate `json:"addressesToValidate"`
}

// ControlParameters toggles optional carrier behaviour.
type ControlParameters struct {
	IncludeResolutionTokens bool `json:"includeResolutionTokens"`
}

// AddressToValidate wraps one address entry.
type AddressToValidate struct {
	Address CarrierAddress `json:"address"`
}

// CarrierAddress is an address in the carrier's field naming.
type CarrierAddress struct {
	StreetLines           []string `json:"streetLines"`
	City                  string   `json:"city"`
	StateOrProvinceCode   string   `json:"stateOrProvinceCode"`
	PostalCode            string   `json:"postalCode"`
	CountryCode           string   `json:"countryCode"`
	UrbanizationCode      string   `json:"urbanizationCode,omitempty"`
	AddressVerificationID string   `json:"addressVerificationId,omitempty"`
}

// Builder produces validation requests. The zero value is not usable; use
// NewBuilder.
type Builder struct {
	now   func() time.Time
	newID func() string
}

// NewBuilder returns a Builder using the wall clock and random UUIDs.
func NewBuilder() *Builder {
	return &Builder{now: time.Now, newID: uuid.NewString}
}

// NewBuilderWith returns a Builder with an explicit clock and id source.
func NewBuilderWith(now func() time.Time, newID func() string) *Builder {
	return &Builder{now: now, newID: newID}
}

// Build returns a new request for addr dated today with a fresh verification
// id. Nothing is shared between calls, so Build is safe for concurrent use.
func (b *Builder) Build(addr Address) ValidationRequest {
	return ValidationRequest{
		InEffectAsOfTimestamp: b.now().Format(dateLayout),
		ValidateAddressControlParameters: ControlParameters{
			IncludeResolutionTokens: true,
		},
		AddressesToValidate: []AddressToValidate{
			{
				Address: CarrierAddress{
					StreetLines:           slices.Clone(addr.StreetLines),
					City:                  addr.City,
					StateOrProvinceCode:   addr.State,
					PostalCode:            addr.PostalCode,
					CountryCode:           addr.Country,
					UrbanizationCode:      addr.UrbanizationCode,
					AddressVerificationID: b.newID(),
				},
			},
		},
	}
}
