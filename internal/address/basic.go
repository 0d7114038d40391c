package address

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dukerupert/crown/internal/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Check performs format validation without calling the carrier: required
// fields, field lengths and a two-letter country code.
func Check(addr Address) error {
	const op = "address.check"

	if err := validate.Struct(addr); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return domain.Invalid(op, "invalid address fields: "+strings.Join(fields, ", "))
		}
		return domain.WrapError(err, domain.EINVALID, op, "invalid address")
	}

	if strings.TrimSpace(addr.StreetLines[0]) == "" {
		return domain.Invalid(op, "first street line is required")
	}

	return nil
}
