package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "bus-finder/internal/common/errors"
	"bus-finder/internal/models"
)

// safeText is the character class free-text filter values must stay within.
var safeText = regexp.MustCompile(`^[A-Za-z0-9_\- ]+$`)

// IsSafeText reports whether s only holds letters, digits, underscore,
// hyphen and space.
func IsSafeText(s string) bool {
	return safeText.MatchString(s)
}

// CriteriaValidator checks FilterCriteria field domains and route membership.
type CriteriaValidator struct {
	v *validator.Validate
}

func NewCriteriaValidator() *CriteriaValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("safetext", func(fl validator.FieldLevel) bool {
		return IsSafeText(fl.Field().String())
	})
	return &CriteriaValidator{v: v}
}

// Validate rejects criteria outside their domains. routes is the catalog
// entry for c.State; when known is false the route name did not come from
// a catalog-backed selector and must pass the safe character class instead.
func (cv *CriteriaValidator) Validate(c models.FilterCriteria, routes []string, known bool) error {
	if err := cv.v.Struct(c); err != nil {
		return translate(err)
	}

	if known {
		for _, r := range routes {
			if r == c.RouteName {
				return nil
			}
		}
		return apperrors.NewInvalidFilterError(
			fmt.Sprintf("route %q is not offered for state %q", c.RouteName, c.State), "routeName")
	}

	if err := cv.v.Var(c.RouteName, "safetext"); err != nil {
		return apperrors.NewInvalidFilterError("routeName contains disallowed characters", "routeName")
	}
	return nil
}

func translate(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.NewInvalidFilterError(err.Error())
	}

	msgs := make([]string, 0, len(verrs))
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		if ns := fe.Namespace(); strings.Contains(ns, "earliestStart") {
			field = "earliestStart"
		}
		msgs = append(msgs, fmt.Sprintf("%s failed %s", field, describe(fe)))
		fields = append(fields, field)
	}
	return apperrors.NewInvalidFilterError(strings.Join(msgs, "; "), fields...)
}

func describe(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fmt.Sprintf("%s=%s", fe.Tag(), fe.Param())
}
