package api

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ownerParam is the {ownerID} path segment.
type ownerParam struct {
	OwnerID string `validate:"required,max=128,printascii"`
}

// itemRequest is one wardrobe item in POST /owners/{ownerID}/items.
type itemRequest struct {
	ID       string `json:"id" validate:"required,max=128"`
	ImageRef string `json:"image_ref" validate:"required,max=512"`
	Category string `json:"category" validate:"required,max=64"`
}

// itemsRequest is the body of POST /owners/{ownerID}/items.
type itemsRequest struct {
	Items []itemRequest `json:"items" validate:"required,min=1,max=500,dive"`
}

// recommendationsQuery holds the query of GET /owners/{ownerID}/recommendations.
type recommendationsQuery struct {
	Event    string  `validate:"omitempty,max=64"`
	MinScore float64 `validate:"gte=0,lte=1"`
}

// validateRequest runs struct validation and wraps failures in ErrBadRequest.
func validateRequest(v any) error {
	err := getValidator().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fe.Namespace() + " failed " + fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		msgs = append(msgs, msg)
	}
	return fmt.Errorf("%w: %s", ErrBadRequest, strings.Join(msgs, "; "))
}
