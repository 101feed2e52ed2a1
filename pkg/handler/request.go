package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pocketbudget/entitlement-engine/pkg/account"
	"github.com/pocketbudget/entitlement-engine/pkg/usage"
)

const maxBodyBytes = 1 << 20

// CreateSessionRequest opens a session.
type CreateSessionRequest struct {
	Account        account.State `json:"account"`
	Usage          usage.Counts  `json:"usage"`
	InstallationID string        `json:"installationId,omitempty" validate:"omitempty,max=128"`
}

// CheckRequest asks whether an action is allowed at the given usage.
type CheckRequest struct {
	Action string `json:"action" validate:"required,max=64"`
	Usage  *int   `json:"usage,omitempty" validate:"omitempty,gte=0"`
}

// RestrictionHitRequest records a blocked action.
type RestrictionHitRequest struct {
	Action string `json:"action" validate:"required,max=64"`
}

// InteractionRequest records a user interaction.
type InteractionRequest struct {
	Type    string                 `json:"type" validate:"required,max=64"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ConversionRequest records an experiment conversion.
type ConversionRequest struct {
	Type  string   `json:"type" validate:"required,max=64"`
	Value *float64 `json:"value,omitempty"`
}

// decode reads a JSON body into v and validates it. An empty body decodes to
// the zero value before validation.
func (h *Handler) decode(r *http.Request, v interface{}) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("malformed JSON body: %w", err)
	}
	if err := h.validate.Struct(v); err != nil {
		return describeValidation(err)
	}
	return nil
}

func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid request: %s", strings.Join(fields, "; "))
}
