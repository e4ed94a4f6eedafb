package project

import (
	"fmt"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

var colorRe = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

func validateCode(c models.Code) error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Text, validation.Required, validation.Length(1, 500)),
		validation.Field(&c.Color, validation.Match(colorRe).Error("must be a hex color such as #1f77b4")),
	)
	if err != nil {
		return fmt.Errorf("%w: code: %v", apperr.ErrValidation, err)
	}
	return nil
}

func validateCase(c models.Case) error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Name, validation.Required),
	)
	if err != nil {
		return fmt.Errorf("%w: case: %v", apperr.ErrValidation, err)
	}
	return nil
}

// checkSpan enforces 0 <= start < end <= len(t.Content) and, when codedText is
// non-empty, that it equals the covered slice. It returns the covered text.
func checkSpan(t models.Transcript, start, end int, codedText string) (string, error) {
	if start >= end {
		return "", fmt.Errorf("%w: start %d >= end %d", apperr.ErrValidation, start, end)
	}
	if start < 0 || end > t.Len() {
		return "", fmt.Errorf("%w: span [%d,%d) outside transcript %q of length %d",
			apperr.ErrValidation, start, end, t.ID, t.Len())
	}
	text := t.Content[start:end]
	if codedText != "" && codedText != text {
		return "", fmt.Errorf("%w: coded text does not match transcript %q at [%d,%d)",
			apperr.ErrValidation, t.ID, start, end)
	}
	return text, nil
}
