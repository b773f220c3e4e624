package modules

import (
	"fmt"

	"github.com/bft-labs/ambient/internal/domain"
)

func configError(spec domain.ModuleSpec, kind domain.ConfigErrorKind, field, format string, args ...any) *domain.ConfigError {
	return &domain.ConfigError{
		Module:  spec.Name,
		Index:   spec.Index,
		Kind:    kind,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}
