package ports

import (
	"context"

	"github.com/nathantilsley/chart-pin/internal/pin/domain"
)

// PinUseCase is the driving port for the pin workflow.
type PinUseCase interface {
	Execute(ctx context.Context, req domain.PinRequest) error
}

// SetUseCase is the driving port for direct manifest field updates.
type SetUseCase interface {
	Set(ctx context.Context, req domain.SetRequest) error
}

// CherryPickUseCase is the driving port for copying manifest entries between
// revisions. It returns the merged manifest encoding for printing.
type CherryPickUseCase interface {
	CherryPick(ctx context.Context, req domain.CherryPickRequest) ([]byte, error)
}

// ValidateUseCase is the driving port for manifest structure validation.
type ValidateUseCase interface {
	Validate(ctx context.Context, manifestFile string) error
}
