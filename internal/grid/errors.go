package grid

import (
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/football-squares/internal/model"
)

// Sentinel errors returned by the engine.  Handlers map them to HTTP
// statuses; callers should compare with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrGameNotJoinable   = errors.New("game is not open for claims")
	ErrPlayerBlocked     = errors.New("player is blocked from this game")
	ErrQuotaExceeded     = errors.New("square limit per player exceeded")
	ErrCellUnavailable   = errors.New("one or more squares are not available")
	ErrNotManager        = errors.New("only the game manager may do this")
	ErrAlreadyLocked     = errors.New("grid is already locked")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTransition = errors.New("invalid game status transition")
	ErrAccessDenied      = errors.New("access denied")
)

// CellUnavailableError lists the cells that blocked a claim.  It matches
// ErrCellUnavailable under errors.Is.
type CellUnavailableError struct {
	Cells []model.Cell
}

func (e *CellUnavailableError) Error() string {
	parts := make([]string, 0, len(e.Cells))
	for _, c := range e.Cells {
		parts = append(parts, fmt.Sprintf("(%d,%d)", c.Row, c.Col))
	}
	return ErrCellUnavailable.Error() + ": " + strings.Join(parts, " ")
}

func (e *CellUnavailableError) Is(target error) bool { return target == ErrCellUnavailable }

// QuotaError carries the numbers behind ErrQuotaExceeded.
type QuotaError struct {
	Max       int
	Held      int
	Requested int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("maximum %d squares per player (holding %d, requested %d)", e.Max, e.Held, e.Requested)
}

func (e *QuotaError) Is(target error) bool { return target == ErrQuotaExceeded }

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
