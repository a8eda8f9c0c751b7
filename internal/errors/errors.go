// Package errors defines the error taxonomy shared by the game, engine and
// HTTP layers. Sentinels are matched with errors.Is; MoveError carries the
// offending token and position for logging.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidFormat indicates a move token that is not a square pair.
	ErrInvalidFormat = errors.New("invalid move format")

	// ErrIllegalMove indicates a well-formed move that is not legal in the position.
	ErrIllegalMove = errors.New("illegal move")

	// ErrEngineUnavailable indicates no engine binary could be found or launched.
	ErrEngineUnavailable = errors.New("engine unavailable")

	// ErrEngineFailure indicates the engine started but did not produce a usable move.
	ErrEngineFailure = errors.New("engine failure")

	// ErrStaleEvent indicates a UI event rendered against an older move sequence.
	ErrStaleEvent = errors.New("stale event")

	// ErrGameOver indicates a move was submitted after the game ended.
	ErrGameOver = errors.New("game is over")

	// ErrNotYourTurn indicates a human move while the engine is to move.
	ErrNotYourTurn = errors.New("not your turn")

	// ErrInvalidSide indicates an unknown side name.
	ErrInvalidSide = errors.New("invalid side")
)

// MoveError wraps a move rejection with the raw token and the position it
// was evaluated against.
type MoveError struct {
	Err   error
	Token string
	FEN   string
}

func (e *MoveError) Error() string {
	var parts []string
	if e.Token != "" {
		parts = append(parts, fmt.Sprintf("move %q", e.Token))
	}
	if e.FEN != "" {
		parts = append(parts, fmt.Sprintf("position %q", e.FEN))
	}
	if len(parts) == 0 {
		if e.Err == nil {
			return "move error"
		}
		return e.Err.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", strings.Join(parts, ", "), e.Err)
	}
	return strings.Join(parts, ", ")
}

// Unwrap returns the underlying sentinel.
func (e *MoveError) Unwrap() error {
	return e.Err
}

// Wrap adds context to an error while keeping it matchable with errors.Is.
func Wrap(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}

// Wrapf is Wrap with a format string.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// Code maps an error onto the short identifier used by the JSON API.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidFormat):
		return "invalid_format"
	case errors.Is(err, ErrIllegalMove):
		return "illegal_move"
	case errors.Is(err, ErrEngineUnavailable):
		return "engine_unavailable"
	case errors.Is(err, ErrEngineFailure):
		return "engine_failure"
	case errors.Is(err, ErrStaleEvent):
		return "stale_event"
	case errors.Is(err, ErrGameOver):
		return "game_over"
	case errors.Is(err, ErrNotYourTurn):
		return "not_your_turn"
	case errors.Is(err, ErrInvalidSide):
		return "invalid_side"
	default:
		return "internal"
	}
}

// Is re-exports errors.Is so callers importing this package under its own
// name do not need a second import.
func Is(err, target error) bool { return errors.Is(err, target) }
