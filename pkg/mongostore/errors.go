package mongostore

import (
	"context"
	"errors"
	"fmt"

	"github.com/adfharrison1/restodb/pkg/domain"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// Server error codes the gateway distinguishes.
const (
	codeBadValue           = 2
	codeNamespaceNotFound  = 26
	codeIndexNotFound      = 27
	codeNamespaceExists    = 48
	codeCannotCreateIndex  = 67
	codeInvalidIndexSpec   = 197
	codeIndexOptsConflict  = 85
	codeIndexKeysConflict  = 86
	codeIndexAlreadyExists = 68
	codeDuplicateKey       = 11000
	codeAPIStrictError     = 323
)

// classify maps a driver error onto the domain taxonomy. The original error
// stays in the chain.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, mongo.ErrClientDisconnected) {
		return fmt.Errorf("%w: %w", domain.ErrConnection, err)
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %w", domain.ErrIndexConflict, err)
	}

	var se mongo.ServerError
	if !errors.As(err, &se) {
		return err
	}
	switch {
	case se.HasErrorCode(codeNamespaceExists):
		return fmt.Errorf("%w: %w", domain.ErrAlreadyExists, err)
	case se.HasErrorCode(codeNamespaceNotFound), se.HasErrorCode(codeIndexNotFound):
		return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	case se.HasErrorCode(codeIndexOptsConflict), se.HasErrorCode(codeIndexKeysConflict),
		se.HasErrorCode(codeIndexAlreadyExists), se.HasErrorCode(codeDuplicateKey):
		return fmt.Errorf("%w: %w", domain.ErrIndexConflict, err)
	case se.HasErrorCode(codeBadValue), se.HasErrorCode(codeCannotCreateIndex),
		se.HasErrorCode(codeInvalidIndexSpec), se.HasErrorCode(codeAPIStrictError):
		return fmt.Errorf("%w: %w", domain.ErrInvalidSpec, err)
	}
	return err
}

// classifyPlan is classify for find and explain: anything the server rejects
// means no plan could be obtained.
func classifyPlan(err error) error {
	err = classify(err)
	if err == nil || errors.Is(err, domain.ErrConnection) || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrPlanUnavailable, err)
}
