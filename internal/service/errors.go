package service

import (
	"errors"
	"fmt"
)

var (
	ErrMarketNotFound       = errors.New("market not found")
	ErrInvalidOutcome       = errors.New("winning outcome must be A or B")
	ErrMarketAlreadySettled = errors.New("market already settled")
	ErrNoWinningStake       = errors.New("no stake on the winning outcome")
	ErrPoolInconsistent     = errors.New("winning stakes exceed the winning pool")
	ErrStorageFailure       = errors.New("storage failure")

	ErrMarketNotActive   = errors.New("market is not accepting bets")
	ErrInvalidTransition = errors.New("invalid market status transition")
	ErrInvalidStatus     = errors.New("unknown market status")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInvalidMarket     = errors.New("invalid market definition")
	ErrInvalidUser       = errors.New("invalid user")
	ErrUserNotFound      = errors.New("user not found")
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrUsernameTaken     = errors.New("username or wallet address already registered")
)

// StorageError wraps a failure of the underlying store. It matches
// ErrStorageFailure and is always safe to retry: the transaction that
// produced it was rolled back.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorageFailure }

func (e *StorageError) Retryable() bool { return true }

func storageError(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

var businessErrors = []error{
	ErrMarketNotFound,
	ErrInvalidOutcome,
	ErrMarketAlreadySettled,
	ErrNoWinningStake,
	ErrPoolInconsistent,
	ErrMarketNotActive,
	ErrInvalidTransition,
	ErrInvalidStatus,
	ErrInvalidAmount,
	ErrInvalidMarket,
	ErrInvalidUser,
	ErrUserNotFound,
	ErrWalletNotFound,
	ErrUsernameTaken,
	errInsufficientFunds,
}

// classify leaves business errors and existing storage errors untouched and
// wraps everything else (begin, commit, driver errors) as a StorageError.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	for _, target := range businessErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	return storageError(op, err)
}
