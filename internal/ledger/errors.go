package ledger

import "errors"

// Business-rule and infrastructure rejections. All are matched with
// errors.Is by the conversation layer and translated into reply text;
// none of them leaves the account changed.
var (
	// ErrInsufficientBalance rejects a buy larger than the free cash.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInsufficientHoldings rejects a partial sell larger than the position.
	ErrInsufficientHoldings = errors.New("insufficient holdings")

	// ErrNoSuchPosition rejects an operation on a symbol that is not held.
	ErrNoSuchPosition = errors.New("no such position")

	// ErrPriceUnavailable covers every oracle failure, transient or not.
	ErrPriceUnavailable = errors.New("price unavailable")

	// ErrPersistence means the mutation could not be made durable and was
	// rolled back. The user sees a generic internal error, never a success
	// report on unsaved state.
	ErrPersistence = errors.New("failed to save account state")
)
