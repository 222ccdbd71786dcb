package engine

import "errors"

// Every rejected precondition surfaces one of these. Callers match with
// errors.Is; the HTTP layer maps them to status codes. Nothing is
// logged-and-ignored.
var (
	ErrDuplicateCommand = errors.New("command already processed")
	ErrMarketNotFound   = errors.New("market not found")
	ErrMarketExists     = errors.New("market id already exists")
	ErrPaused           = errors.New("protocol is paused")

	ErrInvalidMarket = errors.New("invalid market definition")
	ErrInvalidAmount = errors.New("amount must be positive")

	ErrWrongPhase       = errors.New("operation not valid in current phase")
	ErrWindowClosed     = errors.New("window has closed")
	ErrWindowNotElapsed = errors.New("window has not elapsed")
	ErrCreatorPriority  = errors.New("creator priority window is open")
	ErrRefundTooClose   = errors.New("too close to refund deadline to start resolution")

	ErrBondMismatch       = errors.New("bond amount does not match required bond")
	ErrZeroSupplySide     = errors.New("one side has zero outstanding supply")
	ErrAlreadyVoted       = errors.New("account has already voted")
	ErrNoVoteWeight       = errors.New("account holds no shares to vote with")
	ErrInsufficientShares = errors.New("insufficient share balance")
	ErrSlippage           = errors.New("quote below slippage floor")
	ErrPoolInsolvent      = errors.New("quote exceeds pool balance")

	ErrNotResolved       = errors.New("market is not resolved")
	ErrNoWinningShares   = errors.New("no winning shares to claim")
	ErrAlreadyClaimed    = errors.New("position already claimed")
	ErrAlreadyRefunded   = errors.New("position already refunded")
	ErrRefundNotEligible = errors.New("emergency refund not eligible")
	ErrNothingToWithdraw = errors.New("nothing to withdraw")

	ErrInvalidParams = errors.New("invalid protocol parameters")
)
