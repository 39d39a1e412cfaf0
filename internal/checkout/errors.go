package checkout

import (
	"errors"
	"fmt"
	"strings"
)

// ProcessingMessage is what a shopper sees for any failed checkout step.
const ProcessingMessage = "No se pudo procesar"

var (
	ErrProcessing          = errors.New("checkout step failed")
	ErrEmptyCart           = errors.New("cart is empty, nothing to checkout")
	ErrNotReviewed         = errors.New("checkout has not been reviewed")
	ErrNoOrder             = errors.New("checkout has no draft order")
	ErrAlreadyProcessed    = errors.New("hosted payment session already processed")
	ErrPaymentNotCompleted = errors.New("hosted payment is not completed")
	IllegalTransitionError = errors.New("illegal transition of order status")
	ErrUnknownMethod       = errors.New("selected shipping or payment method is not offered")
)

// StepError wraps the failure of one checkout step. It matches ErrProcessing
// and unwraps to the backend error.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("checkout step %s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func (e *StepError) Is(target error) bool {
	return target == ErrProcessing
}

func (e *StepError) UserMessage() string {
	return ProcessingMessage
}

// ValidationError lists the selections a submit is missing.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "checkout is missing: " + strings.Join(e.Missing, ", ")
}
