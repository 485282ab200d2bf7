package coordinator

import (
	"fmt"

	"github.com/atomic2pc/atomic2pc/internal/chainerr"
)

func unknownTransactionError(txID string) error {
	return chainerr.NewNonRetryable(chainerr.UnknownTransaction, fmt.Sprintf("transaction %q is not known to this coordinator", txID), nil)
}
