package mailbox

import (
	"errors"
	"fmt"

	"google.golang.org/api/googleapi"
)

// Error taxonomy for mailbox access. ErrAuth aborts the owner's sync run
// and leaves the watermark untouched; ErrTransport does the same at the
// fetch stage.
var (
	ErrAuth      = errors.New("mailbox: authentication failed")
	ErrTransport = errors.New("mailbox: transport failure")
)

// classifyError maps a Gmail API failure onto the package taxonomy.
// 401/403 indicate an invalid or revoked credential; everything else is
// treated as a transport fault.
func classifyError(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == 401 || apiErr.Code == 403 {
			return fmt.Errorf("%s: %w: %v", op, ErrAuth, err)
		}
	}
	return fmt.Errorf("%s: %w: %v", op, ErrTransport, err)
}
