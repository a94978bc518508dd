//go:build !unix

package internal

import (
	"fmt"
	"os"
)

func suspendProcess(p *os.Process) error {
	return fmt.Errorf("%w: pausing speech", ErrCapabilityUnavailable)
}

func continueProcess(p *os.Process) error {
	return fmt.Errorf("%w: resuming speech", ErrCapabilityUnavailable)
}
