package errors

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

func formatError(es []error) string {
	if len(es) == 1 {
		return fmt.Sprintf("1 error occurred:\n\t* %s", es[0])
	}

	points := make([]string, len(es))
	for i, err := range es {
		points[i] = fmt.Sprintf("* %s", err)
	}

	return fmt.Sprintf(
		"%d errors occurred:\n\t%s",
		len(es), strings.Join(points, "\n\t"))
}

// FormatErrorOrNil returns nil when err holds no errors, otherwise err with a compact list format.
func FormatErrorOrNil(err *multierror.Error) error {
	if err != nil {
		err.ErrorFormat = formatError
	}
	return err.ErrorOrNil()
}

// Collect runs every cleanup step, even after a failure, and returns the combined result.
func Collect(steps ...func() error) error {
	var merr *multierror.Error
	for _, step := range steps {
		if err := step(); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	return FormatErrorOrNil(merr)
}
