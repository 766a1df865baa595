package pipeline

import (
	"errors"
	"fmt"

	"github.com/gsdriver/alexa-logger/internal/logstore"
)

// ErrConfig is matched by every configuration error returned from this package.
var ErrConfig = errors.New("configuration error")

var (
	// ErrMissingParameters is returned when a required option or the output path is absent.
	ErrMissingParameters = fmt.Errorf("%w: missing parameters", ErrConfig)
	// ErrUnsupportedSource is returned when neither or both of directory and s3 are set.
	ErrUnsupportedSource = fmt.Errorf("%w: unsupported file access option", ErrConfig)
)

// IsConfigError reports whether err was caused by bad options rather than by
// storage or data.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrConfig) || errors.Is(err, logstore.ErrMissingBucket)
}
