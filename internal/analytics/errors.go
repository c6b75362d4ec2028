package analytics

import (
	"errors"
	"fmt"
	"strings"

	"hoopstats/ingestion/internal/models"
)

var (
	// ErrPlayerNotFound is returned when no player matches a query
	ErrPlayerNotFound = errors.New("player not found")

	// ErrAmbiguousPlayer is matched by *AmbiguousPlayerError
	ErrAmbiguousPlayer = errors.New("ambiguous player")

	// ErrUnknownMetric is returned for a metric name outside the supported set
	ErrUnknownMetric = models.ErrUnknownMetric

	// ErrInvalidQuery covers malformed analytics parameters
	ErrInvalidQuery = errors.New("invalid analytics query")
)

// AmbiguousPlayerError lists the players a name fragment matched
type AmbiguousPlayerError struct {
	Query      string
	Candidates []PlayerRef
}

func (e *AmbiguousPlayerError) Error() string {
	names := make([]string, 0, len(e.Candidates))
	for _, c := range e.Candidates {
		names = append(names, fmt.Sprintf("%s (%d)", c.FullName, c.ID))
	}
	return fmt.Sprintf("%v: %q matches %s", ErrAmbiguousPlayer, e.Query, strings.Join(names, ", "))
}

func (e *AmbiguousPlayerError) Is(target error) bool {
	return target == ErrAmbiguousPlayer
}
