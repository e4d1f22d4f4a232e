package index

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Zuo-Peng/cs/internal/session"
)

var ErrNotFound = errors.New("no session matches")

// ErrNotResumable is wrapped by CheckResumable with the reason.
var ErrNotResumable = errors.New("session cannot be resumed")

// AmbiguousError is returned when an id prefix selects more than one session.
type AmbiguousError struct {
	Prefix  string
	Matches []session.Session
}

func (e *AmbiguousError) Error() string {
	ids := make([]string, 0, len(e.Matches))
	for _, m := range e.Matches {
		ids = append(ids, m.Source.ListLabel()+":"+m.ID)
	}
	return fmt.Sprintf("prefix %q is ambiguous: %s", e.Prefix, strings.Join(ids, ", "))
}
