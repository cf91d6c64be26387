package domain

import engerrors "github.com/fractalvote/deliberation/internal/domain/errors"

// newDomainErr wraps a domain-invariant violation as a PreconditionFailed
// EngineError with the generic wrong-phase code; callers that need a more
// specific Code construct an EngineError directly instead.
func newDomainErr(msg string) error {
	return engerrors.PreconditionFailed(engerrors.CodeWrongPhase, msg)
}
