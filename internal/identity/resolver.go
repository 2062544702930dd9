package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

var (
	// ErrOperatorNotFound is returned by Directory lookups with no match.
	// Resolve treats it as the anonymous case, not a failure.
	ErrOperatorNotFound = errors.New("operator not found")

	// ErrLookupUnavailable marks a directory outage. Resolve still returns a
	// usable anonymous identity alongside it so customer traffic keeps
	// flowing while the outage is visible to the caller.
	ErrLookupUnavailable = errors.New("identity lookup unavailable")
)

// Directory is the external identity lookup collaborator.
type Directory interface {
	FindOperatorByPhone(ctx context.Context, phone string) (OperatorRecord, error)
}

// Resolver classifies phone numbers into operators and anonymous customers.
type Resolver struct {
	directory   Directory
	logger      *slog.Logger
	countryCode string
}

func NewResolver(log *slog.Logger, directory Directory, defaultCountryCode string) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{
		directory:   directory,
		logger:      log.With(slog.String("service", "identity")),
		countryCode: strings.TrimSpace(defaultCountryCode),
	}
}

// Resolve maps a raw phone number to an ActorIdentity. Lookup forms are
// tried raw-first, then normalized. A registered operator with zero active
// memberships classifies as anonymous. Directory failures degrade to
// anonymous and surface as ErrLookupUnavailable for the caller to log.
func (r *Resolver) Resolve(ctx context.Context, phoneRaw string) (ActorIdentity, error) {
	canonical := Normalize(phoneRaw, r.countryCode)
	anonymous := ActorIdentity{Kind: KindAnonymous, Phone: canonical}

	if r.directory == nil {
		return anonymous, fmt.Errorf("identity directory not configured")
	}

	for _, candidate := range Candidates(phoneRaw, r.countryCode) {
		record, err := r.directory.FindOperatorByPhone(ctx, candidate)
		if err != nil {
			if errors.Is(err, ErrOperatorNotFound) {
				continue
			}
			r.logger.Warn("identity lookup failed, degrading to anonymous",
				slog.String("phone", candidate),
				slog.Any("error", err),
			)
			return anonymous, fmt.Errorf("%w: %w", ErrLookupUnavailable, err)
		}
		if len(record.Memberships) == 0 {
			// A user record without active memberships routes like any
			// unregistered customer.
			return anonymous, nil
		}
		return ActorIdentity{
			Kind:        KindOperator,
			OperatorID:  record.ID,
			DisplayName: record.DisplayName,
			Phone:       canonical,
			Memberships: record.Memberships,
		}, nil
	}
	return anonymous, nil
}
