package app

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"place_recommender/internal/domain"
)

// storeErr keeps domain errors as they are and turns anything else coming
// out of the graph store into ErrUnavailable. A caller that went away gets
// its context error back unchanged.
func storeErr(err error, op string) error {
	if err == nil || domain.IsDomain(err) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		log.Debug().Err(err).Str("op", op).Msg("graph store query canceled by caller")
		return err
	}
	log.Error().Err(err).Str("op", op).Msg("graph store query failed")
	return domain.Unavailable(err, op+" failed")
}
