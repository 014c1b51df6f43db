// Package authcore is an embeddable account-authentication engine: signup
// with email activation, signin with HS256 bearer tokens, token refresh,
// and one-time password recovery, backed by Redis for token and snapshot
// state.
//
// The engine owns no transport and no user schema. Host applications supply
// a [UserStore] for persistence and a [Notifier] for email delivery, then map
// their HTTP or RPC layer onto the [Engine] methods:
//
//	engine, err := authcore.New().
//		WithConfig(cfg).
//		WithRedis(redisClient).
//		WithUserStore(store).
//		WithNotifier(mail).
//		Build()
//
// Every error returned by the engine wraps one of the category sentinels
// (ErrValidation, ErrConflict, ErrNotFound, ErrExpired, ErrAlreadyUsed,
// ErrUnauthorized, ErrRateLimited, ErrInvalidToken), so callers classify
// with errors.Is and translate categories to status codes in one place.
package authcore
