package middleware

import (
	"context"
	"net/http"

	"github.com/mcoot/rps-ledger/internal/api/apierr"
	"github.com/mcoot/rps-ledger/internal/model"
)

// AccountHeader carries the address a transaction is submitted from.
// The development ledger trusts it; there is no signature check.
const AccountHeader = "X-Ledger-Account"

type contextKey string

const accountContextKey contextKey = "account"

// Account creates middleware requiring a well-formed caller account
func Account() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(AccountHeader)
			if raw == "" {
				apierr.WriteError(w, apierr.NewUnauthorizedError())
				return
			}

			account, err := model.ParseAddress(raw)
			if err != nil {
				apierr.WriteError(w, err)
				return
			}
			if !account.IsSet() {
				apierr.WriteError(w, apierr.NewUnauthorizedError())
				return
			}

			ctx := context.WithValue(r.Context(), accountContextKey, account)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAccount returns the caller account from the request context
func GetAccount(ctx context.Context) (model.Address, bool) {
	account, ok := ctx.Value(accountContextKey).(model.Address)
	return account, ok
}

// MustGetAccount returns the caller account or panics
func MustGetAccount(ctx context.Context) model.Address {
	account, ok := GetAccount(ctx)
	if !ok {
		panic("no account in context - account middleware not applied?")
	}
	return account
}
