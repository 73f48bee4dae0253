package http

import (
	"net/http"

	"github.com/eternalab/hop-wallet/internal/signing"
)

// Handler is a convenience type so we can wrap common behavior.
type Handler func(http.ResponseWriter, *http.Request)

func requireMethod(method string, next Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			http.Error(w, HTTPErrorMethodNotAllowedText, http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := readJSONBody(r, dst); err != nil {
		http.Error(w, HTTPErrorInvalidJSONText, http.StatusBadRequest)
		return false
	}
	return true
}

// requireUnlocked reads the account once; handlers must use the returned
// value since the wallet can be locked concurrently.
func requireUnlocked(w http.ResponseWriter, s *Server) (*signing.Account, bool) {
	a := s.broker.Account()
	if a == nil {
		writeFail(w, http.StatusLocked, WalletLockedText)
		return nil, false
	}
	return a, true
}
