package http

import (
	"errors"
	"net/http"

	"github.com/eternalab/hop-wallet/internal/securefile"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

// POST /wallet/unlock  { password }
func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	var req unlockRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	pw := []byte(req.Password)
	defer func() {
		for i := range pw {
			pw[i] = 0
		}
	}()

	a, err := s.unlock(pw)
	if err != nil {
		if errors.Is(err, securefile.ErrWrongPassword) {
			writeFail(w, http.StatusUnauthorized, WalletWrongPasswordText)
			return
		}
		log.Error("unlock wallet", "error", err)
		writeFail(w, http.StatusInternalServerError, WalletUnlockFailedText)
		return
	}
	s.broker.SetAccount(a)
	log.Info("wallet unlocked", "address", a.Address())
	writeOK(w, a.Info())
}

// POST /wallet/lock
func (s *Server) handleLock(w http.ResponseWriter, r *http.Request) {
	s.broker.SetAccount(nil)
	log.Info("wallet locked")
	writeOK(w, nil)
}
