/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Seednode/gamenight/internal/roster"
	"github.com/Seednode/gamenight/internal/signup"
	"github.com/julienschmidt/httprouter"
)

const maxBodySize = 4 << 10

type commandRequest struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

type commandResponse struct {
	Outcome signup.Outcome `json:"outcome"`
	Message string         `json:"message"`
	State   *signup.View   `json:"state,omitempty"`
}

// outcomeStatus maps each command outcome onto the HTTP status the API and
// the form page answer with.
func outcomeStatus(o signup.Outcome) int {
	switch o {
	case signup.Registered, signup.Unregistered:
		return http.StatusOK
	case signup.InvalidInput:
		return http.StatusBadRequest
	case signup.RegistrationClosed:
		return http.StatusForbidden
	case signup.UnknownParticipant:
		return http.StatusNotFound
	case signup.BadCredential:
		return http.StatusUnauthorized
	case signup.AlreadyRegistered, signup.NotRegistered, signup.Full:
		return http.StatusConflict
	default:
		return http.StatusServiceUnavailable
	}
}

func writeJSON(cfg *Config, w http.ResponseWriter, status int, v any) (int, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}
	data = append(data, '\n')

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	securityHeaders(cfg, w)
	w.WriteHeader(status)

	return w.Write(data)
}

func decodeCommand(w http.ResponseWriter, r *http.Request) (commandRequest, bool) {
	var req commandRequest

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return commandRequest{}, false
	}

	return req, true
}

func serveState(cfg *Config, e *signup.Engine, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		view, err := e.Snapshot(r.Context())
		if err != nil {
			errs <- err

			_, _ = writeJSON(cfg, w, http.StatusServiceUnavailable, commandResponse{
				Outcome: signup.StorageUnavailable,
				Message: signup.StorageUnavailable.Message(),
			})

			return
		}

		if _, err := writeJSON(cfg, w, http.StatusOK, view); err != nil {
			errs <- err
		}
	}
}

func serveCommand(cfg *Config, e *signup.Engine, action string, errs chan<- error) httprouter.Handle {
	run := e.Register
	if action == "unregister" {
		run = e.Unregister
	}

	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		outcome := signup.InvalidInput

		req, ok := decodeCommand(w, r)
		if ok {
			var err error
			outcome, err = run(r.Context(), req.Name, req.Code)
			if err != nil {
				errs <- err
			}
		}

		resp := commandResponse{
			Outcome: outcome,
			Message: outcome.Message(),
		}

		if outcome != signup.StorageUnavailable {
			if view, err := e.Snapshot(r.Context()); err == nil {
				resp.State = &view
			}
		}

		written, err := writeJSON(cfg, w, outcomeStatus(outcome), resp)
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "API: %s for %q from %s: %s (%s) in %s",
			action,
			strings.TrimSpace(req.Name),
			realIP(r),
			outcome,
			humanReadableSize(int64(written)),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func authorized(cfg *Config, r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || cfg.adminToken == "" {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(token), []byte(cfg.adminToken)) == 1
}

// serveCredentialReset replaces a player's personal code. When the roster
// came from a file, the file is rewritten so the new code survives restarts.
func serveCredentialReset(cfg *Config, e *signup.Engine, players *roster.Roster, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		if !authorized(cfg, r) {
			w.Header().Set("WWW-Authenticate", `Bearer realm="gamenight"`)
			_, _ = writeJSON(cfg, w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})

			return
		}

		req, ok := decodeCommand(w, r)
		if !ok {
			_, _ = writeJSON(cfg, w, http.StatusBadRequest, map[string]string{"error": "invalid request"})

			return
		}

		err := e.ResetCredential(r.Context(), req.Name, req.Code)
		switch {
		case errors.Is(err, roster.ErrUnknownParticipant):
			_, _ = writeJSON(cfg, w, http.StatusNotFound, map[string]string{"error": signup.UnknownParticipant.Message()})

			return
		case errors.Is(err, roster.ErrNoCredential):
			_, _ = writeJSON(cfg, w, http.StatusBadRequest, map[string]string{"error": signup.InvalidInput.Message()})

			return
		case err != nil:
			errs <- err
			_, _ = writeJSON(cfg, w, http.StatusInternalServerError, map[string]string{"error": "credential reset failed"})

			return
		}

		if cfg.roster != "" {
			if err := players.Save(cfg.roster); err != nil {
				errs <- err
				_, _ = writeJSON(cfg, w, http.StatusInternalServerError, map[string]string{"error": "credential changed but could not be saved"})

				return
			}
		}

		logf(cfg, "ADMIN: Reset code for %q from %s", strings.TrimSpace(req.Name), realIP(r))

		_, _ = writeJSON(cfg, w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
