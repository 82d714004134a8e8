// Copyright 2015 Light Code Labs, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package middleware

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bob/gateway"
	"bob/internal/htpasswdengine"
)

// AuthBasicConfig names the htpasswd-format stores checked, in order,
// for a presented credential.
type AuthBasicConfig struct {
	Realm  string
	Stores []*htpasswdengine.Store
}

// AuthBasic parses `Authorization: Basic ...` and verifies it against
// one or more htpasswd stores, per spec §4.2.
func AuthBasic(cfg AuthBasicConfig) gateway.Middleware {
	return func(next gateway.Handler) gateway.Handler {
		return gateway.HandlerFunc(func(w http.ResponseWriter, r *http.Request) (int, error) {
			username, password, ok := r.BasicAuth()
			if ok && verifyAgainstStores(cfg.Stores, username, password) {
				return next.ServeHTTP(w, r)
			}
			return challengeResponse(w, cfg.Realm)
		})
	}
}

func verifyAgainstStores(stores []*htpasswdengine.Store, username, password string) bool {
	for _, s := range stores {
		if ok, err := s.Verify(username, password); err == nil && ok {
			return true
		}
	}
	return false
}

func challengeResponse(w http.ResponseWriter, realm string) (int, error) {
	if realm == "" {
		realm = "Restricted"
	}
	w.Header().Set("WWW-Authenticate", fmt.Sprintf("Basic realm=%q", realm))
	return http.StatusUnauthorized, nil
}

// sessionTTL is the fixed lifetime spec §4.2 assigns AuthBasicSession
// cookies.
const sessionTTL = 24 * time.Hour

const sessionCookieName = "bob_session"

// SessionSigner signs and verifies the session cookie issued by
// AuthBasicSession. Each NewSessionSigner call generates a new key,
// held only in memory and never persisted.
type SessionSigner struct {
	key [32]byte
}

// NewSessionSigner generates a fresh random signing key.
func NewSessionSigner() (*SessionSigner, error) {
	var s SessionSigner
	if _, err := rand.Read(s.key[:]); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *SessionSigner) sign(username string, expires int64) string {
	payload := fmt.Sprintf("%s|%d", username, expires)
	mac := hmac.New(sha256.New, s.key[:])
	mac.Write([]byte(payload))
	sig := mac.Sum(nil)
	return base64.RawURLEncoding.EncodeToString([]byte(payload)) + "." + base64.RawURLEncoding.EncodeToString(sig)
}

func (s *SessionSigner) verify(cookie string) (username string, ok bool) {
	parts := strings.SplitN(cookie, ".", 2)
	if len(parts) != 2 {
		return "", false
	}
	payloadBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", false
	}
	sigBytes, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", false
	}
	mac := hmac.New(sha256.New, s.key[:])
	mac.Write(payloadBytes)
	want := mac.Sum(nil)
	if !hmac.Equal(want, sigBytes) {
		return "", false
	}

	payload := string(payloadBytes)
	sep := strings.LastIndexByte(payload, '|')
	if sep < 0 {
		return "", false
	}
	expires, err := strconv.ParseInt(payload[sep+1:], 10, 64)
	if err != nil {
		return "", false
	}
	if time.Now().Unix() > expires {
		return "", false
	}
	return payload[:sep], true
}

// AuthBasicSessionConfig extends AuthBasicConfig with the signer every
// virtual server's session-auth rules share.
type AuthBasicSessionConfig struct {
	AuthBasicConfig
	Signer *SessionSigner
}

// AuthBasicSession behaves like AuthBasic, but on success issues a
// signed cookie so that successive requests skip the credential check
// until it expires (spec §4.2, 24h TTL).
func AuthBasicSession(cfg AuthBasicSessionConfig) gateway.Middleware {
	return func(next gateway.Handler) gateway.Handler {
		return gateway.HandlerFunc(func(w http.ResponseWriter, r *http.Request) (int, error) {
			if cookie, err := r.Cookie(sessionCookieName); err == nil {
				if _, ok := cfg.Signer.verify(cookie.Value); ok {
					return next.ServeHTTP(w, r)
				}
			}

			username, password, ok := r.BasicAuth()
			if !ok || !verifyAgainstStores(cfg.Stores, username, password) {
				return challengeResponse(w, cfg.Realm)
			}

			expires := time.Now().Add(sessionTTL)
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookieName,
				Value:    cfg.Signer.sign(username, expires.Unix()),
				Expires:  expires,
				HttpOnly: true,
				Secure:   r.TLS != nil,
				SameSite: http.SameSiteLaxMode,
				Path:     "/",
			})
			return next.ServeHTTP(w, r)
		})
	}
}
