package api

import (
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/rs/zerolog/log"

	orchestratorx "github.com/tanpawarit/bitebot/agent/agents/orchestrator"
	bookingx "github.com/tanpawarit/bitebot/agent/booking"
)

const sessionCookie = "bitebot_session"

// cookieState is everything the server hands back to the browser between
// turns.
type cookieState struct {
	SessionID string                 `json:"sid"`
	Snapshot  orchestratorx.Snapshot `json:"snap"`
}

// CookieStore keeps the caller-held snapshot in a signed and encrypted
// cookie.
type CookieStore struct {
	sc     *securecookie.SecureCookie
	secure bool
	now    func() time.Time
}

func NewCookieStore(hashKey, blockKey []byte, secure bool) *CookieStore {
	sc := securecookie.New(hashKey, blockKey)
	sc.SetSerializer(securecookie.JSONEncoder{})
	return &CookieStore{sc: sc, secure: secure, now: time.Now}
}

// Load returns the stored state. A missing or tampered cookie yields the zero
// state.
func (s *CookieStore) Load(r *http.Request) cookieState {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return cookieState{}
	}
	var st cookieState
	if err := s.sc.Decode(sessionCookie, c.Value, &st); err != nil {
		log.Warn().Err(err).Msg("discarding unreadable session cookie")
		return cookieState{}
	}
	st.SessionID = strings.TrimSpace(st.SessionID)
	return st
}

// Save writes the state. When the encoded value is too large the chat
// transcript is dropped first, then held reservations one at a time in the
// order picked by evictable. The newest reservation and the availability
// token are always kept; if the state still does not fit, Save fails.
func (s *CookieStore) Save(w http.ResponseWriter, st cookieState) error {
	encoded, err := s.sc.Encode(sessionCookie, st)
	if err != nil && len(st.Snapshot.Messages) > 0 {
		log.Warn().Err(err).Str("session_id", st.SessionID).Msg("session cookie too large, dropping transcript")
		st.Snapshot.Messages = nil
		encoded, err = s.sc.Encode(sessionCookie, st)
	}
	for err != nil {
		i := evictable(st.Snapshot.Reservations, s.now().Format(time.DateOnly))
		if i < 0 {
			break
		}
		log.Warn().Err(err).
			Str("session_id", st.SessionID).
			Str("reservation_id", st.Snapshot.Reservations[i].ReservationID).
			Msg("session cookie too large, dropping held reservation")
		st.Snapshot.Reservations = slices.Delete(slices.Clone(st.Snapshot.Reservations), i, i+1)
		encoded, err = s.sc.Encode(sessionCookie, st)
	}
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name: sessionCookie, Value: encoded, Path: "/",
		HttpOnly: true, Secure: s.secure, SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// evictable returns the index of the held reservation to drop next, or -1.
// Cancelled reservations go first, then those dated before today, then the
// oldest confirmed one. The most recently created reservation is never
// picked.
func evictable(list []bookingx.Reservation, today string) int {
	if len(list) < 2 {
		return -1
	}
	newest := 0
	for i, r := range list {
		if r.CreatedAt.After(list[newest].CreatedAt) {
			newest = i
		}
	}

	pick := func(match func(bookingx.Reservation) bool) int {
		best := -1
		for i, r := range list {
			if i == newest || !match(r) {
				continue
			}
			if best < 0 || r.CreatedAt.Before(list[best].CreatedAt) {
				best = i
			}
		}
		return best
	}
	if i := pick(func(r bookingx.Reservation) bool { return r.Status == bookingx.StatusCancelled }); i >= 0 {
		return i
	}
	if i := pick(func(r bookingx.Reservation) bool { return r.Date != "" && r.Date < today }); i >= 0 {
		return i
	}
	return pick(func(bookingx.Reservation) bool { return true })
}

func (s *CookieStore) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name: sessionCookie, Value: "", Path: "/", MaxAge: -1,
		HttpOnly: true, Secure: s.secure, SameSite: http.SameSiteLaxMode,
	})
}

// CookieKeys decodes the configured keys. Missing keys are generated, which
// invalidates cookies on restart.
func CookieKeys(cfg Config) (hashKey, blockKey []byte, err error) {
	hashKey = []byte(strings.TrimSpace(cfg.CookieHashKey))
	blockKey = []byte(strings.TrimSpace(cfg.CookieBlockKey))

	if len(hashKey) == 0 {
		log.Warn().Msg("APP_COOKIE_HASH_KEY not set, generating an ephemeral key")
		hashKey = securecookie.GenerateRandomKey(64)
	}
	if len(blockKey) == 0 {
		log.Warn().Msg("APP_COOKIE_BLOCK_KEY not set, generating an ephemeral key")
		blockKey = securecookie.GenerateRandomKey(32)
	}
	switch len(blockKey) {
	case 16, 24, 32:
	default:
		return nil, nil, errors.New("cookie block key must be 16, 24 or 32 bytes")
	}
	if hashKey == nil || blockKey == nil {
		return nil, nil, errors.New("generate cookie keys")
	}
	return hashKey, blockKey, nil
}
