package auth

import (
	"mediadrop/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	sessionIdKey = "sid"
	// Set by the login flow of the surrounding site
	userIdKey   = "user_id"
	userNameKey = "user_name"
)

type Session struct {
	sessions.Session
}

func LoadSession(c *gin.Context) *Session {
	return &Session{
		Session: sessions.Default(c),
	}
}

// Owner identifies the caller. Anonymous callers get a session id on first use,
// which is what their uploads are bound to.
func (s *Session) Owner() (owner models.Owner, err error) {
	sid, _ := s.Get(sessionIdKey).(string)
	if sid == "" {
		sid = uuid.NewString()
		s.Set(sessionIdKey, sid)
		if err = s.Save(); err != nil {
			return
		}
	}
	owner.SessionID = sid
	if id, ok := toUint64(s.Get(userIdKey)); ok && id > 0 {
		owner.UserID = &id
		owner.AccountName, _ = s.Get(userNameKey).(string)
	}
	return
}

func (s *Session) LoginUser(id uint64, name string) error {
	s.Set(userIdKey, id)
	s.Set(userNameKey, name)
	return s.Save()
}

func (s *Session) LogoutUser() error {
	s.Delete(userIdKey)
	s.Delete(userNameKey)
	return s.Save()
}

func toUint64(v interface{}) (uint64, bool) {
	switch id := v.(type) {
	case uint64:
		return id, true
	case int:
		return uint64(id), id >= 0
	case int64:
		return uint64(id), id >= 0
	case uint:
		return uint64(id), true
	case float64:
		return uint64(id), id >= 0
	}
	return 0, false
}
