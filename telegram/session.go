package telegram

import (
	"time"

	"github.com/fwojciec/stockwatch"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// SessionTTL is how long a guided /add waits for the next reply.
const SessionTTL = 5 * time.Minute

// maxSessions bounds the number of concurrent guided sessions.
const maxSessions = 64

type addStep int

const (
	stepURL addStep = iota
	stepName
	stepNote
)

// addSession is a guided /add in progress.
type addSession struct {
	step   addStep
	target stockwatch.Target
}

// sessions holds guided sessions keyed by user ID. An entry expires
// SessionTTL after the last reply that advanced it.
type sessions struct {
	cache *expirable.LRU[int64, *addSession]
}

func newSessions(ttl time.Duration) *sessions {
	return &sessions{cache: expirable.NewLRU[int64, *addSession](maxSessions, nil, ttl)}
}

func (s *sessions) get(user int64) (*addSession, bool) {
	return s.cache.Get(user)
}

// put stores the session, restarting its expiry.
func (s *sessions) put(user int64, sess *addSession) {
	s.cache.Add(user, sess)
}

func (s *sessions) drop(user int64) bool {
	return s.cache.Remove(user)
}
