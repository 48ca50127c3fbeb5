/**
 * @description
 * This file defines the Session model that carries one USSD conversation's
 * state between stateless gateway callbacks. The session store owns these
 * objects for as long as they are resident; everything else reads and mutates
 * them only between a load and the following save/evict.
 */

package domain

import "time"

// Session holds the reconstructed state of one USSD conversation.
//
// State is always the id of a valid node in the menu graph. Scratch
// accumulates the partially collected inputs of the flow rooted at the node
// where collection began (e.g. bvn, email, amount, recipient) and never
// outlives the conversation.
type Session struct {
	SessionID     string
	PhoneNumber   string
	State         string
	PriorState    string
	Scratch       map[string]string
	CreatedAt     time.Time
	LastTouchedAt time.Time
}

// Clone returns a deep copy of the session, including the scratch map. The
// session store hands out clones so no two callbacks ever mutate the same
// live object.
func (s *Session) Clone() *Session {
	c := *s
	c.Scratch = make(map[string]string, len(s.Scratch))
	for k, v := range s.Scratch {
		c.Scratch[k] = v
	}
	return &c
}
