package mimic

import (
	lru "github.com/hashicorp/golang-lru/v2"
	utls "github.com/refraction-networking/utls"
)

// ticketCacheSize bounds the process-wide session cache. Entries are keyed
// by host:port, so this is the number of distinct origins with a cached
// ticket, not the number of tickets.
const ticketCacheSize = 64

// sessionTicketCache is a bounded utls.ClientSessionCache shared by every
// session in the process. Connections that resume with a cached ticket skip
// a full handshake; servers that key tickets to fingerprints also expect
// resumption from returning clients.
type sessionTicketCache struct {
	cache *lru.Cache[string, *utls.ClientSessionState]
}

func newSessionTicketCache(size int) *sessionTicketCache {
	cache, err := lru.New[string, *utls.ClientSessionState](size)
	if err != nil {
		panic(err)
	}
	return &sessionTicketCache{cache: cache}
}

func (c *sessionTicketCache) Get(sessionKey string) (*utls.ClientSessionState, bool) {
	return c.cache.Get(sessionKey)
}

func (c *sessionTicketCache) Put(sessionKey string, cs *utls.ClientSessionState) {
	if cs == nil {
		c.cache.Remove(sessionKey)
		return
	}
	c.cache.Add(sessionKey, cs)
}

var globalTicketCache = newSessionTicketCache(ticketCacheSize)
