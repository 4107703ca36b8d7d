package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// SessionSnapshotKey returns the cache key for the last published snapshot of a session
func (r *CacheKeyStruct) SessionSnapshotKey(sessionID string) string {
	return fmt.Sprintf("handgame:session:%s:snapshot", sessionID)
}

// SessionSummaryKey returns the cache key for a finished session's summary
func (r *CacheKeyStruct) SessionSummaryKey(sessionID string) string {
	return fmt.Sprintf("handgame:session:%s:summary", sessionID)
}

// WordVideoKey returns the cache key for a word's video link
func (r *CacheKeyStruct) WordVideoKey(text string) string {
	return fmt.Sprintf("handgame:word:%s:video", text)
}

var CacheKey = NewCacheKeyStruct()
