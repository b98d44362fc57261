// Package session keeps per-video pagination cursors so analysis of a long
// transcript can resume across invocations without redoing earlier windows.
package session

import (
	"sync"

	"github.com/t114/support-clip/internal/types"
)

// Store is an in-memory keyed session store. Safe for concurrent use;
// concurrent writers to the same video ID are last-writer-wins.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]types.Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]types.Session)}
}

// Get returns the session for the video and whether one exists.
func (s *Store) Get(videoID string) (types.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[videoID]
	return sess, ok
}

// Set stores the session under its VideoID, replacing any previous one.
func (s *Store) Set(sess types.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.VideoID] = sess
}

// Advance records the cursor returned by one analysis window. A fresh
// session is created for unknown video IDs.
func (s *Store) Advance(videoID string, totalSegments, analyzedSegments, nextOffset int, hasMore bool) types.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.sessions[videoID]
	sess.VideoID = videoID
	sess.TotalSegments = totalSegments
	sess.AnalyzedSegments = analyzedSegments
	sess.NextOffset = nextOffset
	sess.HasMore = hasMore
	s.sessions[videoID] = sess
	return sess
}

// Delete removes the session for the video, if any.
func (s *Store) Delete(videoID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, videoID)
}

// Len returns the number of tracked videos.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
