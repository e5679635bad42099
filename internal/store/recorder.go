package store

import (
	"github.com/banshee-data/tfcache/internal/tf"
)

// Recorder writes accepted ingress samples into one session.
type Recorder struct {
	store   *Store
	session Session
}

// NewRecorder starts a session for source and returns a recorder bound to it.
func NewRecorder(s *Store, source string) (*Recorder, error) {
	sess, err := s.StartSession(source)
	if err != nil {
		return nil, err
	}
	return &Recorder{store: s, session: sess}, nil
}

// Session returns the session samples are recorded under.
func (r *Recorder) Session() Session { return r.session }

// RecordSamples stores samples in a single transaction.
func (r *Recorder) RecordSamples(samples []tf.Stamped, static bool) error {
	return r.store.RecordBatch(r.session.ID, samples, static)
}
