package harness

import "errors"

type sessionMode int

const (
	sessionNone sessionMode = iota
	// sessionEmbedded sessions were loaded from a path and own no model bytes.
	sessionEmbedded
	// sessionOwned sessions were loaded from engine memory held by model.
	sessionOwned
)

// sessionHandle is the single logical session of a Prediction, whichever way
// it was created.
type sessionHandle struct {
	mode    sessionMode
	session Session
	model   *ModelHandle
}

func embeddedSession(s Session) sessionHandle {
	return sessionHandle{mode: sessionEmbedded, session: s}
}

func ownedSession(s Session, model *ModelHandle) sessionHandle {
	return sessionHandle{mode: sessionOwned, session: s, model: model}
}

func (h *sessionHandle) get() Session {
	return h.session
}

// release destroys the session and, for owned sessions, frees the model
// bytes afterwards. It is a no-op once released.
func (h *sessionHandle) release() error {
	var err error
	switch h.mode {
	case sessionEmbedded:
		err = h.session.Destroy()
	case sessionOwned:
		err = errors.Join(h.session.Destroy(), h.model.Release())
	}
	*h = sessionHandle{}
	return err
}
