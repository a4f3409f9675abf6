package reconcile

import "fmt"

// NoticeKind classifies a non-fatal condition worth showing to the user.
type NoticeKind int

const (
	// NoticeConflict: the remote rejected a highlight; it stays local until a refetch.
	NoticeConflict NoticeKind = iota
	// NoticeDeleteRolledBack: a delete failed and the highlight is visible again.
	NoticeDeleteRolledBack
	// NoticeRemovedRemotely: the remote no longer had the highlight; the local copy was dropped.
	NoticeRemovedRemotely
	// NoticeGeometryDecode: a drawn annotation carried geometry that could not be decoded.
	NoticeGeometryDecode
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeConflict:
		return "conflict"
	case NoticeDeleteRolledBack:
		return "delete_rolled_back"
	case NoticeRemovedRemotely:
		return "removed_remotely"
	case NoticeGeometryDecode:
		return "geometry_decode"
	}
	return fmt.Sprintf("notice(%d)", int(k))
}

type Notice struct {
	Kind        NoticeKind
	HighlightID string
	DocumentID  string
	Err         error
}

func (n Notice) String() string {
	if n.Err != nil {
		return fmt.Sprintf("%s %s: %v", n.Kind, n.HighlightID, n.Err)
	}
	return fmt.Sprintf("%s %s", n.Kind, n.HighlightID)
}

// Subscribe returns a channel of notices and a func that detaches it. Notices
// are dropped for subscribers that do not keep up.
func (e *Engine) Subscribe() (<-chan Notice, func()) {
	ch := make(chan Notice, 32)

	e.mu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	e.mu.Unlock()

	return ch, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if c, ok := e.subs[id]; ok {
			close(c)
			delete(e.subs, id)
		}
	}
}

func (e *Engine) notify(n Notice) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- n:
		default:
		}
	}
}
