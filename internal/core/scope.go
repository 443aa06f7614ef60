package core

// ScopeKind tells project chats apart from direct threads.
type ScopeKind int

const (
	// ScopeProject is a project room chat.
	ScopeProject ScopeKind = iota
	// ScopeDirect is a 1:1 thread with a peer user.
	ScopeDirect
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeProject:
		return "project"
	case ScopeDirect:
		return "direct"
	default:
		return "unknown"
	}
}

// Scope identifies one message list: a project id or a direct peer id.
type Scope struct {
	Kind ScopeKind
	ID   string
}

// ProjectScope builds the scope of a project chat.
func ProjectScope(projectID string) Scope {
	return Scope{Kind: ScopeProject, ID: projectID}
}

// DirectScope builds the scope of a direct thread with peerID.
func DirectScope(peerID string) Scope {
	return Scope{Kind: ScopeDirect, ID: peerID}
}

func (s Scope) String() string {
	return s.Kind.String() + ":" + s.ID
}
