package internal

// SessionType identifies the kind of a per command resource.
type SessionType int

const (
	SessionEntityCache SessionType = iota + 1
	SessionExecutionTree
	SessionAgenda
)

func (v SessionType) String() string {
	switch v {
	case SessionEntityCache:
		return "entity cache"
	case SessionExecutionTree:
		return "execution tree"
	case SessionAgenda:
		return "agenda"
	default:
		return "unknown"
	}
}

// Session is a resource, scoped to exactly one command context.
type Session interface {
	Flush() error
	Close() error
}

// SessionFactory opens a session of a specific type. A command context opens each session lazily, at most once.
type SessionFactory interface {
	SessionType() SessionType
	OpenSession(*CommandContext) (Session, error)
}

type sessionFactoryFunc struct {
	sessionType SessionType
	open        func(*CommandContext) (Session, error)
}

func (f sessionFactoryFunc) OpenSession(cc *CommandContext) (Session, error) {
	return f.open(cc)
}

func (f sessionFactoryFunc) SessionType() SessionType {
	return f.sessionType
}

// NewSessionFactory returns a session factory, which opens sessions using the given function.
func NewSessionFactory(sessionType SessionType, open func(*CommandContext) (Session, error)) SessionFactory {
	return sessionFactoryFunc{sessionType: sessionType, open: open}
}

func defaultSessionFactories() []SessionFactory {
	return []SessionFactory{
		NewSessionFactory(SessionEntityCache, openEntityCache),
		NewSessionFactory(SessionExecutionTree, openExecutionTree),
		NewSessionFactory(SessionAgenda, openAgenda),
	}
}
