package memory

import "sync"

// Notice kinds recorded by Notifier.
const (
	NoticeError      = "error"
	NoticeSuccess    = "success"
	NoticeNavigation = "navigate"
)

// Notice is one user-facing message.
type Notice struct {
	Kind    string   `json:"kind"`
	Message string   `json:"message"`
	Action  string   `json:"action,omitempty"`
	Path    []string `json:"path,omitempty"`
}

// Notifier implements ports.Notifier by buffering notices until drained.
// Adapters without a live UI (HTTP, MCP) hand the buffer back to the client.
type Notifier struct {
	mu      sync.Mutex
	notices []Notice
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{}
}

func (n *Notifier) ShowError(message string) {
	n.add(Notice{Kind: NoticeError, Message: message})
}

func (n *Notifier) ShowSuccess(message string) {
	n.add(Notice{Kind: NoticeSuccess, Message: message})
}

func (n *Notifier) ShowErrorWithNavigation(message, actionLabel string, targetLayerPath []string) {
	n.add(Notice{
		Kind:    NoticeNavigation,
		Message: message,
		Action:  actionLabel,
		Path:    append([]string{}, targetLayerPath...),
	})
}

func (n *Notifier) add(notice Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
}

// Drain returns the buffered notices and empties the buffer.
func (n *Notifier) Drain() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := n.notices
	n.notices = nil
	return out
}

// Notifiers keeps one Notifier per project.
type Notifiers struct {
	mu  sync.Mutex
	set map[string]*Notifier
}

// NewNotifiers creates an empty set.
func NewNotifiers() *Notifiers {
	return &Notifiers{set: make(map[string]*Notifier)}
}

// For returns the notifier of projectID, creating it on first use.
func (s *Notifiers) For(projectID string) *Notifier {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.set[projectID]
	if !ok {
		n = NewNotifier()
		s.set[projectID] = n
	}
	return n
}

// Forget drops the notifier of projectID.
func (s *Notifiers) Forget(projectID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.set, projectID)
}
