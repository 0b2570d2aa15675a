package sync

// Placeholder used in lock_error when the holder has no display name.
const unknownHolder = "another user"

type Audience int

const (
	// ToSender delivers only to the session that caused the effect.
	ToSender Audience = iota
	// ToRoom delivers to every session currently in the room, sender included.
	ToRoom
)

// Effect is an event the caller must deliver after a state transition.
type Effect struct {
	Audience Audience
	Event    Event
}

// Peer is the presence entry of a session.
type Peer struct {
	ID   string
	Name string
	Addr string
}

type lock struct {
	name   string
	color  string
	label  string
	holder string
}

// Doc is the authoritative state of one room: content, presence and the
// block lock table. It is not safe for concurrent use; its owner must
// serialize every call.
type Doc struct {
	Content string

	peers     []Peer
	locks     map[string]*lock
	lockOrder []string
	held      map[string]map[string]struct{}
}

func NewDoc() *Doc {
	return &Doc{
		locks: make(map[string]*lock),
		held:  make(map[string]map[string]struct{}),
	}
}

// Join registers a session and returns its snapshot, the current lock table
// when non-empty, and the refreshed presence list for the room.
func (doc *Doc) Join(peer Peer) []Effect {
	if doc.isMember(peer.ID) {
		return nil
	}
	doc.peers = append(doc.peers, peer)
	doc.held[peer.ID] = make(map[string]struct{})

	effects := []Effect{{Audience: ToSender, Event: NewSnapshot(doc.Content)}}
	if len(doc.locks) > 0 {
		effects = append(effects, Effect{Audience: ToSender, Event: NewLocksState(doc.Locks())})
	}
	return append(effects, Effect{Audience: ToRoom, Event: NewPeers(doc.Peers())})
}

// Leave removes a session with its presence entry and every lock it holds.
// It returns nil when the session is not a member, so repeated calls are
// harmless.
func (doc *Doc) Leave(id string) []Effect {
	if !doc.isMember(id) {
		return nil
	}

	for i, peer := range doc.peers {
		if peer.ID == id {
			doc.peers = append(doc.peers[:i], doc.peers[i+1:]...)
			break
		}
	}

	changed := false
	for blockID := range doc.held[id] {
		if l, ok := doc.locks[blockID]; ok && l.holder == id {
			doc.deleteLock(blockID)
			changed = true
		}
	}
	delete(doc.held, id)

	var effects []Effect
	if changed {
		effects = append(effects, Effect{Audience: ToRoom, Event: NewLocksState(doc.Locks())})
	}
	return append(effects, Effect{Audience: ToRoom, Event: NewPeers(doc.Peers())})
}

// Apply dispatches an inbound message from a member session. Messages from
// unknown sessions are ignored.
func (doc *Doc) Apply(id string, msg Message) []Effect {
	peer, ok := doc.peer(id)
	if !ok {
		return nil
	}

	switch msg.Type {
	case MsgJoin:
		return doc.seed(msg)
	case MsgUpdate:
		return doc.update(msg)
	case MsgLock:
		return doc.lock(peer, msg)
	case MsgUnlock:
		return doc.unlock(peer, msg)
	case MsgPing:
		return []Effect{{Audience: ToSender, Event: NewPong()}}
	}
	return nil
}

func (doc *Doc) seed(msg Message) []Effect {
	if doc.Content != "" || !msg.HasContent || msg.Content == "" {
		return nil
	}
	doc.Content = msg.Content
	return []Effect{{Audience: ToRoom, Event: NewUpdate(doc.Content)}}
}

func (doc *Doc) update(msg Message) []Effect {
	if !msg.HasContent {
		return nil
	}
	doc.Content = msg.Content
	return []Effect{{Audience: ToRoom, Event: NewUpdate(doc.Content)}}
}

func (doc *Doc) lock(peer Peer, msg Message) []Effect {
	if msg.BlockID == "" {
		return nil
	}

	held := doc.held[peer.ID]
	for blockID := range held {
		if blockID == msg.BlockID {
			continue
		}
		if l, ok := doc.locks[blockID]; ok && l.holder == peer.ID {
			doc.deleteLock(blockID)
			delete(held, blockID)
		}
	}

	if existing, ok := doc.locks[msg.BlockID]; ok && existing.holder != peer.ID {
		name := existing.name
		if name == "" {
			name = unknownHolder
		}
		return []Effect{{Audience: ToSender, Event: NewLockError(msg.BlockID, name)}}
	}

	if _, ok := doc.locks[msg.BlockID]; !ok {
		doc.lockOrder = append(doc.lockOrder, msg.BlockID)
	}
	doc.locks[msg.BlockID] = &lock{
		name:   peer.Name,
		color:  msg.Color,
		label:  msg.Label,
		holder: peer.ID,
	}
	held[msg.BlockID] = struct{}{}

	return []Effect{{Audience: ToRoom, Event: NewLocksState(doc.Locks())}}
}

func (doc *Doc) unlock(peer Peer, msg Message) []Effect {
	if msg.BlockID == "" {
		return nil
	}
	l, ok := doc.locks[msg.BlockID]
	if !ok || l.holder != peer.ID {
		return nil
	}

	doc.deleteLock(msg.BlockID)
	delete(doc.held[peer.ID], msg.BlockID)

	return []Effect{{Audience: ToRoom, Event: NewLocksState(doc.Locks())}}
}

func (doc *Doc) deleteLock(blockID string) {
	delete(doc.locks, blockID)
	for i, id := range doc.lockOrder {
		if id == blockID {
			doc.lockOrder = append(doc.lockOrder[:i], doc.lockOrder[i+1:]...)
			return
		}
	}
}

// Peers returns the display names of the connected sessions, deduplicated,
// in join order.
func (doc *Doc) Peers() []string {
	names := make([]string, 0, len(doc.peers))
	seen := make(map[string]struct{}, len(doc.peers))
	for _, peer := range doc.peers {
		if peer.Name == "" {
			continue
		}
		if _, ok := seen[peer.Name]; ok {
			continue
		}
		seen[peer.Name] = struct{}{}
		names = append(names, peer.Name)
	}
	return names
}

// Locks returns the lock table in acquisition order.
func (doc *Doc) Locks() []LockInfo {
	locks := make([]LockInfo, 0, len(doc.lockOrder))
	for _, blockID := range doc.lockOrder {
		l := doc.locks[blockID]
		locks = append(locks, LockInfo{
			BlockID: blockID,
			Name:    l.name,
			Color:   l.color,
			Label:   l.label,
		})
	}
	return locks
}

// Holder returns the session id holding blockID.
func (doc *Doc) Holder(blockID string) (string, bool) {
	l, ok := doc.locks[blockID]
	if !ok {
		return "", false
	}
	return l.holder, true
}

// HeldBy returns the blocks a session currently locks.
func (doc *Doc) HeldBy(id string) []string {
	blocks := make([]string, 0, len(doc.held[id]))
	for _, blockID := range doc.lockOrder {
		if _, ok := doc.held[id][blockID]; ok {
			blocks = append(blocks, blockID)
		}
	}
	return blocks
}

func (doc *Doc) Sessions() int {
	return len(doc.peers)
}

func (doc *Doc) isMember(id string) bool {
	_, ok := doc.held[id]
	return ok
}

func (doc *Doc) peer(id string) (Peer, bool) {
	for _, peer := range doc.peers {
		if peer.ID == id {
			return peer, true
		}
	}
	return Peer{}, false
}
