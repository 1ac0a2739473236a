package gossip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	ma "github.com/multiformats/go-multiaddr"
	"golang.org/x/time/rate"

	"github.com/rhizome-dev/rhizome/internal/ids"
	"github.com/rhizome-dev/rhizome/internal/routing"
	"github.com/rhizome-dev/rhizome/internal/session"
	"github.com/rhizome-dev/rhizome/internal/sigrefs"
)

// RoutingUpdate is emitted whenever an Inventory announcement creates a
// new routing entry for a repo the local node follows.
type RoutingUpdate struct {
	Repo ids.RepoId
	Node ids.NodeId
	At   time.Time
}

// RefsFetched is emitted after a Refs announcement successfully
// triggers a fetch.
type RefsFetched struct {
	Repo    ids.RepoId
	From    ids.NodeId
	Updated []ids.RefName
}

// Events is the sink the service reports observable activity to. All
// methods must be safe to call from the reactor goroutine; callers that
// need to do real work should hand off to their own goroutine.
type Events interface {
	OnRoutingUpdate(RoutingUpdate)
	OnRefsFetched(RefsFetched)
}

// NopEvents discards everything; useful for tests and embeddings that
// don't care about observability.
type NopEvents struct{}

func (NopEvents) OnRoutingUpdate(RoutingUpdate) {}
func (NopEvents) OnRefsFetched(RefsFetched)     {}

// Fetcher drives C4 against a single connected peer for one repo. The
// gossip service depends on this narrow interface rather than the
// concrete fetch state machine so it can be faked in tests.
type Fetcher interface {
	Fetch(ctx context.Context, peer ids.NodeId, repo ids.RepoId) ([]ids.RefName, error)
}

// PeerSession is the subset of the session layer (C2) the gossip
// reactor needs: who's on the other end, a way to push an announcement,
// enough of the underlying session.Session to resolve a simultaneous
// dial, and the liveness hooks the idle task drives.
type PeerSession interface {
	Peer() ids.NodeId
	Send(ctx context.Context, a *Announcement) error

	// Direction and ResourceID are the session.Candidate fields needed
	// by session.Resolve when a second connection to the same peer
	// shows up while this one is still live.
	Direction() session.Direction
	ResourceID() uint64

	// LastActive is consulted by session.ShouldPing; Ping sends a
	// liveness probe and records it outstanding. IsStale reports
	// whether a previously sent Ping has gone unanswered past
	// session.StaleConnectionTimeout.
	LastActive() time.Time
	Ping(ctx context.Context) error
	IsStale(now time.Time) bool

	// Close tears the session down for reason, whatever that means at
	// the transport level (closing the underlying wire.Muxer).
	Close(reason session.DisconnectReason) error
}

// Dialer opens an outbound connection to node at addr and carries it
// through the C2 handshake to a ready-to-use PeerSession. resourceID is
// the reactor's monotonic tie-break counter for this attempt, passed
// straight through to session.New.
type Dialer interface {
	Dial(ctx context.Context, node ids.NodeId, addr ma.Multiaddr, resourceID uint64) (PeerSession, error)
}

// Candidate is a node worth dialing: known address, not currently
// connected.
type Candidate struct {
	Node    ids.NodeId
	Address ma.Multiaddr
}

// Discovery supplies outbound dial candidates for the idle task's
// top-up, beyond whatever the address book already knows about.
type Discovery interface {
	Candidates(ctx context.Context, n int) []Candidate
}

// relayPolicy decides whether an announcement should be relayed, and
// if so to whom, excluding the announcer and the session it arrived on.
type relayPolicy struct {
	relayEnabled bool
}

func (p relayPolicy) shouldRelay(announcer, deliveredBy ids.NodeId, candidate PeerSession) bool {
	if !p.relayEnabled {
		return false
	}
	peer := candidate.Peer()
	return !peer.Equal(announcer) && !peer.Equal(deliveredBy)
}

// Service is the gossip reactor (C3): the single owner of routing
// table, address book, per-node bookkeeping, and session set. All
// mutation happens on the goroutine running Run; everything else talks
// to it through commands or announcement intake channels.
type Service struct {
	cfg      Config
	self     ids.NodeId
	signer   sigrefs.Signer
	followed map[string]struct{} // repo bytes -> followed

	routing *routing.Table
	addrs   *routing.AddressBook
	records *nodeRecords

	fetcher   Fetcher
	dialer    Dialer
	discovery Discovery
	events    Events
	log       *slog.Logger

	accept func(addr string) bool

	mu            sync.Mutex
	sessions      map[string]PeerSession // node bytes -> session
	subs          map[string]*Subscription
	followedNodes map[string]string // node bytes -> alias ("" if none given)

	nextResourceID uint64 // atomic, simultaneous-dial tie-break counter

	relayLimiters map[string]*rate.Limiter // signer bytes -> bucket
	connLimiters  map[string]*rate.Limiter // addr -> bucket
	connLimiterMu sync.Mutex

	inbound  chan inboundAnnouncement
	commands chan command

	lastInventory []ids.RepoId
	invChanged    bool

	now func() time.Time
}

type inboundAnnouncement struct {
	ann         *Announcement
	deliveredBy ids.NodeId
}

// NewService constructs a gossip service. routingTable and addrBook are
// owned by the service for its lifetime.
func NewService(cfg Config, self ids.NodeId, signer sigrefs.Signer, rt *routing.Table, ab *routing.AddressBook, fetcher Fetcher, events Events, log *slog.Logger) *Service {
	if events == nil {
		events = NopEvents{}
	}
	if log == nil {
		log = slog.Default()
	}
	svc := &Service{
		cfg:           cfg,
		self:          self,
		signer:        signer,
		followed:      make(map[string]struct{}),
		routing:       rt,
		addrs:         ab,
		records:       newNodeRecords(),
		fetcher:       fetcher,
		events:        events,
		log:           log,
		sessions:      make(map[string]PeerSession),
		subs:          make(map[string]*Subscription),
		followedNodes: make(map[string]string),
		relayLimiters: make(map[string]*rate.Limiter),
		connLimiters:  make(map[string]*rate.Limiter),
		inbound:       make(chan inboundAnnouncement, 256),
		commands:      make(chan command, 64),
		now:           time.Now,
	}
	svc.accept = svc.defaultAccept
	return svc
}

// SetAdmissionHook installs the accepted(addr) predicate used for new
// inbound connections, replacing the default per-address rate limit.
func (s *Service) SetAdmissionHook(fn func(addr string) bool) {
	s.accept = fn
}

// Accepted reports whether an inbound connection from addr should be
// admitted.
func (s *Service) Accepted(addr string) bool {
	return s.accept(addr)
}

// SetDialer installs the outbound connector used by Connect and the
// idle task's top-up. A nil dialer (the default) makes both a no-op:
// Connect fails with ErrNoDialer and the idle task only pings/prunes
// existing sessions.
func (s *Service) SetDialer(d Dialer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dialer = d
}

// SetDiscovery installs a supplementary source of dial candidates for
// the idle task's top-up, consulted after the address book's own known
// entries run out.
func (s *Service) SetDiscovery(d Discovery) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discovery = d
}

// defaultAccept rate-limits inbound connection attempts per source
// address so a single noisy dialer can't exhaust session slots; a
// caller with a richer policy (allow/deny lists, reputation) replaces
// this wholesale via SetAdmissionHook.
func (s *Service) defaultAccept(addr string) bool {
	if s.cfg.ConnAttemptRateLimit <= 0 {
		return true
	}
	s.connLimiterMu.Lock()
	lim, ok := s.connLimiters[addr]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(s.cfg.ConnAttemptRateLimit), s.cfg.ConnAttemptRateBurst)
		s.connLimiters[addr] = lim
	}
	s.connLimiterMu.Unlock()
	return lim.Allow()
}

// AttachSession registers sess as negotiated and ready for gossip. If a
// session to the same peer is already attached, the two are resolved
// deterministically via session.Resolve rather than one silently
// clobbering the other: the loser is closed with session.Conflict{} and
// AttachSession returns false without disturbing the winner.
func (s *Service) AttachSession(sess PeerSession) bool {
	key := string(sess.Peer().Bytes())

	s.mu.Lock()
	existing, ok := s.sessions[key]
	if !ok {
		s.sessions[key] = sess
		s.mu.Unlock()
		return true
	}

	winner := session.Resolve(s.self, sess.Peer(),
		session.Candidate{Direction: existing.Direction(), ResourceID: existing.ResourceID()},
		session.Candidate{Direction: sess.Direction(), ResourceID: sess.ResourceID()},
	)
	existingWins := winner.Direction == existing.Direction() && winner.ResourceID == existing.ResourceID()
	if !existingWins {
		s.sessions[key] = sess
	}
	s.mu.Unlock()

	if existingWins {
		s.log.Info("simultaneous dial resolved, keeping existing session", "peer", sess.Peer())
		_ = sess.Close(session.Conflict{})
		return false
	}
	s.log.Info("simultaneous dial resolved, replacing existing session", "peer", sess.Peer())
	_ = existing.Close(session.Conflict{})
	return true
}

// DetachSession removes a session, e.g. on disconnect.
func (s *Service) DetachSession(peer ids.NodeId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, string(peer.Bytes()))
	delete(s.subs, string(peer.Bytes()))
}

// SetSubscription records peer's bloom-filter + window subscription,
// used to gate relay fan-out.
func (s *Service) SetSubscription(peer ids.NodeId, sub *Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[string(peer.Bytes())] = sub
}

// Submit enqueues an announcement received from deliveredBy for
// processing on the reactor goroutine. Non-blocking up to the inbound
// channel's buffer; callers should treat a full buffer as backpressure.
func (s *Service) Submit(ctx context.Context, ann *Announcement, deliveredBy ids.NodeId) error {
	select {
	case s.inbound <- inboundAnnouncement{ann: ann, deliveredBy: deliveredBy}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do enqueues a control command for the reactor goroutine and returns
// once it is queued (or ctx is done); the reply arrives on the command's
// own Reply channel.
func (s *Service) Do(ctx context.Context, cmd command) error {
	select {
	case s.commands <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run is the reactor loop: it owns every piece of mutable service
// state and must run on exactly one goroutine for the service's
// lifetime.
func (s *Service) Run(ctx context.Context) {
	idle := time.NewTicker(s.cfg.IdleInterval)
	sync_ := time.NewTicker(s.cfg.SyncInterval)
	announce := time.NewTicker(s.cfg.AnnounceInterval)
	prune := time.NewTicker(s.cfg.PruneInterval)
	defer idle.Stop()
	defer sync_.Stop()
	defer announce.Stop()
	defer prune.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ia := <-s.inbound:
			s.handleAnnouncement(ctx, ia.ann, ia.deliveredBy)
		case cmd := <-s.commands:
			s.handleCommand(ctx, cmd)
		case <-idle.C:
			s.runIdle(ctx)
		case <-sync_.C:
			s.runSync(ctx)
		case <-announce.C:
			s.runAnnounce(ctx)
		case <-prune.C:
			s.runPrune(ctx)
		}
	}
}

// runIdle sends keep-alives and disconnects unresponsive peers, then
// tops up outbound connections toward TargetOutboundPeers. Liveness
// itself (ShouldPing/IsStale) is the session layer's (C2) rule; the
// reactor just applies it on its own tick.
func (s *Service) runIdle(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	sessions := make([]PeerSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	outbound := 0
	for _, sess := range sessions {
		if sess.IsStale(now) {
			s.log.Info("disconnecting stale session", "peer", sess.Peer())
			s.disconnect(sess.Peer(), session.StaleConnection{})
			continue
		}
		if sess.Direction() == session.Outbound {
			outbound++
		}
		if session.ShouldPing(sess.LastActive(), now) {
			if err := sess.Ping(ctx); err != nil {
				s.log.Warn("ping failed", "peer", sess.Peer(), "err", err)
			}
		}
	}

	s.log.Debug("idle tick", "sessions", len(sessions), "outbound", outbound, "target", s.cfg.TargetOutboundPeers)
	s.topUpOutbound(ctx, outbound)
}

// topUpOutbound dials fresh candidates, preferring the persisted address
// book and falling back to the optional Discovery source, until either
// TargetOutboundPeers is reached or candidates run out. A nil dialer
// makes this a no-op: there's nothing to dial with yet.
func (s *Service) topUpOutbound(ctx context.Context, outbound int) {
	s.mu.Lock()
	dialer := s.dialer
	discovery := s.discovery
	s.mu.Unlock()
	if dialer == nil {
		return
	}
	need := s.cfg.TargetOutboundPeers - outbound
	if need <= 0 {
		return
	}

	tried := 0
	for _, entry := range s.addrs.Entries() {
		if tried >= need {
			break
		}
		if entry.Node.Equal(s.self) || len(entry.Addresses) == 0 {
			continue
		}
		if _, connected := s.lookupSession(entry.Node); connected {
			continue
		}
		tried++
		if err := s.doConnect(ctx, entry.Node, entry.Addresses[0]); err != nil {
			s.log.Debug("idle top-up dial failed", "peer", entry.Node, "err", err)
		}
	}

	if tried >= need || discovery == nil {
		return
	}
	for _, c := range discovery.Candidates(ctx, need-tried) {
		if c.Node.Equal(s.self) {
			continue
		}
		if _, connected := s.lookupSession(c.Node); connected {
			continue
		}
		if err := s.doConnect(ctx, c.Node, c.Address); err != nil {
			s.log.Debug("idle top-up discovery dial failed", "peer", c.Node, "err", err)
		}
	}
}

// runSync is reserved for per-repo sync hooks; it has no behavior of
// its own beyond firing on its interval.
func (s *Service) runSync(ctx context.Context) {}

// runAnnounce broadcasts a fresh Inventory announcement to every
// negotiated peer, but only if the local inventory changed since the
// last broadcast.
func (s *Service) runAnnounce(ctx context.Context) {
	s.mu.Lock()
	if !s.invChanged {
		s.mu.Unlock()
		return
	}
	repos := append([]ids.RepoId(nil), s.lastInventory...)
	sessions := make([]PeerSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.invChanged = false
	s.mu.Unlock()

	ann, err := Sign(s.signer, Inventory{Repos: repos, Timestamp: s.now()})
	if err != nil {
		s.log.Error("sign inventory announcement", "err", err)
		return
	}
	for _, sess := range sessions {
		if err := sess.Send(ctx, ann); err != nil {
			s.log.Warn("send inventory announcement", "peer", sess.Peer(), "err", err)
		}
	}
}

// runPrune evicts routing entries older than the configured age and,
// if still oversized, the oldest remainder.
func (s *Service) runPrune(ctx context.Context) {
	s.routing.Prune(s.now())
}

// SetInventory replaces the local inventory announced at the next
// announce tick and marks it changed if it differs from the last
// broadcast set.
func (s *Service) SetInventory(repos []ids.RepoId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sameRepoSet(s.lastInventory, repos) {
		return
	}
	s.lastInventory = append([]ids.RepoId(nil), repos...)
	s.invChanged = true
}

func sameRepoSet(a, b []ids.RepoId) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]struct{}, len(a))
	for _, r := range a {
		seen[string(r.Bytes())] = struct{}{}
	}
	for _, r := range b {
		if _, ok := seen[string(r.Bytes())]; !ok {
			return false
		}
	}
	return true
}

// handleAnnouncement implements the four-step pipeline: verify, clock
// skew, staleness, dispatch.
func (s *Service) handleAnnouncement(ctx context.Context, ann *Announcement, deliveredBy ids.NodeId) {
	if err := ann.Verify(); err != nil {
		s.log.Warn("bad announcement signature", "signer", ann.Signer, "err", err)
		return
	}

	ts := ann.Message.timestamp()
	if ts.After(s.now().Add(s.cfg.MaxTimeDelta)) {
		if ann.Signer.Equal(deliveredBy) {
			s.log.Warn("clock-skewed announcement from relayer, disconnecting", "signer", ann.Signer)
			s.disconnect(ann.Signer, session.Misbehavior{Detail: "announcement timestamp too far in the future"})
		}
		return
	}

	if !s.admit(ann.Signer, ann.Message, ts) {
		return
	}

	switch msg := ann.Message.(type) {
	case Inventory:
		s.handleInventory(ctx, ann.Signer, deliveredBy, msg)
	case Refs:
		s.handleRefs(ctx, ann.Signer, deliveredBy, msg)
	case Node:
		s.handleNode(ctx, ann.Signer, deliveredBy, msg)
	}
}

func (s *Service) admit(signer ids.NodeId, msg AnnouncementMessage, ts time.Time) bool {
	switch msg.(type) {
	case Inventory:
		return s.records.admitInventory(signer, ts)
	case Refs:
		r := msg.(Refs)
		return s.records.admitRefs(signer, r.Repo, ts)
	case Node:
		return s.records.admitNode(signer, ts)
	default:
		return false
	}
}

func (s *Service) handleInventory(ctx context.Context, announcer, deliveredBy ids.NodeId, inv Inventory) {
	now := s.now()
	for _, repo := range inv.Repos {
		created := s.routing.Insert(repo, announcer, now)
		if created && s.followsRepo(repo) {
			s.events.OnRoutingUpdate(RoutingUpdate{Repo: repo, Node: announcer, At: now})
		}
	}
	s.relay(ctx, announcer, deliveredBy, Announcement{Signer: announcer, Message: inv})
}

func (s *Service) handleRefs(ctx context.Context, announcer, deliveredBy ids.NodeId, refs Refs) {
	if !s.followsRepo(refs.Repo) {
		return
	}
	sess, ok := s.lookupSession(deliveredBy)
	if !ok {
		return
	}
	updated, err := s.fetcher.Fetch(ctx, deliveredBy, refs.Repo)
	if err != nil {
		s.log.Warn("fetch after refs announcement failed", "repo", refs.Repo, "from", deliveredBy, "err", err)
		return
	}
	s.events.OnRefsFetched(RefsFetched{Repo: refs.Repo, From: deliveredBy, Updated: updated})
	_ = sess
	if len(updated) > 0 {
		s.relay(ctx, announcer, deliveredBy, Announcement{Signer: announcer, Message: refs})
	}
}

func (s *Service) handleNode(ctx context.Context, announcer, deliveredBy ids.NodeId, node Node) {
	if err := VerifyNodeProofOfWork(node); err != nil {
		s.log.Warn("node announcement failed proof of work", "node", announcer, "err", err)
		return
	}
	if !isSeed(node.Features) {
		return
	}
	changed := s.addrs.Upsert(nodeToEntry(announcer, node))
	if changed {
		s.relay(ctx, announcer, deliveredBy, Announcement{Signer: announcer, Message: node})
	}
}

// relay forwards ann to every session other than the announcer's and
// the one it arrived on, subject to the relay flag and each
// recipient's subscription.
func (s *Service) relay(ctx context.Context, announcer, deliveredBy ids.NodeId, ann Announcement) {
	if !s.relayEnabled() {
		return
	}
	if !s.relayAllowed(announcer) {
		s.log.Debug("relay rate limit exceeded, dropping", "signer", announcer)
		return
	}
	policy := relayPolicy{relayEnabled: true}
	s.mu.Lock()
	recipients := make([]PeerSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if policy.shouldRelay(announcer, deliveredBy, sess) {
			recipients = append(recipients, sess)
		}
	}
	subs := s.subs
	s.mu.Unlock()

	for _, sess := range recipients {
		if sub, ok := subs[string(sess.Peer().Bytes())]; ok {
			if repo, ts, matchable := relayMatchKey(ann.Message); matchable && !sub.Matches(repo, ts) {
				continue
			}
		}
		if err := sess.Send(ctx, &ann); err != nil {
			s.log.Warn("relay announcement", "to", sess.Peer(), "err", err)
		}
	}
}

// relayMatchKey extracts the (repo, timestamp) a subscription filter
// matches against, for message kinds that carry one. Node announcements
// aren't repo-scoped and always pass.
func relayMatchKey(msg AnnouncementMessage) (ids.RepoId, time.Time, bool) {
	switch m := msg.(type) {
	case Inventory:
		return ids.RepoId{}, m.Timestamp, false
	case Refs:
		return m.Repo, m.Timestamp, true
	default:
		return ids.RepoId{}, time.Time{}, false
	}
}

func (s *Service) relayEnabled() bool {
	return s.cfg.Relay
}

// relayAllowed consumes one token from announcer's relay bucket,
// creating it on first use. Disabled entirely (always true) when
// RelayRateLimit is non-positive.
func (s *Service) relayAllowed(announcer ids.NodeId) bool {
	if s.cfg.RelayRateLimit <= 0 {
		return true
	}
	key := string(announcer.Bytes())
	s.mu.Lock()
	lim, ok := s.relayLimiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(s.cfg.RelayRateLimit), s.cfg.RelayRateBurst)
		s.relayLimiters[key] = lim
	}
	s.mu.Unlock()
	return lim.Allow()
}

func (s *Service) followsRepo(repo ids.RepoId) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.followed[string(repo.Bytes())]
	return ok
}

func (s *Service) lookupSession(peer ids.NodeId) (PeerSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[string(peer.Bytes())]
	return sess, ok
}

// disconnect closes peer's session (if attached) for reason and removes
// it from the session set. Safe to call with no session attached.
func (s *Service) disconnect(peer ids.NodeId, reason session.DisconnectReason) {
	if sess, ok := s.lookupSession(peer); ok {
		_ = sess.Close(reason)
	}
	s.DetachSession(peer)
}

func nodeToEntry(node ids.NodeId, n Node) routing.AddressBookEntry {
	return routing.AddressBookEntry{
		Node:      node,
		Addresses: n.Addresses,
		Features:  n.Features,
		Alias:     n.Alias,
		LastSeen:  n.Timestamp,
	}
}

// isSeed reports whether the SEED feature bit is set; bit 0 is reserved
// for it by convention across the address book and handshake bundle.
func isSeed(features interface{ Test(uint) bool }) bool {
	if features == nil {
		return false
	}
	return features.Test(0)
}

func (s *Service) handleCommand(ctx context.Context, cmd command) {
	switch c := cmd.(type) {
	case AnnounceRefsCmd:
		c.Reply <- s.doAnnounceRefs(ctx, c.Repo, c.Manifest)
	case ConnectCmd:
		c.Reply <- s.doConnect(ctx, c.Node, c.Address)
	case FetchCmd:
		s.doFetch(ctx, c.Repo, c.Reply)
	case FollowCmd:
		c.Reply <- s.doFollow(c.Node, c.Alias)
	case SeedCmd:
		c.Reply <- s.doSeed(c.Repo, c.Scope)
	case DisconnectCmd:
		s.disconnect(c.Node, session.User{})
		c.Reply <- nil
	case QueryStateCmd:
		c.Fn(s)
		c.Reply <- struct{}{}
	}
}

// doAnnounceRefs signs a Refs envelope over manifest and fans it out to
// every negotiated session. The manifest itself is assembled by the
// caller (the storage/identity layer owns signing the actual ref set);
// this is just the broadcast half.
func (s *Service) doAnnounceRefs(ctx context.Context, repo ids.RepoId, manifest *sigrefs.Manifest) error {
	s.mu.Lock()
	sessions := make([]PeerSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	ann, err := Sign(s.signer, Refs{Repo: repo, Manifest: manifest, Timestamp: s.now()})
	if err != nil {
		return fmt.Errorf("gossip: sign refs announcement: %w", err)
	}

	var sendErrs []error
	for _, sess := range sessions {
		if err := sess.Send(ctx, ann); err != nil {
			s.log.Warn("send refs announcement", "peer", sess.Peer(), "err", err)
			sendErrs = append(sendErrs, fmt.Errorf("%s: %w", sess.Peer(), err))
		}
	}
	return errors.Join(sendErrs...)
}

// doConnect dials node at addr through the installed Dialer, carries the
// result through AttachSession's conflict resolution, and returns once
// the session is either attached or lost to an existing one.
func (s *Service) doConnect(ctx context.Context, node ids.NodeId, addr ma.Multiaddr) error {
	if _, ok := s.lookupSession(node); ok {
		return ErrAlreadyConnected
	}

	s.mu.Lock()
	dialer := s.dialer
	s.mu.Unlock()
	if dialer == nil {
		return ErrNoDialer
	}

	resourceID := atomic.AddUint64(&s.nextResourceID, 1)
	sess, err := dialer.Dial(ctx, node, addr, resourceID)
	if err != nil {
		return fmt.Errorf("gossip: dial %s at %s: %w", node, addr, err)
	}
	s.AttachSession(sess)
	return nil
}

func (s *Service) doFetch(ctx context.Context, repo ids.RepoId, reply chan<- FetchResult) {
	defer close(reply)
	nodes := s.routing.Seeds(repo)
	if len(nodes) == 0 {
		reply <- FetchResult{Repo: repo, Err: ErrUnknownRepo}
		return
	}
	for _, n := range nodes {
		sess, ok := s.lookupSession(n)
		if !ok {
			continue
		}
		_, err := s.fetcher.Fetch(ctx, sess.Peer(), repo)
		reply <- FetchResult{Repo: repo, Err: err}
	}
}

// doFollow records node (and its alias, if any) as followed, queryable
// through FollowedAlias. Following a node doesn't change which repos are
// seeded -- that's doSeed's job -- and nothing else in the service reads
// the followed-node set.
func (s *Service) doFollow(node ids.NodeId, alias string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.followedNodes[string(node.Bytes())] = alias
	return nil
}

// FollowedAlias reports the alias recorded for node, if any, and
// whether node is followed at all.
func (s *Service) FollowedAlias(node ids.NodeId) (alias string, followed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	alias, followed = s.followedNodes[string(node.Bytes())]
	return alias, followed
}

func (s *Service) doSeed(repo ids.RepoId, scope SeedingScope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch scope.(type) {
	case SeedAll, SeedFollowed:
		s.followed[string(repo.Bytes())] = struct{}{}
	case SeedBlock:
		// The excluded set is not stored, and no component narrows
		// acceptance by it. Following still happens so inventory gossip
		// is received.
		s.followed[string(repo.Bytes())] = struct{}{}
	}
	return nil
}
