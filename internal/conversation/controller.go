// ABOUTME: Chat turn state machine for one selected customer
// ABOUTME: Optimistic user entries, one call in flight, stale replies dropped by epoch tag

package conversation

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/2389/pharma-console/internal/gateway"
	"github.com/2389/pharma-console/internal/pharmacy"
)

// Role identifies who produced a transcript entry.
type Role string

const (
	RoleUser           Role = "user"
	RoleAgent          Role = "agent"
	RoleTransportError Role = "transport-error"
)

// State is the controller's turn state.
type State string

const (
	StateIdle          State = "idle"
	StateAwaitingReply State = "awaiting-reply"
)

// Message is one transcript entry. Approved and OrderID are set only for
// agent entries.
type Message struct {
	ID        int64
	Role      Role
	Text      string
	CreatedAt time.Time
	Approved  bool
	OrderID   *int64
}

// Transcript is a read-only snapshot of the controller.
type Transcript struct {
	Customer *pharmacy.Customer
	Messages []Message
	Pending  bool
	Banner   string
}

// State reports the turn state captured in the snapshot.
func (t Transcript) State() State {
	if t.Pending {
		return StateAwaitingReply
	}
	return StateIdle
}

// ChatSender performs one chat call. *gateway.Client satisfies it.
type ChatSender interface {
	Chat(ctx context.Context, customerID int64, message string) (*pharmacy.ChatReply, error)
}

// Turn is an accepted submission, tagged with the selection it was issued for.
type Turn struct {
	CustomerID int64
	Text       string
	epoch      uint64
}

// Outcome is the settled result of a Turn.
type Outcome struct {
	Turn  Turn
	Reply *pharmacy.ChatReply
	Err   error
}

// Controller owns the transcript for the selected customer and the single
// in-flight chat turn.
type Controller struct {
	sender ChatSender
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	customer *pharmacy.Customer
	messages []Message
	lastID   int64
	pending  bool
	banner   string
	epoch    uint64

	broadcaster *snapshotBroadcaster
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the time source used for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// NewController creates a controller with no customer selected.
func NewController(sender ChatSender, opts ...Option) *Controller {
	c := &Controller{
		sender: sender,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "conversation")
	c.broadcaster = newSnapshotBroadcaster(c.logger)
	return c
}

// Begin accepts a submission. It is rejected, with no state change, when
// text is blank, no customer is selected, or a turn is already pending. On
// acceptance the user entry is appended, the banner cleared and the
// controller moves to awaiting-reply.
func (c *Controller) Begin(text string) (Turn, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if strings.TrimSpace(text) == "" || c.customer == nil || c.pending {
		return Turn{}, false
	}

	c.appendLocked(Message{Role: RoleUser, Text: text})
	c.banner = ""
	c.pending = true

	turn := Turn{CustomerID: c.customer.ID, Text: text, epoch: c.epoch}
	c.logger.Debug("turn started", "customer_id", turn.CustomerID, "epoch", turn.epoch)
	c.publishLocked()
	return turn, true
}

// Exchange performs the chat call for turn. It does not touch controller
// state and may run off the event loop.
func (c *Controller) Exchange(ctx context.Context, turn Turn) Outcome {
	reply, err := c.sender.Chat(ctx, turn.CustomerID, turn.Text)
	return Outcome{Turn: turn, Reply: reply, Err: err}
}

// Settle applies an outcome and returns the controller to idle. Outcomes
// for a selection that has since changed are discarded and Settle returns
// false. Failures are recorded as a transport-error entry and never retried.
func (c *Controller) Settle(out Outcome) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.pending {
		return false
	}
	c.pending = false

	if out.Turn.epoch != c.epoch {
		c.logger.Debug("discarded stale reply",
			"customer_id", out.Turn.CustomerID,
			"epoch", out.Turn.epoch,
			"current_epoch", c.epoch)
		c.publishLocked()
		return false
	}

	switch {
	case out.Err != nil:
		c.appendLocked(Message{Role: RoleTransportError, Text: gateway.ErrorText(out.Err)})
		c.banner = out.Err.Error()
		c.logger.Warn("chat turn failed", "customer_id", out.Turn.CustomerID, "error", out.Err)
	case out.Reply == nil:
		c.appendLocked(Message{Role: RoleTransportError, Text: gateway.ErrorText(nil)})
		c.banner = gateway.GenericFailure
	default:
		c.appendLocked(Message{
			Role:     RoleAgent,
			Text:     out.Reply.Reply,
			Approved: out.Reply.Approved,
			OrderID:  out.Reply.OrderID,
		})
	}

	c.publishLocked()
	return true
}

// Submit begins a turn and completes it asynchronously. The returned channel
// closes once the turn has settled. ok is false when the submission was
// rejected; the channel is then nil.
func (c *Controller) Submit(ctx context.Context, text string) (done <-chan struct{}, ok bool) {
	turn, ok := c.Begin(text)
	if !ok {
		return nil, false
	}

	ch := make(chan struct{})
	go func() {
		defer close(ch)
		c.Settle(c.Exchange(ctx, turn))
	}()
	return ch, true
}

// SelectCustomer swaps the selection and empties the transcript. A turn
// still in flight stays pending so no second call can start, but its reply
// is discarded when it arrives.
func (c *Controller) SelectCustomer(customer pharmacy.Customer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.customer = &customer
	c.messages = nil
	c.lastID = 0
	c.banner = ""
	c.epoch++

	c.logger.Debug("customer selected", "customer_id", customer.ID, "epoch", c.epoch)
	c.publishLocked()
}

// Transcript returns a snapshot of the current state.
func (c *Controller) Transcript() Transcript {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe streams a snapshot after every state change until ctx is
// cancelled. Snapshots are dropped for subscribers that fall behind.
func (c *Controller) Subscribe(ctx context.Context) <-chan Transcript {
	ch, _ := c.broadcaster.Subscribe(ctx)
	return ch
}

// Close ends every subscription.
func (c *Controller) Close() {
	c.broadcaster.Close()
}

func (c *Controller) appendLocked(m Message) {
	c.lastID++
	m.ID = c.lastID
	m.CreatedAt = c.now()
	c.messages = append(c.messages, m)
}

func (c *Controller) snapshotLocked() Transcript {
	snap := Transcript{
		Messages: make([]Message, len(c.messages)),
		Pending:  c.pending,
		Banner:   c.banner,
	}
	copy(snap.Messages, c.messages)
	if c.customer != nil {
		customer := *c.customer
		snap.Customer = &customer
	}
	return snap
}

func (c *Controller) publishLocked() {
	c.broadcaster.Publish(c.snapshotLocked())
}
