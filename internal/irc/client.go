package irc

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ergochat/irc-go/ircevent"
	"github.com/ergochat/irc-go/ircmsg"

	"github.com/outofthemadness/handbot/internal/calendar"
	"github.com/outofthemadness/handbot/internal/config"
	"github.com/outofthemadness/handbot/internal/storage"
	"github.com/outofthemadness/handbot/internal/telemetry"
)

// Version information (set at build time or here)
var (
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// sender is the part of the IRC connection the handlers talk to
type sender interface {
	Privmsg(target, message string) error
	Join(channel string) error
	CurrentNick() string
}

// MeetingSource looks up the next scheduled meeting
type MeetingSource interface {
	Next(ctx context.Context, now time.Time) (*calendar.Event, error)
}

// Client owns the IRC connection and creates a new Session each time the
// connection comes up.
type Client struct {
	conn     *ircevent.Connection
	out      sender
	cfg      *config.Config
	meetings MeetingSource
	messages *storage.LastMessages
	now      func() time.Time

	mu      sync.Mutex
	session *Session

	// Cancelled on Quit/Close; in-flight calendar fetches derive from it
	ctx    context.Context
	cancel context.CancelFunc

	// OnFatal is called when the bot cannot keep running, e.g. the log file
	// can no longer be opened. Defaults to quitting.
	OnFatal func(error)
}

// NewClient creates a new IRC client
func NewClient(cfg *config.Config, meetings MeetingSource) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		cfg:      cfg,
		meetings: meetings,
		messages: storage.NewLastMessages(),
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}

	// ircevent treats a zero ReconnectFreq as "use the library default", so
	// the smallest positive interval stands in for an immediate reconnect.
	reconnect := cfg.ReconnectDelay
	if reconnect <= 0 {
		reconnect = time.Millisecond
	}

	conn := &ircevent.Connection{
		Server:        cfg.Address(),
		Nick:          cfg.Nick,
		User:          cfg.Username,
		RealName:      cfg.IRCName,
		QuitMessage:   "Shutting down",
		Version:       fmt.Sprintf("handbot %s (built %s, commit %s)", Version, BuildDate, GitCommit),
		Debug:         false,
		UseTLS:        false,
		EnableCTCP:    true,
		ReconnectFreq: reconnect,
	}
	c.conn = conn
	c.out = conn

	// Register handlers
	c.registerHandlers()

	return c
}

func (c *Client) registerHandlers() {
	// Registration complete (welcome/MOTD) and connection loss
	c.conn.AddConnectCallback(c.onConnect)
	c.conn.AddDisconnectCallback(c.onDisconnect)

	c.conn.AddCallback("JOIN", c.onJoin)
	c.conn.AddCallback("PRIVMSG", c.onPrivMsg)
	c.conn.AddCallback("NICK", c.onNick)

	// CTCP VERSION/PING/TIME are answered by ircevent itself
	c.conn.AddCallback("CTCP_ACTION", c.onAction)
}

// Connect makes the initial connection. A failure here is not retried.
func (c *Client) Connect() error {
	if err := c.conn.Connect(); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.cfg.Address(), err)
	}
	return nil
}

// Loop runs the IRC event loop (blocking). Lost connections are re-dialled
// until Quit is called.
func (c *Client) Loop() {
	c.conn.Loop()
}

// Quit abandons pending lookups and disconnects from IRC
func (c *Client) Quit(message string) {
	c.cancel()
	if message != "" {
		c.conn.QuitMessage = message
	}
	c.conn.Quit()
}

// Close flushes and closes the current session's log, if any
func (c *Client) Close() error {
	c.cancel()

	c.mu.Lock()
	sess := c.session
	c.session = nil
	c.mu.Unlock()

	if sess == nil {
		return nil
	}
	return sess.close(c.now())
}

func (c *Client) currentSession() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Client) onConnect(e ircmsg.Message) {
	slog.Info("connected to IRC server", slog.String("server", c.cfg.Address()), slog.String("nick", c.out.CurrentNick()))

	sess, err := openSession(c.cfg.LogFile, c.now())
	if err != nil {
		c.fatal(err)
		return
	}

	c.mu.Lock()
	prev := c.session
	c.session = sess
	c.mu.Unlock()

	if prev != nil {
		// Missed disconnect; don't leak the old handle
		_ = prev.close(c.now())
	}

	if err := c.out.Join(c.cfg.Channel); err != nil {
		slog.Error("failed to send join", slog.String("channel", c.cfg.Channel), slog.Any("err", err))
	}
}

func (c *Client) onDisconnect(e ircmsg.Message) {
	c.mu.Lock()
	sess := c.session
	c.session = nil
	c.mu.Unlock()

	telemetry.IncDisconnects()
	if c.ctx.Err() == nil {
		slog.Warn("disconnected from IRC server, reconnecting", slog.String("server", c.cfg.Address()))
	}

	if sess == nil {
		return
	}
	if err := sess.close(c.now()); err != nil {
		slog.Error("failed to close message log", slog.Any("err", err))
	}
}

func (c *Client) onJoin(e ircmsg.Message) {
	if len(e.Params) < 1 {
		return
	}
	channel := e.Params[0]

	if !strings.EqualFold(e.Nick(), c.out.CurrentNick()) || !strings.EqualFold(channel, c.cfg.Channel) {
		return
	}

	sess := c.currentSession()
	if sess == nil {
		return
	}
	sess.joined(channel)
	slog.Info("joined channel", slog.String("channel", channel))
}

func (c *Client) onPrivMsg(e ircmsg.Message) {
	if len(e.Params) < 2 {
		return
	}

	target := e.Params[0]
	message := e.Params[1]
	nick := e.Nick()

	sess := c.currentSession()
	if sess == nil {
		return
	}

	telemetry.IncMessages()
	sess.logf("<%s> %s", nick, message)

	// Nothing is answered until we are in the channel
	if sess.State() != StateJoined {
		return
	}
	c.handleMessage(sess, nick, target, message)
}

func (c *Client) onAction(e ircmsg.Message) {
	if len(e.Params) < 1 {
		return
	}

	sess := c.currentSession()
	if sess == nil {
		return
	}

	sess.logf("* %s %s", e.Nick(), e.Params[len(e.Params)-1])
}

func (c *Client) onNick(e ircmsg.Message) {
	if len(e.Params) < 1 {
		return
	}

	sess := c.currentSession()
	if sess == nil {
		return
	}
	sess.logf("%s is now known as %s", e.Nick(), e.Params[0])
}

func (c *Client) fatal(err error) {
	slog.Error("fatal error", slog.Any("err", err))
	if c.OnFatal != nil {
		c.OnFatal(err)
		return
	}
	c.Quit("Fatal error")
}
