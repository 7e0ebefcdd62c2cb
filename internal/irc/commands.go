package irc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/outofthemadness/handbot/internal/calendar"
	"github.com/outofthemadness/handbot/internal/telemetry"
)

const (
	whisperReply         = "It isn't nice to whisper! Play nice with the group."
	noMeetingsReply      = "No upcoming meetings are scheduled."
	calendarFailureReply = "Sorry, I couldn't fetch the meeting calendar."
)

// s/OLD/NEW/ spanning the whole message, newlines included
var searchReplacePattern = regexp.MustCompile(`(?s)\As/(.+)/(.+)/\z`)

// handleMessage routes a PRIVMSG. Channel messages are always remembered
// as the sender's latest line, whether or not they were commands.
func (c *Client) handleMessage(sess *Session, nick, target, message string) {
	// Whispers get a canned reply and are otherwise ignored
	if strings.EqualFold(target, c.out.CurrentNick()) {
		if err := c.out.Privmsg(nick, whisperReply); err != nil {
			slog.Error("failed to send reply", slog.String("target", nick), slog.Any("err", err))
			return
		}
		telemetry.IncReplies()
		return
	}

	switch strings.ToLower(strings.TrimSpace(message)) {
	case "ping":
		c.cmdPing(sess, target, nick)
	case "nextmeeting":
		c.cmdNextMeeting(target)
	default:
		c.checkSearchReplace(sess, target, nick, message)
	}

	c.messages.Record(nick, message)
}

func (c *Client) cmdPing(sess *Session, channel, nick string) {
	telemetry.IncCommand("ping")
	c.say(sess, channel, fmt.Sprintf("%s: pong!", nick))
}

// cmdNextMeeting looks the meeting up in the background so a slow feed
// doesn't hold up other channel events.
func (c *Client) cmdNextMeeting(channel string) {
	telemetry.IncCommand("nextmeeting")

	go func() {
		ctx, cancel := context.WithTimeout(c.ctx, c.cfg.FetchTimeout)
		defer cancel()

		reply := c.nextMeetingReply(ctx)

		// Shutting down
		if c.ctx.Err() != nil {
			return
		}
		sess := c.currentSession()
		if sess == nil {
			return
		}
		c.say(sess, channel, reply)
	}()
}

func (c *Client) nextMeetingReply(ctx context.Context) string {
	if c.meetings == nil {
		return calendarFailureReply
	}

	ev, err := c.meetings.Next(ctx, c.now())
	if errors.Is(err, calendar.ErrNoUpcoming) {
		return noMeetingsReply
	}
	if err != nil {
		telemetry.IncCalendarFailures()
		slog.Warn("calendar lookup failed", slog.Any("err", err))
		return calendarFailureReply
	}

	slog.Debug("next meeting found", slog.String("summary", ev.Summary), slog.Time("start", ev.Start), slog.String("description", ev.Description))
	return fmt.Sprintf("Next meeting: %s on %s at %s", ev.Summary, ev.FormatStart(), ev.Location)
}

func (c *Client) checkSearchReplace(sess *Session, channel, nick, message string) {
	last, ok := c.messages.Get(nick)
	if !ok {
		return
	}

	corrected, ok := searchReplace(last, message)
	if !ok {
		return
	}

	telemetry.IncCommand("replace")
	c.say(sess, channel, fmt.Sprintf("%s meant: %s", nick, corrected))
}

// searchReplace applies an s/OLD/NEW/ message to last. Only the first
// occurrence of OLD is replaced.
func searchReplace(last, message string) (string, bool) {
	m := searchReplacePattern.FindStringSubmatch(message)
	if m == nil {
		return "", false
	}

	old, repl := m[1], m[2]
	if !strings.Contains(last, old) {
		return "", false
	}
	return strings.Replace(last, old, repl, 1), true
}

// say sends text to the channel and records it in the transcript under the
// bot's own nick.
func (c *Client) say(sess *Session, channel, text string) {
	if err := c.out.Privmsg(channel, text); err != nil {
		slog.Error("failed to send reply", slog.String("target", channel), slog.Any("err", err))
		return
	}
	telemetry.IncReplies()
	sess.logf("<%s> %s", c.out.CurrentNick(), text)
}
