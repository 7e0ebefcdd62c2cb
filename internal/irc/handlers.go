package irc

// This file contains documentation for the IRC event handlers.
// The actual handler implementations are split across:
// - client.go: Connection lifecycle and event callbacks
// - session.go: Per-connection transcript and state
// - commands.go: Channel command implementations

/*
Handler Summary:

Connection Events:
- registration (onConnect): Welcome/MOTD received - bot is connected
  - Opens a new transcript append session
  - Logs "[connected at ...]"
  - Joins the configured channel
- disconnect (onDisconnect): Connection lost or quit
  - Logs "[disconnected at ...]" and closes the transcript
  - ircevent re-dials on its own unless we are quitting

Channel Events:
- JOIN (onJoin): Our own join echo for the configured channel
  - Logs "[I have joined <channel>]"
- NICK (onNick): Someone changed nick
  - Logs "<old> is now known as <new>"

Messages:
- PRIVMSG (onPrivMsg): Logs "<nick> text", then routes once joined
  - Whisper to the bot: canned refusal, nothing else
  - "ping": "<nick>: pong!"
  - "nextmeeting": background calendar lookup, reply when it completes
  - s/OLD/NEW/: "<nick> meant: ..." against the sender's previous line
  - Every channel line becomes the sender's latest line

CTCP:
- CTCP_ACTION (onAction): Logs "* <nick> text"
- VERSION/PING/TIME: answered by ircevent (EnableCTCP, Connection.Version)
*/
