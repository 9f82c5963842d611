// Package bot implements the Telegram surface: long-poll update handling,
// link intake with membership and rate checks, quality selection keyboards
// and the admin statistics command. It also adapts the Bot API into the
// transport interface the download pipeline consumes.
package bot
