package notifier

import (
	"github.com/mauv0809/ideal-pong/internal/bracket"
	"github.com/mauv0809/ideal-pong/internal/players"
)

// Notifier defines a high-level interface for sending notifications about business events.
// This decouples the rest of the application from the specific notification provider (e.g., Slack).
type Notifier interface {
	// For completed tournaments
	SendChampionAnnouncement(t *bracket.Tournament, dryRun bool) error
	// For operators: bracket nodes that need attention
	SendStalledNodesAlert(nodes []bracket.Node, dryRun bool) error
	SendTieAlert(node bracket.Node, dryRun bool) error
	// For the scheduled digest
	SendLeaderboard(stats []players.PlayerStats, dryRun bool) error
}
