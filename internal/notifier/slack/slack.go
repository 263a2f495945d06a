package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/ideal-pong/internal/bracket"
	"github.com/mauv0809/ideal-pong/internal/metrics"
	"github.com/mauv0809/ideal-pong/internal/notifier"
	"github.com/mauv0809/ideal-pong/internal/players"
	"github.com/slack-go/slack"
)

// slackClient is an interface that contains the methods from the slack.Client that we use.
// This allows for easy mocking in tests.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

var _ notifier.Notifier = &Notifier{}

// Notifier handles sending notifications to Slack.
type Notifier struct {
	api       slackClient
	channelID string
	metrics   metrics.Metrics
}

// NewNotifier creates a new Notifier.
func NewNotifier(token, channelID string, metrics metrics.Metrics) *Notifier {
	api := slack.New(token)
	return &Notifier{
		api:       api,
		channelID: channelID,
		metrics:   metrics,
	}
}

// NewNotifierWithAPI creates a new Notifier with a specific slack.Client instance.
// Useful for tests that need to intercept API calls.
func NewNotifierWithAPI(api slackClient, channelID string, metrics metrics.Metrics) *Notifier {
	return &Notifier{
		api:       api,
		channelID: channelID,
		metrics:   metrics,
	}
}

func (s *Notifier) sendMessage(message slack.Message, dryRun bool) (string, string, error) {
	if dryRun {
		jsonMsg, _ := json.MarshalIndent(message, "", "  ")
		log.Info("[Dry Run] Would send Slack message", "channel", s.channelID, "message", string(jsonMsg))
		return "dry-run-ts", "dry-run-thread-ts", nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	channelID, timestamp, err := s.api.PostMessageContext(
		ctx,
		s.channelID,
		slack.MsgOptionBlocks(message.Blocks.BlockSet...),
		slack.MsgOptionAsUser(true),
	)

	if err != nil {
		s.metrics.IncSlackNotifFailed()
		log.Error("Failed to send Slack message", "error", err, "channel", channelID)
		return "", "", fmt.Errorf("failed to post message: %w", err)
	}

	s.metrics.IncSlackNotifSent()
	log.Info("Successfully sent Slack message", "channel", channelID, "timestamp", timestamp)
	return channelID, timestamp, nil
}

func (s *Notifier) SendChampionAnnouncement(t *bracket.Tournament, dryRun bool) error {
	_, _, err := s.sendMessage(s.formatChampionAnnouncement(t), dryRun)
	return err
}

func (s *Notifier) SendStalledNodesAlert(nodes []bracket.Node, dryRun bool) error {
	_, _, err := s.sendMessage(s.formatStalledNodesAlert(nodes), dryRun)
	return err
}

func (s *Notifier) SendTieAlert(node bracket.Node, dryRun bool) error {
	_, _, err := s.sendMessage(s.formatTieAlert(node), dryRun)
	return err
}

func (s *Notifier) SendLeaderboard(stats []players.PlayerStats, dryRun bool) error {
	_, _, err := s.sendMessage(s.formatLeaderboard(stats), dryRun)
	return err
}

func plainText(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject("plain_text", text, true, false)
}

func section(text string) slack.Block {
	return slack.NewSectionBlock(plainText(text), nil, nil)
}

// formatChampionAnnouncement creates the Slack message for a finished tournament using Block Kit.
func (s *Notifier) formatChampionAnnouncement(t *bracket.Tournament) slack.Message {
	blocks := []slack.Block{slack.NewHeaderBlock(plainText("🏓 Tournament finished! 🏓"))}

	winner := "Nobody"
	if t.Winner != nil {
		winner = t.Winner.Name
	}
	blocks = append(blocks, section(fmt.Sprintf("%s\nChampion: %s 🏆", t.Name, winner)))

	if final, ok := t.Node(bracket.FinalRound, 0); ok && final.Finished() {
		left, right := final.Left.Player(), final.Right.Player()
		blocks = append(blocks, section(fmt.Sprintf("Final: %s %d - %d %s",
			left.Name, final.LeftScore, final.RightScore, right.Name)))
	}

	var names []string
	for _, p := range t.Participants {
		names = append(names, p.PlayerName)
	}
	if len(names) > 0 {
		blocks = append(blocks, slack.NewContextBlock("", plainText("Participants: "+strings.Join(names, ", "))))
	}
	return slack.NewBlockMessage(blocks...)
}

// formatStalledNodesAlert lists bracket nodes that have been waiting on a result.
func (s *Notifier) formatStalledNodesAlert(nodes []bracket.Node) slack.Message {
	blocks := []slack.Block{slack.NewHeaderBlock(plainText("⚠️ Stalled bracket matches"))}
	if len(nodes) == 0 {
		blocks = append(blocks, section("No stalled matches."))
		return slack.NewBlockMessage(blocks...)
	}
	for _, n := range nodes {
		blocks = append(blocks, section(describeNode(n)))
	}
	return slack.NewBlockMessage(blocks...)
}

func (s *Notifier) formatTieAlert(node bracket.Node) slack.Message {
	return slack.NewBlockMessage(
		slack.NewHeaderBlock(plainText("⚠️ Bracket match ended in a tie")),
		section(describeNode(node)+"\nThe winner was not advanced. Replay or resolve the match manually."),
	)
}

func describeNode(n bracket.Node) string {
	left, right := n.Left.Player(), n.Right.Player()
	status := "not started"
	if n.StartedAt != nil {
		status = "started " + n.StartedAt.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("Tournament %s, round %d match %d: %s vs %s (%s)",
		n.TournamentID, n.Round, n.Position+1, orTBD(left.Name), orTBD(right.Name), status)
}

func orTBD(name string) string {
	if name == "" {
		return "TBD"
	}
	return name
}

// formatLeaderboard creates a Slack message to display the player leaderboard.
func (s *Notifier) formatLeaderboard(stats []players.PlayerStats) slack.Message {
	blocks := []slack.Block{slack.NewHeaderBlock(plainText("🏆 Pong Leaderboard 🏆"))}

	if len(stats) == 0 {
		blocks = append(blocks, section("No stats available yet. Go play some matches!"))
		return slack.NewBlockMessage(blocks...)
	}

	for i, stat := range stats {
		rank := i + 1
		var medal string
		switch rank {
		case 1:
			medal = "🥇"
		case 2:
			medal = "🥈"
		case 3:
			medal = "🥉"
		}

		playerText := fmt.Sprintf("%d. %s %s\n> Tournaments: %d | Win %%: %.2f%% (%d/%d) | Points: %d-%d",
			rank,
			medal,
			stat.PlayerName,
			stat.TournamentsWon,
			stat.WinPercentage,
			stat.MatchesWon,
			stat.MatchesPlayed,
			stat.PointsScored,
			stat.PointsConceded,
		)
		blocks = append(blocks, section(playerText))
	}

	return slack.NewBlockMessage(blocks...)
}
