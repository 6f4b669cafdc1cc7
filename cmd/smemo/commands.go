package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/meshbuddies/smemo/core"
	"github.com/meshbuddies/smemo/internal/config"
	"github.com/meshbuddies/smemo/node"
)

const defaultOpTimeout = 5 * time.Second

func resolveRoom(identifier string) (room string, bootstrap []string) {
	if ticket, err := core.ResolveTicket(identifier); err == nil {
		return ticket.Room, ticket.Endpoints
	}
	return identifier, nil
}

func startNode() (*node.Node, error) {
	cfg := config.Load()
	return node.New(cfg)
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

var ticketCmd = &cobra.Command{
	Use:   "ticket <room>",
	Short: "Print a shareable join ticket for a room",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := startNode()
		if err != nil {
			return err
		}
		defer n.Close()
		fmt.Println(n.GenerateTicket(args[0]).String())
		return nil
	},
}

var joinCmd = &cobra.Command{
	Use:   "join <room-or-ticket>",
	Short: "Join a room and print its peer roster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		room, bootstrap := resolveRoom(args[0])
		n, err := startNode()
		if err != nil {
			return err
		}
		defer n.Close()

		ctx, cancel := context.WithTimeout(context.Background(), defaultOpTimeout)
		defer cancel()
		topic, err := n.Coordinator.JoinRoom(ctx, room, bootstrap)
		if err != nil {
			return err
		}
		time.Sleep(500 * time.Millisecond)
		return printJSON(map[string]interface{}{
			"room":  room,
			"topic": fmt.Sprintf("%x", topic[:]),
			"peers": n.Coordinator.RoomPeers(room),
		})
	},
}

var leaveCmd = &cobra.Command{
	Use:   "leave <room-or-ticket>",
	Short: "Join and immediately leave a room",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		room, bootstrap := resolveRoom(args[0])
		n, err := startNode()
		if err != nil {
			return err
		}
		defer n.Close()

		ctx, cancel := context.WithTimeout(context.Background(), defaultOpTimeout)
		defer cancel()
		if _, err := n.Coordinator.JoinRoom(ctx, room, bootstrap); err != nil {
			return err
		}
		return n.Coordinator.LeaveRoom(ctx, room)
	},
}

var (
	searchKind    string
	searchTags    []string
	searchTimeout time.Duration
)

var searchCmd = &cobra.Command{
	Use:   "search <room-or-ticket> <query>",
	Short: "Search memories across the room",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		room, bootstrap := resolveRoom(args[0])
		n, err := startNode()
		if err != nil {
			return err
		}
		defer n.Close()

		ctx, cancel := context.WithTimeout(context.Background(), searchTimeout+defaultOpTimeout)
		defer cancel()
		if _, err := n.Coordinator.JoinRoom(ctx, room, bootstrap); err != nil {
			return err
		}

		var filters core.SearchFilters
		if searchKind != "" {
			filters.Kind = &searchKind
		}
		filters.Tags = searchTags

		results, err := n.Coordinator.SearchDistributed(ctx, room, args[1], filters, searchTimeout)
		if err != nil {
			return err
		}
		return printJSON(results)
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchKind, "kind", "", "filter by memory kind")
	searchCmd.Flags().StringSliceVar(&searchTags, "tag", nil, "filter by tag (repeatable)")
	searchCmd.Flags().DurationVar(&searchTimeout, "timeout", 2*time.Second, "how long to wait for peer responses")
}

var (
	skillBody    string
	skillTags    []string
	skillVersion uint32
	skillParent  string
)

var publishSkillCmd = &cobra.Command{
	Use:   "publish-skill <room-or-ticket> <title>",
	Short: "Publish a signed skill entry to the room",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		room, bootstrap := resolveRoom(args[0])
		n, err := startNode()
		if err != nil {
			return err
		}
		defer n.Close()

		ctx, cancel := context.WithTimeout(context.Background(), defaultOpTimeout)
		defer cancel()
		if _, err := n.Coordinator.JoinRoom(ctx, room, bootstrap); err != nil {
			return err
		}

		title := args[1]
		skill := core.Skill{
			Hash:      core.SkillContentHash(title, skillBody, skillTags),
			Author:    n.UserName,
			Timestamp: uint64(time.Now().Unix()),
			Room:      room,
			Title:     title,
			Body:      skillBody,
			Tags:      skillTags,
			Version:   skillVersion,
		}
		if skillParent != "" {
			skill.ParentHash = &skillParent
		}
		if err := n.Coordinator.PublishSkill(ctx, room, skill); err != nil {
			return err
		}
		return printJSON(map[string]string{"hash": skill.Hash})
	},
}

func init() {
	publishSkillCmd.Flags().StringVar(&skillBody, "body", "", "skill body text")
	publishSkillCmd.Flags().StringSliceVar(&skillTags, "tag", nil, "skill tag (repeatable)")
	publishSkillCmd.Flags().Uint32Var(&skillVersion, "version", 1, "skill version")
	publishSkillCmd.Flags().StringVar(&skillParent, "parent", "", "parent skill hash")
}

var skillSearchTags []string
var skillSearchTimeout time.Duration

var searchSkillsCmd = &cobra.Command{
	Use:   "search-skills <room-or-ticket> <query>",
	Short: "Search skills across the room, ranked by votes",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		room, bootstrap := resolveRoom(args[0])
		n, err := startNode()
		if err != nil {
			return err
		}
		defer n.Close()

		ctx, cancel := context.WithTimeout(context.Background(), skillSearchTimeout+defaultOpTimeout)
		defer cancel()
		if _, err := n.Coordinator.JoinRoom(ctx, room, bootstrap); err != nil {
			return err
		}

		filters := core.SkillSearchFilters{Tags: skillSearchTags}
		results, err := n.Coordinator.SearchSkillsDistributed(ctx, room, args[1], filters, skillSearchTimeout)
		if err != nil {
			return err
		}
		return printJSON(results)
	},
}

func init() {
	searchSkillsCmd.Flags().StringSliceVar(&skillSearchTags, "tag", nil, "filter by tag (repeatable)")
	searchSkillsCmd.Flags().DurationVar(&skillSearchTimeout, "timeout", 2*time.Second, "how long to wait for peer responses")
}

var voteSkillCmd = &cobra.Command{
	Use:   "vote-skill <room-or-ticket> <hash> <score>",
	Short: "Cast a vote (-128..127) on a skill hash",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		room, bootstrap := resolveRoom(args[0])
		score, err := strconv.ParseInt(args[2], 10, 8)
		if err != nil {
			return fmt.Errorf("parse score: %w", err)
		}

		n, err := startNode()
		if err != nil {
			return err
		}
		defer n.Close()

		ctx, cancel := context.WithTimeout(context.Background(), defaultOpTimeout)
		defer cancel()
		if _, err := n.Coordinator.JoinRoom(ctx, room, bootstrap); err != nil {
			return err
		}
		return n.Coordinator.CastSkillVote(ctx, room, args[1], int8(score))
	},
}

var delegateTimeout time.Duration

var delegateCmd = &cobra.Command{
	Use:   "delegate <room-or-ticket> <description>",
	Short: "Delegate a task to the room and wait for a result",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		room, bootstrap := resolveRoom(args[0])
		n, err := startNode()
		if err != nil {
			return err
		}
		defer n.Close()

		ctx, cancel := context.WithTimeout(context.Background(), delegateTimeout+defaultOpTimeout)
		defer cancel()
		if _, err := n.Coordinator.JoinRoom(ctx, room, bootstrap); err != nil {
			return err
		}

		result, err := n.Coordinator.DelegateTask(ctx, room, args[1], delegateTimeout)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

func init() {
	delegateCmd.Flags().DurationVar(&delegateTimeout, "timeout", 30*time.Second, "how long to wait for a peer to complete the task")
}

var tasksTimeout time.Duration

var tasksCmd = &cobra.Command{
	Use:   "tasks <room-or-ticket>",
	Short: "Wait for and print delegated tasks addressed to this room",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		room, bootstrap := resolveRoom(args[0])
		n, err := startNode()
		if err != nil {
			return err
		}
		defer n.Close()

		ctx, cancel := context.WithTimeout(context.Background(), tasksTimeout+defaultOpTimeout)
		defer cancel()
		if _, err := n.Coordinator.JoinRoom(ctx, room, bootstrap); err != nil {
			return err
		}

		tasks := n.Coordinator.WaitForTasks(ctx, &room, tasksTimeout)
		return printJSON(tasks)
	},
}

func init() {
	tasksCmd.Flags().DurationVar(&tasksTimeout, "timeout", 10*time.Second, "how long to wait for an incoming task")
}
