// Command wanderer is a load and consistency bot for a running Geocache World
// server. It walks a session around the map over the REST API, trades tokens
// with the caches it passes, and audits every reply: caches must come back
// exactly as they were left, and tokens must never be duplicated or lost.
package main

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
	"github.com/wricardo/geocache-world/game/engine"
)

// Options control one wander run
type Options struct {
	Steps     int
	Carry     int
	TradeRate float64
	Seed      uint64
	Delay     time.Duration
	Verbose   bool
}

// Report summarizes a wander run
type Report struct {
	Moves       int
	Takes       int
	Gives       int
	Noops       int
	CachesSeen  int
	TokensKnown int
	Violations  []string
}

// run executes opts.Steps actions against the bound session
func run(client *Client, state *wanderState, opts Options) (*Report, error) {
	w := NewWanderer(opts.Seed, opts.Carry, opts.TradeRate)
	report := &Report{}
	audit := state.audit
	current := state.world

	for step := 0; step < opts.Steps; step++ {
		if opts.Verbose && step%50 == 0 {
			log.Printf("Step %d: cell %s, inventory %d, live caches %d, tokens known %d",
				step, current.PlayerCell.Key(), len(current.Inventory), len(current.Caches), audit.Total())
		}

		action := w.Next(current)
		switch action.Kind {
		case "move":
			result, err := client.Move(action.Arg)
			if err != nil {
				return report, err
			}
			report.Moves++
			current = result.WorldState

		case "take", "give":
			exchange := client.Take
			if action.Kind == "give" {
				exchange = client.Give
			}
			result, err := exchange(action.Arg)
			if err != nil {
				return report, err
			}
			if result.Success {
				if action.Kind == "take" {
					report.Takes++
					audit.ExpectTake(result.CellKey)
				} else {
					report.Gives++
					audit.ExpectGive(result.CellKey)
				}
			} else {
				report.Noops++
			}
			current = result.WorldState
		}

		audit.Observe(current)
		if current == nil {
			break
		}

		if opts.Delay > 0 {
			time.Sleep(opts.Delay)
		}
	}

	report.CachesSeen = audit.Seen()
	report.TokensKnown = audit.Total()
	report.Violations = audit.Violations
	return report, nil
}

type wanderState struct {
	world *engine.WorldState
	audit *Auditor
}

// start binds the client to a session and returns the audited starting state.
// An existing session is resumed as-is; a new one starts fresh.
func start(client *Client, configID, resumeID string, reset bool) (*wanderState, error) {
	var (
		world *engine.WorldState
		err   error
		fresh bool
	)

	if resumeID != "" {
		world, err = client.Resume(resumeID)
		if err != nil {
			log.Printf("Failed to resume session %s (may be deleted): %v", resumeID, err)
		}
	}
	if world == nil {
		world, err = client.CreateSession(configID, "wander-"+uuid.NewString())
		if err != nil {
			return nil, err
		}
		fresh = true
		log.Printf("Session created: %s", client.SessionID())
	} else {
		log.Printf("Resuming session: %s", client.SessionID())
	}

	if reset && !fresh {
		world, err = client.Reset()
		if err != nil {
			return nil, err
		}
		fresh = true
		log.Printf("Session reset")
	}

	audit := NewAuditor(fresh)
	audit.Observe(world)
	return &wanderState{world: world, audit: audit}, nil
}

func main() {
	cmd := &cli.Command{
		Name:  "wanderer",
		Usage: "Walk a Geocache World session and audit the replies",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:8080", Usage: "Server URL"},
			&cli.StringFlag{Name: "config", Usage: "World configuration for a new session"},
			&cli.StringFlag{Name: "continue", Usage: "Resume an existing session by ID"},
			&cli.BoolFlag{Name: "reset", Usage: "Reset a resumed session before wandering"},
			&cli.IntFlag{Name: "steps", Value: 1000, Usage: "Actions to perform"},
			&cli.IntFlag{Name: "carry", Value: 5, Usage: "Inventory size above which the wanderer prefers giving"},
			&cli.FloatFlag{Name: "trade-rate", Value: 0.3, Usage: "Chance of trading instead of moving"},
			&cli.IntFlag{Name: "seed", Value: 1, Usage: "Random seed for the walk"},
			&cli.DurationFlag{Name: "delay", Usage: "Delay between actions"},
			&cli.BoolFlag{Name: "v", Usage: "Verbose output"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log.Printf("Connecting to server at %s", cmd.String("url"))
			client := NewClient(cmd.String("url"))

			sessionFile := ".session"
			resumeID := cmd.String("continue")
			if resumeID == "" {
				if data, err := os.ReadFile(sessionFile); err == nil {
					resumeID = string(bytes.TrimSpace(data))
				}
			}

			state, err := start(client, cmd.String("config"), resumeID, cmd.Bool("reset"))
			if err != nil {
				return err
			}
			if err := os.WriteFile(sessionFile, []byte(client.SessionID()), 0644); err != nil {
				log.Printf("Warning: Failed to save session ID: %v", err)
			}

			report, err := run(client, state, Options{
				Steps:     int(cmd.Int("steps")),
				Carry:     int(cmd.Int("carry")),
				TradeRate: cmd.Float("trade-rate"),
				Seed:      uint64(cmd.Int("seed")),
				Delay:     cmd.Duration("delay"),
				Verbose:   cmd.Bool("v"),
			})
			if err != nil {
				return err
			}

			log.Printf("Moves=%d Takes=%d Gives=%d No-ops=%d", report.Moves, report.Takes, report.Gives, report.Noops)
			log.Printf("Caches seen=%d Tokens known=%d", report.CachesSeen, report.TokensKnown)
			log.Printf("Session: %s", client.SessionID())
			if len(report.Violations) > 0 {
				for _, v := range report.Violations {
					log.Printf("VIOLATION: %s", v)
				}
				return fmt.Errorf("%d invariant violations", len(report.Violations))
			}
			log.Printf("All invariants held")
			return nil
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
