package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/fastprodman/pvpescrow/internal/escrow"
	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
)

func main() {
	err := newApp().Run(context.Background(), os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.Command {
	//nolint:exhaustruct
	return &cli.Command{
		Name:  "escrowctl",
		Usage: "operate the pvpescrow API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Value:   "http://localhost:8080",
				Sources: cli.EnvVars("ESCROW_URL"),
			},
			&cli.StringFlag{
				Name:    "secret",
				Usage:   "HS256 secret shared with the API",
				Sources: cli.EnvVars("AUTH_JWT_SECRET"),
			},
			&cli.StringFlag{
				Name:    "issuer",
				Value:   "pvpescrow",
				Sources: cli.EnvVars("AUTH_JWT_ISSUER"),
			},
			&cli.StringFlag{
				Name:    "as",
				Usage:   "identity to act as",
				Sources: cli.EnvVars("ESCROW_CALLER"),
			},
			&cli.DurationFlag{
				Name:  "token-ttl",
				Value: 5 * time.Minute,
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 10 * time.Second,
			},
		},
		Commands: []*cli.Command{
			configCommand(),
			matchCommand(),
			accountCommand(),
		},
	}
}

func configCommand() *cli.Command {
	//nolint:exhaustruct
	return &cli.Command{
		Name:  "config",
		Usage: "initialize or show the deployment config",
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "initialize the config; the caller becomes admin",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "authority", Required: true},
					&cli.StringFlag{Name: "fee-vault", Required: true},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return call(ctx, cmd, http.MethodPost, "/config", map[string]string{
						"serverAuthority": cmd.String("authority"),
						"feeVault":        cmd.String("fee-vault"),
					})
				},
			},
			{
				Name: "get",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return call(ctx, cmd, http.MethodGet, "/config", nil)
				},
			},
		},
	}
}

func matchCommand() *cli.Command {
	//nolint:exhaustruct
	return &cli.Command{
		Name:  "match",
		Usage: "create and drive matches",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "open a match as player A",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "stake", Required: true, Usage: "decimal amount, e.g. 10.00"},
					&cli.DurationFlag{Name: "join-expiry", Value: 5 * time.Minute},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return call(ctx, cmd, http.MethodPost, "/matches", map[string]any{
						"stake":          cmd.String("stake"),
						"joinExpirySecs": seconds(cmd.Duration("join-expiry")),
					})
				},
			},
			{
				Name:      "join",
				ArgsUsage: "<match-id>",
				Flags: []cli.Flag{
					&cli.DurationFlag{Name: "settle-window", Value: 30 * time.Minute},
				},
				Action: matchAction("join", func(cmd *cli.Command) any {
					return map[string]int64{"settleWindowSecs": seconds(cmd.Duration("settle-window"))}
				}),
			},
			{
				Name:      "settle",
				ArgsUsage: "<match-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "winner", Required: true},
				},
				Action: matchAction("settle", func(cmd *cli.Command) any {
					return map[string]string{"winner": cmd.String("winner")}
				}),
			},
			{
				Name:      "cancel-unjoined",
				ArgsUsage: "<match-id>",
				Action:    matchAction("cancel-unjoined", nil),
			},
			{
				Name:      "cancel",
				ArgsUsage: "<match-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "player-b"},
				},
				Action: matchAction("cancel", func(cmd *cli.Command) any {
					return map[string]string{"playerB": cmd.String("player-b")}
				}),
			},
			{
				Name:      "timeout-refund",
				ArgsUsage: "<match-id>",
				Action:    matchAction("timeout-refund", nil),
			},
			{
				Name:      "get",
				ArgsUsage: "<match-id>",
				Action:    matchAction("", nil),
			},
			{
				Name:      "transfers",
				ArgsUsage: "<match-id>",
				Action:    matchAction("transfers", nil),
			},
		},
	}
}

func accountCommand() *cli.Command {
	movement := func(direction string) *cli.Command {
		//nolint:exhaustruct
		return &cli.Command{
			Name:      direction,
			ArgsUsage: "<account-id>",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "amount", Required: true},
				&cli.StringFlag{Name: "source", Value: "payment"},
				&cli.StringFlag{Name: "transaction-id", Usage: "defaults to a random uuid"},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				account, err := accountArg(cmd)
				if err != nil {
					return err
				}

				txID := cmd.String("transaction-id")
				if txID == "" {
					txID = uuid.NewString()
				}

				return call(ctx, cmd, http.MethodPost, "/accounts/"+account+"/transaction", map[string]string{
					"direction":     direction,
					"amount":        cmd.String("amount"),
					"transactionId": txID,
				}, "Source-Type", cmd.String("source"))
			},
		}
	}

	//nolint:exhaustruct
	return &cli.Command{
		Name:  "account",
		Usage: "inspect and fund player accounts",
		Commands: []*cli.Command{
			{
				Name:      "balance",
				ArgsUsage: "<account-id>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					account, err := accountArg(cmd)
					if err != nil {
						return err
					}

					return call(ctx, cmd, http.MethodGet, "/accounts/"+account+"/balance", nil)
				},
			},
			movement("deposit"),
			movement("withdraw"),
		},
	}
}

// matchAction posts to /matches/{id}/{op}. An empty op is a GET of the
// match itself; a nil body with a non-empty op posts without a body.
func matchAction(op string, body func(cmd *cli.Command) any) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		id, err := uuid.Parse(cmd.Args().First())
		if err != nil {
			return fmt.Errorf("match id: %w", err)
		}

		path := "/matches/" + id.String()

		switch {
		case op == "":
			return call(ctx, cmd, http.MethodGet, path, nil)
		case op == "transfers":
			return call(ctx, cmd, http.MethodGet, path+"/transfers", nil)
		case body == nil:
			return call(ctx, cmd, http.MethodPost, path+"/"+op, nil)
		default:
			return call(ctx, cmd, http.MethodPost, path+"/"+op, body(cmd))
		}
	}
}

func accountArg(cmd *cli.Command) (string, error) {
	if cmd.Args().Len() != 1 {
		return "", errors.New("expected exactly one <account-id>")
	}

	id, err := escrow.ParseIdentity(cmd.Args().First())
	if err != nil {
		return "", fmt.Errorf("account id: %w", err)
	}

	return id.String(), nil
}

func call(ctx context.Context, cmd *cli.Command, method, path string, body any, header ...string) error {
	c, err := newClient(cmd)
	if err != nil {
		return err
	}

	return c.do(ctx, method, path, body, header...)
}
