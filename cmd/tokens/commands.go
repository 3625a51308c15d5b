package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aussiebroadwan/tokens/internal/tokens/app"
	"github.com/aussiebroadwan/tokens/pkg/cryptox"
	"github.com/aussiebroadwan/tokens/pkg/jwtx"
	"github.com/urfave/cli/v2"
)

func loadConfig(c *cli.Context) (app.Config, error) {
	return app.LoadConfig(c.String("config"))
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP API, webhook dispatcher and housekeeping",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			application, err := app.New(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			return application.Run()
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "apply database migrations and exit",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			logger := app.NewLogger(cfg)

			st, err := app.OpenStore(c.Context, cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer st.Close()

			if err := st.ApplyMigrations(); err != nil {
				return fmt.Errorf("failed to apply migrations: %w", err)
			}
			logger.Info("migrations applied", slog.String("driver", cfg.Database.Driver))
			return nil
		},
	}
}

func webhooksCommand() *cli.Command {
	return &cli.Command{
		Name:  "webhooks",
		Usage: "webhook delivery maintenance",
		Subcommands: []*cli.Command{
			{
				Name:  "redeliver",
				Usage: "retry undelivered webhook events once and exit",
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					application, err := app.New(cfg)
					if err != nil {
						return err
					}
					defer application.Close()

					res, err := application.RedeliverWebhooks(c.Context)
					if err != nil {
						return fmt.Errorf("redelivery sweep failed: %w", err)
					}
					fmt.Fprintf(c.App.Writer, "attempted=%d delivered=%d\n", res.Attempted, res.Delivered)
					return nil
				},
			},
		},
	}
}

func housekeepingCommand() *cli.Command {
	return &cli.Command{
		Name:  "housekeeping",
		Usage: "retention cleanup",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run one cleanup pass and exit",
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					application, err := app.New(cfg)
					if err != nil {
						return err
					}
					defer application.Close()

					r := application.Housekeeping(c.Context)
					fmt.Fprintf(c.App.Writer,
						"invites=%d api_tokens=%d webhook_events=%d rate_counters=%d auth_codes=%d failed=%d\n",
						r.Invites, r.APITokens, r.WebhookEvents, r.RateCounters, r.AuthCodes, r.Failed)
					if r.Failed > 0 {
						return cli.Exit("housekeeping finished with failures", 1)
					}
					return nil
				},
			},
		},
	}
}

// devCommand helps run the service without the accounts subsystem: it
// creates a session key pair and signs session JWTs with it.
func devCommand() *cli.Command {
	return &cli.Command{
		Name:   "dev",
		Usage:  "local development helpers",
		Hidden: true,
		Subcommands: []*cli.Command{
			{
				Name:  "keygen",
				Usage: "write an Ed25519 session key pair",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Value: ".", Usage: "output directory"},
				},
				Action: func(c *cli.Context) error {
					keyPEM, pubPEM, err := cryptox.GenerateSessionKeyPair()
					if err != nil {
						return err
					}

					dir := c.String("out")
					if err := os.WriteFile(filepath.Join(dir, "session.key"), keyPEM, 0600); err != nil {
						return err
					}
					if err := os.WriteFile(filepath.Join(dir, "session.pub"), pubPEM, 0644); err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "wrote session.key and session.pub to %s\n", dir)
					return nil
				},
			},
			{
				Name:      "session",
				Usage:     "sign a session JWT for a principal",
				ArgsUsage: "<principal-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "key", Value: "session.key", Usage: "PKCS8 private key"},
					&cli.DurationFlag{Name: "ttl", Value: time.Hour},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("expected exactly one principal id", 2)
					}
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}

					keyPEM, err := os.ReadFile(c.String("key"))
					if err != nil {
						return err
					}
					signer, err := jwtx.NewSignerEdDSA("dev", keyPEM)
					if err != nil {
						return err
					}

					var aud []string
					if cfg.Session.Audience != "" {
						aud = []string{cfg.Session.Audience}
					}
					claims := jwtx.NewSessionClaims(c.Args().First(), jwtx.NewJTI(), cfg.Session.Issuer, aud, c.Duration("ttl"), time.Now())
					token, err := signer.Sign(claims)
					if err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, token)
					return nil
				},
			},
		},
	}
}
