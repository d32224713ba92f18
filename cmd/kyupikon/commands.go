package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/bluesky-social/kyupikon/bot/policystore"
	"github.com/bluesky-social/kyupikon/bot/queuestore"
	"github.com/bluesky-social/kyupikon/platform/auth"
	"github.com/bluesky-social/kyupikon/platform/rest"
	"github.com/bluesky-social/kyupikon/util"
	"github.com/bluesky-social/kyupikon/util/cliutil"

	cli "github.com/urfave/cli/v2"
	"golang.org/x/oauth2"
)

var authorizeCmd = &cli.Command{
	Name:  "authorize",
	Usage: "interactively authorize the bot account, and save tokens to the credential file",
	Action: func(cctx *cli.Context) error {
		ctx := context.Background()
		logger := cliutil.ConfigLogger(cctx, os.Stderr)

		credPath := cctx.String("credentials")
		creds, err := auth.LoadCredentials(credPath)
		if err != nil {
			return err
		}

		apiHost := cctx.String("api-host")
		lookupHandle := func(ctx context.Context, client *http.Client) (string, error) {
			c := &rest.Client{Client: client, Host: apiHost}
			acct, err := c.SelfAccount(ctx)
			if err != nil {
				return "", err
			}
			return acct.Handle, nil
		}

		ctx = context.WithValue(ctx, oauth2.HTTPClient, util.RobustHTTPClient())
		updated, err := auth.Authorize(ctx, auth.OAuthConfig(creds, apiHost), creds, os.Stdin, os.Stdout, lookupHandle)
		if err != nil {
			return err
		}
		if err := updated.Save(credPath); err != nil {
			return err
		}
		logger.Info("saved credentials", "path", credPath, "handle", updated.Handle)
		fmt.Printf("authorized as @%s\n", updated.Handle)
		return nil
	},
}

var resetCountersCmd = &cli.Command{
	Name:  "reset-counters",
	Usage: "clear every user's fallback reply counter",
	Action: func(cctx *cli.Context) error {
		ctx := context.Background()
		logger := cliutil.ConfigLogger(cctx, os.Stderr)

		stores, err := storesFromCLI(cctx)
		if err != nil {
			return err
		}
		n, err := stores.Policies.ResetField(ctx, policystore.FieldReplyCount)
		if err != nil {
			return err
		}
		logger.Info("reset reply counters", "records", n)
		fmt.Println(n)
		return nil
	},
}

var queueNameFlag = &cli.StringFlag{
	Name:  "name",
	Usage: "queue name (reply or post)",
	Value: queuestore.QueueReply,
}

var queueCmd = &cli.Command{
	Name:  "queue",
	Usage: "inspect content rotation queues",
	Subcommands: []*cli.Command{
		{
			Name:  "show",
			Usage: "print queue contents, head first",
			Flags: []cli.Flag{queueNameFlag},
			Action: func(cctx *cli.Context) error {
				stores, err := storesFromCLI(cctx)
				if err != nil {
					return err
				}
				entries, err := stores.Queues.List(context.Background(), cctx.String("name"))
				if err != nil {
					return err
				}
				for _, e := range entries {
					fmt.Println(e)
				}
				return nil
			},
		},
		{
			Name:  "clear",
			Usage: "empty the queue; it is refilled on next use",
			Flags: []cli.Flag{queueNameFlag},
			Action: func(cctx *cli.Context) error {
				stores, err := storesFromCLI(cctx)
				if err != nil {
					return err
				}
				return stores.Queues.Clear(context.Background(), cctx.String("name"))
			},
		},
	},
}

var policyCmd = &cli.Command{
	Name:  "policy",
	Usage: "inspect or edit a user's reply policy",
	Subcommands: []*cli.Command{
		{
			Name:      "get",
			Usage:     "print a user's policy record as JSON",
			ArgsUsage: "<user-id>",
			Action: func(cctx *cli.Context) error {
				user := cctx.Args().First()
				if user == "" {
					return fmt.Errorf("need to provide user id as an argument")
				}
				stores, err := storesFromCLI(cctx)
				if err != nil {
					return err
				}
				p, err := policystore.Load(context.Background(), stores.Policies, user)
				if err != nil {
					return err
				}
				b, err := json.MarshalIndent(p, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(b))
				return nil
			},
		},
		{
			Name:      "set",
			Usage:     "set a single policy field (eg, denyReply 1)",
			ArgsUsage: "<user-id> <field> <value>",
			Action: func(cctx *cli.Context) error {
				args := cctx.Args()
				if args.Len() != 3 {
					return fmt.Errorf("expected three arguments: user id, field, value")
				}
				field, err := parseField(args.Get(1))
				if err != nil {
					return err
				}
				val, err := strconv.ParseInt(args.Get(2), 10, 64)
				if err != nil {
					return fmt.Errorf("invalid value: %w", err)
				}
				stores, err := storesFromCLI(cctx)
				if err != nil {
					return err
				}
				return stores.Policies.Set(context.Background(), args.Get(0), field, val)
			},
		},
	},
}

func parseField(name string) (policystore.Field, error) {
	for _, f := range policystore.AllFields {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown policy field: %s", name)
}

func storesFromCLI(cctx *cli.Context) (*Stores, error) {
	return OpenStores(StoreConfig{
		RedisURL:       cctx.String("redis-url"),
		DatabaseURL:    cctx.String("database-url"),
		MaxConnections: cctx.Int("max-db-connections"),
		DBTracing:      cctx.Bool("enable-db-tracing"),
	})
}
