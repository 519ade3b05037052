package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/logrusorgru/aurora/v3"
	"github.com/lupa/roster"
	"github.com/lupa/roster/internal/cli"
	"github.com/lupa/roster/migration"
	"github.com/pkg/errors"
)

const usage = `usage: roster [-config roster.yml] <command> [args]

commands:
  migrate [up|down|<version>]  run migrations, prompts for the target when omitted
  status                       list applied and pending migrations
  create <name>                create an empty migration in the first folder
  seed                         seed the database
  serve                        start the public and API HTTP surfaces
  init                         write a config file stub
`

func main() {
	configPath := flag.String("config", cli.DefaultConfigFile, "path to the roster configuration file")
	noRollback := flag.Bool("no-rollback", false, "create a migration without a rollback file")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, *noRollback, flag.Args()); err != nil {
		fmt.Println(aurora.Red("roster:"), err.Error())
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, noRollback bool, args []string) (err error) {
	if len(args) == 0 {
		flag.Usage()
		return errors.New("no command given")
	}

	cmd, args := args[0], args[1:]

	if cmd == "init" {
		if err := cli.InitCfg(configPath); err != nil {
			return err
		}

		fmt.Println(aurora.Green("roster:"), "config written to", configPath)
		return nil
	}

	app, closer, err := cli.NewFromYaml(configPath, log.New(os.Stdout, "", 0))
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := closer(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	switch cmd {
	case "migrate":
		return migrate(ctx, app, args)
	case "status":
		return status(ctx, app)
	case "create":
		if len(args) == 0 {
			return errors.New("migration name is required")
		}

		m, err := app.CreateMigration(args[0], !noRollback)
		if err != nil {
			return err
		}

		fmt.Println(aurora.Green("roster:"), "created migration", m.Key)
		return nil
	case "seed":
		if err := app.Seed(ctx); err != nil {
			return err
		}

		fmt.Println(aurora.Green("roster:"), "database seeded")
		return nil
	case "serve":
		return app.Serve(ctx)
	}

	flag.Usage()
	return errors.Errorf("unknown command [%s]", cmd)
}

func migrate(ctx context.Context, app *cli.App, args []string) error {
	var arg string
	if len(args) > 0 {
		arg = args[0]
	}

	target, err := cli.ReadTarget(arg, os.Stdin, os.Stdout)
	if err != nil {
		return err
	}

	result, err := app.Migrate(ctx, target, func(m *migration.Migration, _ roster.Direction) {
		fmt.Printf("Migrated to version %s.\n", m.Version)
	})

	switch {
	case errors.Is(err, roster.ErrAlreadyAtVersion):
		fmt.Println(aurora.Green(fmt.Sprintf("Migrations already in version %s.", result.From)))
		return nil
	case errors.Is(err, roster.ErrNoChangesRequired):
		fmt.Println(aurora.Green("roster:"), "nothing to migrate")
		return nil
	case err != nil:
		return err
	}

	if result.Interrupted {
		fmt.Println(aurora.Yellow("roster:"), "interrupted, stopped after", len(result.Executed), "migrations")
	}

	return nil
}

func status(ctx context.Context, app *cli.App) error {
	s, err := app.Status(ctx)
	if err != nil {
		return err
	}

	fmt.Println(aurora.Green("roster:"), "current version", s.Current)

	for _, e := range s.Entries {
		if e.Applied {
			fmt.Println(aurora.Green("  applied"), e.Migration.Key, aurora.Gray(12, e.MigratedAt.Format("2006-01-02 15:04:05")))
		} else {
			fmt.Println(aurora.Yellow("  pending"), e.Migration.Key)
		}
	}

	for _, v := range s.Orphans {
		fmt.Println(aurora.Red("  orphan "), v)
	}

	return nil
}
