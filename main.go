package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/GoogleCloudPlatform/cloudsql-proxy/proxy/dialers/postgres"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/duogrove/server/db"
	"github.com/duogrove/server/engine"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("File .env not found!")
	}

	cmd := &cli.Command{
		Name:  "duogrove",
		Usage: "Maintenance commands for the duo progression engine",
		Commands: []*cli.Command{
			{
				Name:   "sync-trees",
				Usage:  "Reconcile every duo's tree stage with its trust score",
				Action: syncTrees,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Duos reconciled concurrently",
						Value: 8,
					},
				},
			},
			{
				Name:   "seed-duo",
				Usage:  "Create a duo with its tree and seeded daily habit",
				Action: seedDuo,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "member-a", Usage: "Member A id", Required: true},
					&cli.StringFlag{Name: "member-b", Usage: "Member B id", Required: true},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func syncTrees(ctx context.Context, cmd *cli.Command) error {
	store := db.NewPostgresStore(DB())
	eng := engine.New(store)

	ids, err := store.ConnectionIDs()
	if err != nil {
		return fmt.Errorf("list duos: %w", err)
	}

	now := time.Now()

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(int(cmd.Int("workers")))
	for _, id := range ids {
		id := id
		g.Go(func() error {
			res, err := eng.SyncTreeStage(id, now)
			if err != nil {
				return fmt.Errorf("sync duo %s: %w", id, err)
			}
			if res.Updated {
				log.Printf("duo %s evolved to %s", id, res.NewStage)
			}
			return nil
		})
	}

	return g.Wait()
}

func seedDuo(ctx context.Context, cmd *cli.Command) error {
	store := db.NewPostgresStore(DB())
	eng := engine.New(store)

	conn, err := eng.CreateDuo(cmd.String("member-a"), cmd.String("member-b"), time.Now())
	if err != nil {
		return err
	}

	log.Printf("created duo %s (stage %s)", conn.ID, conn.TreeStage)
	return nil
}

// DB gets a connection to the database.
// This can panic for malformed database connection strings, invalid credentials, or non-existance database instance.
func DB() *sql.DB {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		conn, err := sql.Open("postgres", url)
		if err != nil {
			panic(fmt.Sprintf("DB: %v", err))
		}
		return conn
	}

	var (
		connectionName = mustGetenv("CLOUDSQL_CONNECTION_NAME")
		user           = mustGetenv("CLOUDSQL_USER")
		dbName         = os.Getenv("CLOUDSQL_DATABASE_NAME")
		password       = os.Getenv("CLOUDSQL_PASSWORD")
	)

	dbURI := fmt.Sprintf("host=%s dbname=%s user=%s password=%s sslmode=disable", connectionName, dbName, user, password)
	conn, err := sql.Open("cloudsqlpostgres", dbURI)
	if err != nil {
		panic(fmt.Sprintf("DB: %v", err))
	}

	return conn
}

func mustGetenv(k string) string {
	v := os.Getenv(k)
	if v == "" {
		log.Panicf("%s environment variable not set.", k)
	}
	return v
}
