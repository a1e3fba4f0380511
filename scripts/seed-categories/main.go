// Command seed-categories loads an initial set of course tags into the
// categories table. Existing tags are left untouched, so the command is
// safe to re-run.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

var defaultTags = []string{
	"ACCT", "ART", "BIO", "CHEM", "CS", "ECON", "ENG", "HIST",
	"MATH", "MUS", "PHIL", "PHYS", "POLS", "PSYC", "SOC", "STAT",
}

func main() {
	var (
		dsn     string
		tagList string
		timeout time.Duration
	)

	flag.StringVar(&dsn, "dsn", "postgres://localhost:5432/orghub?sslmode=disable", "PostgreSQL connection string")
	flag.StringVar(&tagList, "tags", "", "Comma-separated course tags to seed (defaults to the built-in set)")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "Database operation timeout")
	flag.Parse()

	tags := defaultTags
	if tagList != "" {
		tags = strings.Split(tagList, ",")
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer db.Close()

	const query = `INSERT INTO categories (id, tag) VALUES ($1, $2) ON CONFLICT (tag) DO NOTHING`

	var inserted, skipped int
	for _, tag := range tags {
		tag = strings.ToUpper(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		res, err := db.ExecContext(ctx, query, uuid.NewString(), tag)
		if err != nil {
			log.Fatalf("failed to seed tag %s: %v", tag, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			log.Fatalf("failed to read result for tag %s: %v", tag, err)
		}
		if affected > 0 {
			inserted++
		} else {
			skipped++
		}
	}

	fmt.Printf("Seeded %d course tags (%d already present)\n", inserted, skipped)
}
