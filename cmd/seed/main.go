package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/tkozzer/member-portal/core"
)

func main() {
	var (
		file = flag.String("file", "seed/users.yaml", "path to seed fixture file")
		wipe = flag.Bool("wipe", false, "delete ALL users before seeding (asks for confirmation)")
	)
	flag.Parse()

	cfg := core.Load()
	ctx := context.Background()

	db, err := core.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer db.Close()

	if err := core.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("failed to ensure schema: %v", err)
	}

	users := core.NewPgUserRepository(db)

	if *wipe {
		if !confirm("This deletes EVERY user. Type 'yes' to continue: ") {
			log.Println("aborted")
			return
		}
		n, err := users.DeleteAll(ctx)
		if err != nil {
			log.Fatalf("wipe failed: %v", err)
		}
		log.Printf("deleted %d users", n)
	}

	sf, err := core.LoadSeedFile(*file)
	if err != nil {
		log.Fatalf("failed to load seed file: %v", err)
	}

	created, err := core.ApplySeed(ctx, users, sf, 0)
	if err != nil {
		log.Fatalf("seeding failed after %d users: %v", created, err)
	}
	log.Printf("seeded %d users from %s", created, *file)
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.TrimSpace(strings.ToLower(answer)) == "yes"
}
