//go:build cgo

package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	postal "github.com/openvenues/gopostal/parser"

	"github.com/rentalhub/dupdetect/internal/config"
	"github.com/rentalhub/dupdetect/internal/db"
	"github.com/rentalhub/dupdetect/internal/normalize"
)

// Backfills listings.address_canonical using libpostal's address parser.
// Requires libpostal installed; the serving path only reads the column and
// falls back to the built-in normalizer when it is empty.
func main() {
	var (
		command = flag.String("cmd", "", "Command: backfill, test-parse, stats")
		address = flag.String("address", "", "Single address to test parsing")
		limit   = flag.Int("limit", 0, "Number of listings to process (0 = all)")
	)
	flag.Parse()

	if *command == "" {
		printUsage()
		return
	}

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *command == "test-parse" {
		testParse(*address)
		return
	}

	if err := cfg.RequireDatabase(); err != nil {
		log.Fatalf("%v", err)
	}
	conn, err := db.Open(cfg.DatabaseURL, 4)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	switch *command {
	case "backfill":
		err = backfill(conn, *limit)
	case "stats":
		err = stats(conn)
	default:
		printUsage()
		return
	}

	if err != nil {
		log.Fatalf("Command failed: %v", err)
	}
}

func printUsage() {
	fmt.Println("Listing address pre-processor")
	fmt.Println()
	fmt.Println("  Test parsing a single address:")
	fmt.Println("    ./postal-preprocessor -cmd=test-parse -address=\"Apt 4, 123 Main St, Springfield\"")
	fmt.Println()
	fmt.Println("  Backfill canonical addresses for listings missing one:")
	fmt.Println("    ./postal-preprocessor -cmd=backfill -limit=1000")
	fmt.Println()
	fmt.Println("  Show backfill coverage:")
	fmt.Println("    ./postal-preprocessor -cmd=stats")
}

func testParse(address string) {
	if address == "" {
		log.Fatal("test-parse requires -address")
	}

	fmt.Printf("Input: %s\n\n", address)
	fmt.Println("libpostal components:")
	for _, component := range postal.ParseAddress(address) {
		fmt.Printf("  %-15s: %s\n", component.Label, component.Value)
	}
	fmt.Printf("\nCanonical: %s\n", canonicalize(address))
}

// canonicalize builds the canonical address from libpostal's structured
// components, falling back to plain normalization when parsing yields
// nothing usable.
func canonicalize(address string) string {
	components := postal.ParseAddress(address)

	parts := make(map[string]string, len(components))
	for _, c := range components {
		if _, seen := parts[c.Label]; !seen {
			parts[c.Label] = c.Value
		}
	}

	var ordered []string
	for _, label := range []string{"unit", "house", "house_number", "road", "suburb", "city"} {
		if v := parts[label]; v != "" {
			ordered = append(ordered, v)
		}
	}
	if len(ordered) == 0 {
		return normalize.CanonicalAddress(address)
	}
	return normalize.CanonicalAddress(strings.Join(ordered, " "))
}

func backfill(conn *sql.DB, limit int) error {
	query := `
		SELECT id, address
		FROM listings
		WHERE address_canonical IS NULL OR address_canonical = ''
		ORDER BY id
	`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := conn.Query(query, args...)
	if err != nil {
		return fmt.Errorf("failed to query listings: %w", err)
	}
	defer rows.Close()

	type pending struct {
		id      string
		address string
	}
	var todo []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.address); err != nil {
			return fmt.Errorf("failed to scan listing: %w", err)
		}
		todo = append(todo, p)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	processed := 0
	failed := 0
	for _, p := range todo {
		canonical := canonicalize(p.address)
		_, err := conn.Exec(`
			UPDATE listings SET address_canonical = $2, updated_at = now()
			WHERE id = $1
		`, p.id, canonical)
		if err != nil {
			fmt.Printf("Error updating listing %s: %v\n", p.id, err)
			failed++
			continue
		}

		processed++
		if processed%500 == 0 {
			fmt.Printf("Processed %d/%d listings...\n", processed, len(todo))
		}
	}

	fmt.Printf("Backfill complete: processed %d, failed %d\n", processed, failed)
	return nil
}

func stats(conn *sql.DB) error {
	var total, canonical int
	err := conn.QueryRow(`
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE address_canonical IS NOT NULL AND address_canonical <> '')
		FROM listings
		WHERE active
	`).Scan(&total, &canonical)
	if err != nil {
		return fmt.Errorf("failed to query coverage: %w", err)
	}

	fmt.Printf("Active listings: %d\n", total)
	if total > 0 {
		fmt.Printf("With canonical address: %d (%.1f%%)\n", canonical, float64(canonical)/float64(total)*100)
	}
	return nil
}
