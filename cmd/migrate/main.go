// Утилита миграций схемы чекаут-пайплайна.
//
//	migrate [flags] up|down|status
//
// DSN берётся из -dsn или из CHECKOUT_POSTGRES_DSN.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/KachiAlex/ojawaecommerce-sub000/internal/storage/postgres"
)

const migrateTimeout = 30 * time.Second

func main() {
	steps := flag.Int("steps", 0, "сколько миграций применить/откатить (0 — все для up, 1 для down)")
	dsn := flag.String("dsn", "", "PostgreSQL DSN (по умолчанию CHECKOUT_POSTGRES_DSN)")
	flag.Parse()

	command := strings.ToLower(strings.TrimSpace(flag.Arg(0)))
	if command == "" {
		command = "up"
	}

	connString := strings.TrimSpace(*dsn)
	if connString == "" {
		connString = strings.TrimSpace(os.Getenv("CHECKOUT_POSTGRES_DSN"))
	}
	if connString == "" {
		fail("требуется -dsn или CHECKOUT_POSTGRES_DSN")
	}

	ctx, cancel := context.WithTimeout(context.Background(), migrateTimeout)
	defer cancel()

	store, err := postgres.Open(ctx, connString)
	if err != nil {
		fail("postgres: %v", err)
	}
	defer store.Close()

	summary, err := run(ctx, store, command, *steps)
	if err != nil {
		fail("%s: %v", command, err)
	}
	fmt.Println(summary)
}

// run выполняет команду и возвращает строку с итоговым состоянием схемы.
func run(ctx context.Context, store *postgres.Store, command string, steps int) (string, error) {
	switch command {
	case "up":
		if err := store.MigrateUp(ctx, steps); err != nil {
			return "", err
		}
	case "down":
		// Откат без -steps снимает только последнюю миграцию.
		if steps <= 0 {
			steps = 1
		}
		if err := store.MigrateDown(ctx, steps); err != nil {
			return "", err
		}
	case "status":
	default:
		return "", fmt.Errorf("неизвестная команда %q (ожидается up|down|status)", command)
	}

	version, applied, err := store.MigrationStatus(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s: schema version=%d applied=%d", command, version, applied), nil
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
