// Copyright 2026 The Credentia Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command migrate applies the embedded schema migrations.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/credentia/credentia/internal/config"
	"github.com/credentia/credentia/internal/store/postgres"
)

func main() {
	dsn := flag.String("dsn", "", "connection string; overrides the DB_* environment")
	list := flag.Bool("list", false, "print the embedded migrations and exit")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall migration timeout")
	flag.Parse()

	if err := run(*dsn, *list, *timeout); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
}

func run(dsn string, list bool, timeout time.Duration) error {
	if list {
		names, err := postgres.Migrations()
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	}

	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	if dsn == "" {
		db := config.LoadDatabase()
		dsn = postgres.Config{
			Host:         db.Host,
			Port:         db.Port,
			User:         db.User,
			Password:     db.Password,
			Database:     db.Database,
			SSLMode:      db.SSLMode,
			MaxOpenConns: 1,
			MaxIdleConns: 0,
		}.DSN()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db, err := postgres.NewFromDSN(ctx, dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	fmt.Println("connected to database")

	applied, err := db.Migrate(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		fmt.Println("schema is up to date")
		return nil
	}
	for _, name := range applied {
		fmt.Printf("applied %s\n", name)
	}
	return nil
}
