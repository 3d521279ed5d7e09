// deliverd runs the development chat hub: the websocket endpoint, the
// token endpoint, and the marketplace REST collaborators, seeded with a
// couple of demo accounts and delivery records.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/putto11262002/deliverchat/chat"
	"github.com/putto11262002/deliverchat/config"
	"github.com/putto11262002/deliverchat/conversation"
	"github.com/putto11262002/deliverchat/devhub"
	"github.com/putto11262002/deliverchat/pkg/server"
)

func main() {
	ctx, _ := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: true,
	}))

	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			log.Fatalf("invalid config: %s", config.FormatValidationErrors(err))
		}
		log.Fatalf("invalid config: %v", err)
	}

	db, err := devhub.NewSQLiteDB(cfg.SQLite.File, cfg.SQLite.Migrations, nil)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatalf("migrate up: %v", err)
	}

	auth := devhub.NewAuth(cfg.Auth.Secret, time.Hour, seedAccounts()...)

	directory := devhub.NewDirectory()
	seedDirectory(directory)

	hub := devhub.NewHub(devhub.NewSQLiteMessageStore(db.DB), auth,
		devhub.WithLogger(logger),
		devhub.WithHistoryLimit(cfg.HistoryLimit),
	)

	srv := devhub.NewServer(hub, auth, directory,
		devhub.WithServerLogger(logger),
		devhub.WithAllowedOrigins(cfg.AllowedOrigins),
	)

	s := server.Server{
		Server: &http.Server{
			Handler: srv.Router(),
			Addr:    fmt.Sprintf("%s:%d", cfg.Hostname, cfg.Port),
		},
		Logger: logger,
		CleanUpFuncs: []func(ctx context.Context){
			func(ctx context.Context) { hub.Close() },
		},
	}
	s.Start(ctx)
}

// seedAccounts returns the two demo users. The passwords are fixed so a
// deliver-chat client can sign in out of the box.
func seedAccounts() []devhub.Account {
	accounts := make([]devhub.Account, 0, 2)
	for _, a := range []struct {
		id, username, password string
	}{
		{"U1", "driver", "driver-pw"},
		{"U2", "sender", "sender-pw"},
	} {
		hash, err := devhub.HashPassword(a.password)
		if err != nil {
			log.Fatalf("hash password: %v", err)
		}
		accounts = append(accounts, devhub.Account{
			ID:           a.id,
			Username:     a.username,
			PasswordHash: hash,
		})
	}
	return accounts
}

func seedDirectory(d *devhub.Directory) {
	driver := chat.ParticipantRef{
		ID:          "U1",
		Name:        "Dana Driver",
		Rating:      4.8,
		PhoneNumber: "+66-81-000-0001",
		Email:       "dana@deliverchat.dev",
	}
	sender := chat.ParticipantRef{
		ID:          "U2",
		Name:        "Sam Sender",
		Rating:      4.5,
		PhoneNumber: "+66-81-000-0002",
		Email:       "sam@deliverchat.dev",
	}
	d.SeedUser(driver)
	d.SeedUser(sender)

	d.SeedOffer(conversation.Offer{
		ID:          "OFFER-1",
		Driver:      driver,
		Sender:      sender,
		Origin:      "Bangkok",
		Destination: "Chiang Mai",
		Price:       1200,
		Status:      "accepted",
	})
	d.SeedOrder(conversation.Order{
		ID:          "ORDER-1",
		Sender:      sender,
		Driver:      &driver,
		Origin:      "Bangkok",
		Destination: "Phuket",
		Price:       1850,
		Status:      "in_transit",
	})
}
