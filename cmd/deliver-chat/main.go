// deliver-chat is a terminal client for one delivery conversation: it
// signs in, loads the conversation context, joins the configured room,
// and bridges stdin lines to the room.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/putto11262002/deliverchat/chat"
	"github.com/putto11262002/deliverchat/config"
	"github.com/putto11262002/deliverchat/conversation"
	"github.com/putto11262002/deliverchat/hub"
	"github.com/putto11262002/deliverchat/session"
	"github.com/putto11262002/deliverchat/token"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	cfg, err := config.LoadClient()
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

	refresh := tokenRefresher(cfg)

	// the first sign-in also tells us who we are
	_, userID, err := signIn(ctx, cfg)
	if err != nil {
		log.Fatalf("sign in: %v", err)
	}

	room := chat.RoomIdentity{Kind: chat.RoomKind(cfg.Room.Kind), ID: cfg.Room.ID}
	loader := conversation.NewLoader(cfg.APIURL)
	conv, err := loader.Load(ctx, room, userID)
	if err != nil {
		log.Fatalf("load conversation: %v", err)
	}

	transport := hub.NewConn(cfg.HubURL,
		token.NewJWTProvider(refresh),
		hub.WithLogger(logger),
	)
	printIncoming(transport, conv)

	sess, err := session.New(*conv, transport, chat.NewMessageLog(),
		session.WithLogger(logger))
	if err != nil {
		log.Fatalf("new session: %v", err)
	}
	sess.OnStateChange(func(s session.State) {
		fmt.Printf("* %s\n", s)
	})

	if err := sess.Start(ctx); err != nil {
		log.Fatalf("start session: %v", err)
	}

	fmt.Printf("joined %s as %s, talking to %s\n",
		conv.Room, conv.Self.Name, conv.Counterparty.Name)
	fmt.Printf("route %s -> %s (%s)\n",
		conv.Meta.Origin, conv.Meta.Destination, conv.Meta.Status)

	replies := chat.QuickReplies(conv.Role)
	for i, r := range replies {
		fmt.Printf("  /%d  %s\n", i+1, r)
	}

	readLines(ctx, sess, replies)

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer closeCancel()
	if err := sess.Close(closeCtx); err != nil {
		log.Fatalf("close session: %v", err)
	}
}

type tokenPayload struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
}

func signIn(ctx context.Context, cfg *config.Client) (string, string, error) {
	body, err := json.Marshal(map[string]string{
		"username": cfg.Credentials.Username,
		"password": cfg.Credentials.Password,
	})
	if err != nil {
		return "", "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		cfg.APIURL+"/auth/token", bytes.NewReader(body))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", "", err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("token endpoint returned %d", res.StatusCode)
	}

	var envelope conversation.Envelope[tokenPayload]
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		return "", "", err
	}
	if !envelope.Success {
		return "", "", errors.New("token endpoint rejected the credentials")
	}
	return envelope.Data.Token, envelope.Data.UserID, nil
}

func tokenRefresher(cfg *config.Client) token.RefreshFunc {
	return func(ctx context.Context) (string, error) {
		tok, _, err := signIn(ctx, cfg)
		return tok, err
	}
}

// printIncoming renders history and live pushes to stdout. Registered
// directly on the transport so rendering stays out of the session's way.
func printIncoming(transport *hub.Conn, conv *chat.Conversation) {
	names := map[string]string{
		conv.Self.ID:         conv.Self.Name,
		conv.Counterparty.ID: conv.Counterparty.Name,
	}
	printOne := func(m chat.Message) {
		name, ok := names[m.SenderID]
		if !ok {
			name = m.SenderID
		}
		fmt.Printf("[%s] %s: %s\n", m.SentAt.Local().Format("15:04"), name, m.Text)
	}

	transport.On(chat.EventMessageHistory, func(payload json.RawMessage) {
		var msgs []chat.Message
		if err := json.Unmarshal(payload, &msgs); err != nil {
			return
		}
		for _, m := range msgs {
			printOne(m)
		}
	})
	transport.On(chat.EventMessage, func(payload json.RawMessage) {
		var m chat.Message
		if err := json.Unmarshal(payload, &m); err != nil {
			return
		}
		printOne(m)
	})
}

// readLines bridges stdin to the room until EOF or ctx cancellation. A
// line of the form /N sends the Nth quick reply instead.
func readLines(ctx context.Context, sess *session.Session, replies []string) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if text, ok := expandQuickReply(line, replies); ok {
				line = text
			}
			if err := sess.Send(ctx, line); err != nil {
				if errors.Is(err, session.ErrEmptyMessage) {
					continue
				}
				if errors.Is(err, session.ErrNoCounterparty) {
					fmt.Fprintln(os.Stderr, "sends are disabled until a driver takes the order")
					continue
				}
				fmt.Fprintf(os.Stderr, "send: %v\n", err)
			}
		}
	}
}

func expandQuickReply(line string, replies []string) (string, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), "/")
	if !ok {
		return "", false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 || n > len(replies) {
		return "", false
	}
	return replies[n-1], true
}
