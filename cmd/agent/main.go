// Command agent joins a draft's collaboration room as a headless
// participant. It mirrors the room into a local editor store and logs
// what it sees, which makes it useful for smoke-testing a running API
// without a browser.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"draftroom/internal/auth"
	"draftroom/internal/collab"
	"draftroom/internal/editor"
)

func main() {
	var (
		baseURL = flag.String("url", "http://localhost:8000", "API base URL")
		draftID = flag.Int64("draft", 0, "draft id to join")
		name    = flag.String("name", "agent", "display name in the room")
		secret  = flag.String("secret", os.Getenv("TOKEN_SECRET"), "token signing secret")
		token   = flag.String("token", "", "access token (minted locally from -secret when empty)")
	)
	flag.Parse()

	if *draftID == 0 {
		log.Fatal("usage: agent -draft <id> [-url ...] [-name ...]")
	}

	credential := *token
	if credential == "" {
		if *secret == "" {
			log.Fatal("either -token or -secret is required")
		}
		userID := "agent-" + uuid.NewString()[:8]
		minted, err := auth.IssueToken([]byte(*secret), auth.Claims{
			Sub:  userID,
			Name: *name,
			JTI:  uuid.NewString(),
			Exp:  time.Now().Add(12 * time.Hour).Unix(),
		})
		if err != nil {
			log.Fatalf("minting token: %v", err)
		}
		credential = minted
	}

	claims, err := auth.ParseToken([]byte(*secret), credential)
	selfID := ""
	if err == nil {
		selfID = claims.Sub
	}

	wsURL, err := collab.URL(*baseURL, *draftID, credential)
	if err != nil {
		log.Fatalf("building ws url: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := collab.Dial(ctx, wsURL, collab.Options{Reconnect: true})
	if err != nil {
		log.Fatalf("connecting to draft %d: %v", *draftID, err)
	}
	defer ch.Close()
	log.Printf("joined draft %d as %q", *draftID, *name)

	store := editor.NewStore()
	session := collab.NewSession(ch, store, selfID)

	done := make(chan struct{})
	go func() {
		defer close(done)
		session.Run(ctx)
	}()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-sigCh:
			log.Printf("leaving draft %d", *draftID)
			cancel()
			<-done
			return
		case <-done:
			log.Printf("room closed the connection")
			return
		case <-ticker.C:
			state := store.Snapshot()
			log.Printf("draft %d: %d participants, %d chars", *draftID, len(state.Presence), len([]rune(state.Content)))
		}
	}
}
