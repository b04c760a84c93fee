package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wordchain/shiritori-client/internal/channel"
	"github.com/wordchain/shiritori-client/internal/config"
	"github.com/wordchain/shiritori-client/internal/protocol"
	"github.com/wordchain/shiritori-client/internal/session"
	"github.com/wordchain/shiritori-client/internal/view"
)

func main() {
	seatFlag := flag.String("seat", "player1", "seat to claim (player1|player2)")
	nameFlag := flag.String("name", "", "display name")
	urlFlag := flag.String("server", "", "websocket endpoint (overrides env)")
	flag.Parse()

	cfg := config.Load()
	if *urlFlag != "" {
		cfg.ServerURL = *urlFlag
	}

	seat := protocol.Seat(*seatFlag)
	if !seat.Valid() {
		fmt.Fprintln(os.Stderr, "seat must be player1 or player2")
		os.Exit(1)
	}

	log, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	adapter, err := channel.Dial(ctx, cfg.ServerURL, log)
	if err != nil {
		log.Fatal("connect failed", zap.Error(err))
	}
	defer adapter.Close()

	sess := session.New(ctx, adapter, adapter.Events(), clockwork.NewRealClock(), log)
	defer sess.Shutdown()

	joinCtx, joinCancel := context.WithTimeout(ctx, 10*time.Second)
	err = sess.Join(joinCtx, seat, *nameFlag)
	joinCancel()
	if err != nil {
		// Validation failures and join rejections both surface here; the
		// user corrects input and re-runs.
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	sub := sess.Subscribe()
	defer sub.Cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for v := range sub.Views {
			fmt.Print("\033[2J\033[H", view.Render(v), "> ")
		}
		return nil
	})

	g.Go(func() error {
		defer cancel()
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			switch line := strings.TrimSpace(sc.Text()); line {
			case "/start":
				sess.StartGame()
			case "/end":
				sess.EndGame()
			case "/reset":
				sess.ResetGame()
			case "/quit":
				return nil
			default:
				sess.SubmitWord(line)
			}
		}
		return sc.Err()
	})

	g.Go(func() error {
		<-gctx.Done()
		sess.Shutdown() // closes sub.Views, releasing the render goroutine
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("client exited", zap.Error(err))
	}
}
