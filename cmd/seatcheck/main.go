package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	appcfg "github.com/park285/swapboard/internal/config"
	"github.com/park285/swapboard/internal/seatclient"
	"github.com/park285/swapboard/pkg/boarddto"
)

func main() {
	cfg, err := appcfg.LoadSeatCheck()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	client := seatclient.NewClient(cfg.BaseURL, seatclient.WithTimeout(cfg.Timeout))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := client.Health(ctx); err != nil {
		log.Fatalf("/health error: %v", err)
	}
	seat, err := client.Login(ctx, cfg.Password)
	if err != nil {
		log.Fatalf("/api/login error: %v", err)
	}
	log.Printf("/api/login ok: color=%s session=%s", seat.Color, seat.SessionID)

	doc, err := client.DownloadLog(ctx, seat.Token)
	if err != nil {
		log.Printf("/api/log error: %v", err)
	} else {
		log.Printf("/api/log ok: ruleset=%s moves=%d", doc.Meta.Ruleset, len(doc.GameLog))
	}

	wsURL := cfg.WSURL
	if wsURL == "" {
		wsURL = "ws" + strings.TrimPrefix(strings.TrimRight(cfg.BaseURL, "/"), "http") + "/ws"
	}
	conn := seatclient.NewConn(wsURL, seat.Token, 0)
	conn.OnStateChange(func(state seatclient.State) {
		log.Printf("WS state: %s", state)
	})
	conn.OnEvent(func(ev boarddto.Event) {
		if ev.Snapshot != nil {
			fmt.Printf("WS event %s turn=%s moves=%d ready=%t\n", ev.Type, ev.Snapshot.Turn, ev.Snapshot.MoveCount, ev.Snapshot.Ready)
			return
		}
		fmt.Printf("WS event %s color=%s\n", ev.Type, ev.Color)
	})

	cctx, ccancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer ccancel()
	if err := conn.Connect(cctx); err != nil {
		log.Printf("WS connect error: %v", err)
		return
	}
	snap, err := conn.Initialize(cctx)
	if err != nil {
		log.Printf("initialize_session error: %v", err)
	} else {
		log.Printf("initialize_session ok: seat=%s turn=%s ready=%t", snap.Seat, snap.Turn, snap.Ready)
	}

	// Observe pushed events for a short window.
	t := time.NewTimer(10 * time.Second)
	<-t.C

	_ = conn.Close(context.Background())
}
