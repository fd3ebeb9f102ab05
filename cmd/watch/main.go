// Command watch follows a match served by "twinsnake -ui web" and prints every
// board in the terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/brensch/twinsnake/config"
	"github.com/brensch/twinsnake/remote"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}
	addr := flag.String("addr", config.EnvOr("LISTEN", "127.0.0.1:8080"), "Address of the served match")
	start := flag.Bool("start", false, "Press start once connected")
	readTimeout := flag.Duration("read-timeout", config.EnvDuration("WATCH_READ_TIMEOUT", 2*time.Minute), "Give up after this long without an update")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := remote.Dial(ctx, *addr, remote.ClientConfig{ConnectTimeout: 10 * time.Second, ReadTimeout: *readTimeout})
	if err != nil {
		log.Fatalf("Failed to connect to %s: %v", *addr, err)
	}
	go func() {
		<-ctx.Done()
		c.Close()
	}()

	if *start {
		if err := c.Start(); err != nil {
			log.Fatalf("Failed to send start: %v", err)
		}
	}

	over, err := c.Watch(func(bp remote.BoardPayload) {
		if bp.Last != nil {
			fmt.Printf("turn %d: (%d,%d) heading %s\n", bp.Turn, bp.Last.Row, bp.Last.Col, bp.Last.Heading)
		} else {
			fmt.Printf("%dx%d board, mode %s, turn %d\n", bp.Size, bp.Size, bp.Mode, bp.Turn)
		}
		fmt.Println(strings.Join(bp.Rows, "\n"))
	})
	if err != nil {
		log.Fatalf("Lost the match: %v", err)
	}
	fmt.Printf("player %d wins (%s) after %d moves\n", over.Winner, over.Reason, over.Turns)
}
