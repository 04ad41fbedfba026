// Command noticectl enqueues notice lifecycle events on the notice stream.
//
//	noticectl publish <notice-id>   fan out a published notice (safe to repeat)
//	noticectl retract <notice-id>   tell connected clients a notice was withdrawn
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"campusnotify/internal/config"
	"campusnotify/internal/database"
	"campusnotify/internal/logger"
	"campusnotify/internal/model"
	"campusnotify/internal/queue"
	"campusnotify/internal/redis"
	"campusnotify/internal/repository"
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-timeout 10s] publish|retract <notice-id>\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	timeout := flag.Duration("timeout", 10*time.Second, "overall deadline")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 2 {
		usage()
		os.Exit(2)
	}
	noticeID, err := strconv.ParseInt(flag.Arg(1), 10, 64)
	if err != nil || noticeID <= 0 {
		fmt.Fprintf(os.Stderr, "invalid notice id %q\n", flag.Arg(1))
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, flag.Arg(0), noticeID); err != nil {
		fmt.Fprintf(os.Stderr, "noticectl: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command string, noticeID int64) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	log := logger.New("noticectl", cfg.LogLevel)

	client, err := redis.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer client.Close()
	publisher := queue.NewPublisher(client.Client, log)

	var msgID string
	switch command {
	case "publish":
		db, err := database.Connect(cfg, log)
		if err != nil {
			return err
		}
		defer db.Close()

		notice, err := repository.NewNoticeRepository(db).GetByID(ctx, noticeID)
		if err != nil {
			return fmt.Errorf("load notice %d: %w", noticeID, err)
		}
		msgID, err = publisher.PublishNotice(ctx, model.NoticePublished{
			NoticeID: notice.ID,
			Category: notice.Category,
			Priority: notice.Priority,
			Target:   notice.NoticeTarget,
		})
		if err != nil {
			return err
		}
	case "retract":
		msgID, err = publisher.PublishRetraction(ctx, noticeID)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown command %q", command)
	}

	fmt.Printf("%s notice %d queued as %s\n", command, noticeID, msgID)
	return nil
}
