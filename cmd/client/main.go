package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hongjun500/chat-sync/internal/chat"
	"github.com/hongjun500/chat-sync/internal/command"
	"github.com/hongjun500/chat-sync/internal/config"
	"github.com/hongjun500/chat-sync/internal/observe"
	"github.com/hongjun500/chat-sync/internal/protocol"
	"github.com/hongjun500/chat-sync/internal/snapshot"
	"github.com/hongjun500/chat-sync/internal/transport"
	"github.com/hongjun500/chat-sync/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.L().Sugar()

	if cfg.MetricsAddr != "" {
		go func() {
			if err := observe.StartHTTP(cfg.MetricsAddr); err != nil {
				log.Warnw("metrics_http_failed", "err", err)
			}
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	client, err := transport.Dial(ctx, cfg.ServerURL, transport.Options{OutBuffer: cfg.OutBuffer})
	cancel()
	if err != nil {
		log.Fatalw("dial_failed", "url", cfg.ServerURL, "err", err)
	}
	defer func() { _ = client.Close() }()

	var store chat.SnapshotStore = snapshot.NewMemory()
	if cfg.RedisAddr != "" {
		// 快照 TTL 取两倍编辑窗口，足够覆盖一次短暂断线重连
		store = snapshot.NewRedis(cfg.RedisAddr, cfg.RedisDB,
			"chatsync:snapshot:"+cfg.CharacterID, 2*cfg.EditWindow)
	}

	engine := chat.NewEngine(chat.Config{
		CharacterID:      cfg.CharacterID,
		EditWindow:       cfg.EditWindow,
		MaxMessageLength: cfg.MaxMessageLength,
		RequestTimeout:   cfg.RequestTimeout,
	}, chat.Dependencies{
		Transport: client,
		Store:     store,
	})
	defer engine.Close()

	client.Start(engine)

	engine.Events().Subscribe(chat.EventStateChanged, func(chat.Event) {
		// 拉取式刷新：演示客户端只重绘最后一条
		msgs := engine.Messages()
		if len(msgs) == 0 {
			return
		}
		printMessage(msgs[len(msgs)-1])
	})
	engine.Events().Subscribe(chat.EventWarning, func(e chat.Event) {
		if w, ok := e.(*chat.WarningEvent); ok {
			fmt.Println("[warn]", w.Text)
		}
	})
	engine.Events().Subscribe(chat.EventCharacterEntered, func(e chat.Event) {
		if c, ok := e.(*chat.CharacterEnteredEvent); ok {
			fmt.Printf("* %s 进入了房间\n", c.Character.Name)
		}
	})

	registry := command.NewRegistry()
	if err := command.RegisterBuiltins(registry); err != nil {
		log.Fatalw("register_commands_failed", "err", err)
	}

	cmdCtx := &command.Context{Engine: engine, Out: func(s string) { fmt.Println(s) }}
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		handled, err := registry.Execute(line, cmdCtx)
		if handled {
			if err != nil {
				fmt.Println("[error]", err)
			}
			continue
		}
		if err := engine.SendMessage(line, chat.SendOptions{}); err != nil {
			fmt.Println("[rejected]", err)
		}
	}
}

func printMessage(m chat.ProcessedMessage) {
	switch m.Type {
	case protocol.RoomDeleted:
		fmt.Printf("[%d] (已删除)\n", m.Time)
	case protocol.RoomAction, protocol.RoomServer:
		reps := ""
		if m.Repetitions > 1 {
			reps = fmt.Sprintf(" x%d", m.Repetitions)
		}
		fmt.Printf("[%d] * %s%s\n", m.Time, m.CustomText, reps)
	default:
		text := ""
		for _, p := range m.Parts {
			text += p.Text
		}
		edited := ""
		if m.Edited {
			edited = " (已编辑)"
		}
		fmt.Printf("[%d] %s: %s%s\n", m.Time, m.From, text, edited)
	}
}
