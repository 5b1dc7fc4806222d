package command

import (
	"fmt"
	"strings"

	"github.com/hongjun500/chat-sync/internal/chat"
	"github.com/hongjun500/chat-sync/internal/protocol"
)

// RegisterBuiltins 注册内置命令
func RegisterBuiltins(r *Registry) (err error) {
	if err := r.Register(&Command{
		Name: "help",
		Help: "查看帮助",
		Handler: func(ctx *Context) error {
			list := r.List()
			lines := make([]string, 0, len(list))
			for _, c := range list {
				aliases := ""
				if len(c.Aliases) > 0 {
					aliases = " (别名: " + strings.Join(c.Aliases, ", ") + ")"
				}
				lines = append(lines, fmt.Sprintf("/%s - %s%s", c.Name, c.Help, aliases))
			}
			ctx.Out(strings.Join(lines, "\n"))
			return nil
		},
	}); err != nil {
		return err
	}

	if err := r.Register(&Command{
		Name: "me",
		Help: "动作消息: /me <text>",
		Handler: func(ctx *Context) error {
			return ctx.Engine.SendMessage(strings.Join(ctx.Args, " "),
				chat.SendOptions{Type: protocol.RoomMe})
		},
	}); err != nil {
		return err
	}

	if err := r.Register(&Command{
		Name: "ooc",
		Help: "出戏消息: /ooc <text>",
		Handler: func(ctx *Context) error {
			return ctx.Engine.SendMessage(strings.Join(ctx.Args, " "),
				chat.SendOptions{Type: protocol.RoomOOC})
		},
	}); err != nil {
		return err
	}

	if err := r.Register(&Command{
		Name:    "whisper",
		Aliases: []string{"w"},
		Help:    "私聊: /w <id> <text>",
		Handler: func(ctx *Context) error {
			if len(ctx.Args) < 2 {
				return fmt.Errorf("用法: /w <id> <text>")
			}
			return ctx.Engine.SendMessage(strings.Join(ctx.Args[1:], " "),
				chat.SendOptions{Target: ctx.Args[0]})
		},
	}); err != nil {
		return err
	}

	if err := r.Register(&Command{
		Name: "edit",
		Help: "编辑上一条仍在窗口内的消息: /edit <text>",
		Handler: func(ctx *Context) error {
			id, ok := ctx.Engine.GetLastMessageEdit()
			if !ok {
				return fmt.Errorf("没有可编辑的消息")
			}
			prev, ok := ctx.Engine.GetMessageEdit(id)
			if !ok {
				return fmt.Errorf("没有可编辑的消息")
			}
			opts := prev.Options
			opts.Editing = id
			return ctx.Engine.SendMessage(strings.Join(ctx.Args, " "), opts)
		},
	}); err != nil {
		return err
	}

	if err := r.Register(&Command{
		Name: "delete",
		Help: "删除上一条仍在窗口内的消息",
		Handler: func(ctx *Context) error {
			id, ok := ctx.Engine.GetLastMessageEdit()
			if !ok {
				return fmt.Errorf("没有可删除的消息")
			}
			return ctx.Engine.DeleteMessage(id)
		},
	}); err != nil {
		return err
	}

	if err := r.Register(&Command{
		Name: "who",
		Help: "查看正在输入/耳语的参与者",
		Handler: func(ctx *Context) error {
			statuses := ctx.Engine.Statuses()
			if len(statuses) == 0 {
				ctx.Out("当前无人输入")
				return nil
			}
			lines := make([]string, 0, len(statuses))
			for id, st := range statuses {
				lines = append(lines, fmt.Sprintf("%s: %s", id, st))
			}
			ctx.Out(strings.Join(lines, "\n"))
			return nil
		},
	}); err != nil {
		return err
	}

	if err := r.Register(&Command{
		Name: "action",
		Help: "请求游戏动作: /action <doImmediately|start|complete|abortCurrentAction> [action]",
		Handler: func(ctx *Context) error {
			if len(ctx.Args) < 1 {
				return fmt.Errorf("用法: /action <operation> [action]")
			}
			action := ""
			if len(ctx.Args) > 1 {
				action = ctx.Args[1]
			}
			return ctx.Engine.RequestAction(protocol.GameActionOperation(ctx.Args[0]), action)
		},
	}); err != nil {
		return err
	}

	return nil
}
