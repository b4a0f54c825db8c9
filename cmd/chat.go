package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/desertthunder/aehx/internal/chat"
	"github.com/desertthunder/aehx/internal/formatter"
	"github.com/desertthunder/aehx/internal/repositories"
	"github.com/desertthunder/aehx/internal/shared"
	"github.com/desertthunder/aehx/internal/stream"
	"github.com/urfave/cli/v3"
)

// ChatSend sends a message and prints the reply as it streams in.
func (r *Runner) ChatSend(ctx context.Context, cmd *cli.Command) error {
	text := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if text == "" {
		return fmt.Errorf("%w: message text", shared.ErrMissingArgument)
	}

	store, err := r.chatStore(cmd.String("mode"), cmd.String("intent"))
	if err != nil {
		return err
	}
	id := cmd.String("session")
	store.Open(id)

	if cmd.Bool("no-stream") {
		msg, err := store.SendOnce(ctx, id, text)
		if err != nil {
			return err
		}
		if cmd.Bool("json") {
			return r.writeJSON(msg, cmd.Bool("pretty"))
		}
		r.writePlain("%s\n", msg.Text)
		r.writeStats(cmd, msg.Stats)
		return nil
	}

	if err := store.Send(ctx, id, text, r.printDeltas()); err != nil {
		r.writePlain("\n")
		return err
	}
	r.writePlain("\n")
	r.writeStats(cmd, store.LastStats(id))
	return nil
}

// ChatRegenerate discards the reply at index and asks for a new one.
func (r *Runner) ChatRegenerate(ctx context.Context, cmd *cli.Command) error {
	id, index, err := sessionIndexArgs(cmd)
	if err != nil {
		return err
	}

	store, err := r.chatStore("", "")
	if err != nil {
		return err
	}
	store.Open(id)
	if err := store.LoadHistory(ctx, id); err != nil {
		return err
	}

	if err := store.Regenerate(ctx, id, index, r.printDeltas()); err != nil {
		r.writePlain("\n")
		return err
	}
	r.writePlain("\n")
	r.writeStats(cmd, store.LastStats(id))
	return nil
}

// ChatHistory prints a session transcript fetched from the server, refreshing the cached copy.
func (r *Runner) ChatHistory(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("session")
	if id == "" {
		id = chat.DefaultSessionID
	}
	if err := r.openDB(); err != nil {
		return err
	}

	src := repositories.NewSessionCache(r.sessions, r.api().ChatHistory)
	if cmd.Bool("offline") {
		src = repositories.NewSessionCache(r.sessions, nil)
	}
	session, err := src.Transcript(ctx, id)
	if err != nil {
		return err
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		format = "json"
	}
	out, err := formatter.EncodeTranscript(session, format)
	if err != nil {
		return err
	}
	_, err = r.output.Write(out)
	return err
}

// ChatSessions lists the server's sessions.
func (r *Runner) ChatSessions(ctx context.Context, cmd *cli.Command) error {
	store, err := r.chatStore("", "")
	if err != nil {
		return err
	}
	infos, err := store.SyncSessions(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(infos, cmd.Bool("pretty"))
	}
	if len(infos) == 0 {
		r.writePlain("No chat sessions.\n")
		return nil
	}
	for _, info := range infos {
		r.writePlain("%-24s %s\n", info.SessionID, info.Title)
	}
	return nil
}

// ChatEdit rewrites a message, optionally regenerating the reply after it.
func (r *Runner) ChatEdit(ctx context.Context, cmd *cli.Command) error {
	id, index, err := sessionIndexArgs(cmd)
	if err != nil {
		return err
	}
	text := strings.TrimSpace(cmd.String("text"))
	if text == "" {
		return fmt.Errorf("%w: --text", shared.ErrMissingArgument)
	}

	store, err := r.chatStore("", "")
	if err != nil {
		return err
	}
	store.Open(id)
	if err := store.Edit(ctx, id, index, text, cmd.Bool("regenerate")); err != nil {
		return err
	}
	return r.writeSession(store, id)
}

// ChatDeleteMessage removes one message from a session.
func (r *Runner) ChatDeleteMessage(ctx context.Context, cmd *cli.Command) error {
	id, index, err := sessionIndexArgs(cmd)
	if err != nil {
		return err
	}

	store, err := r.chatStore("", "")
	if err != nil {
		return err
	}
	store.Open(id)
	if err := store.DeleteMessage(ctx, id, index); err != nil {
		return err
	}
	return r.writeSession(store, id)
}

// ChatDeleteSession removes a session on the server and from the cache.
func (r *Runner) ChatDeleteSession(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("session")
	if id == "" {
		return fmt.Errorf("%w: session id", shared.ErrMissingArgument)
	}

	store, err := r.chatStore("", "")
	if err != nil {
		return err
	}
	if err := store.DeleteSession(ctx, id); err != nil {
		return err
	}
	r.writePlain("✓ Deleted session %s\n", id)
	return nil
}

func sessionIndexArgs(cmd *cli.Command) (string, int, error) {
	id := cmd.StringArg("session")
	if id == "" {
		return "", 0, fmt.Errorf("%w: session id", shared.ErrMissingArgument)
	}
	index, err := strconv.Atoi(cmd.StringArg("index"))
	if err != nil || index < 0 {
		return "", 0, fmt.Errorf("%w: index must be a non-negative integer", shared.ErrInvalidArgument)
	}
	return id, index, nil
}

// printDeltas writes reply text as it arrives.
func (r *Runner) printDeltas() func(stream.Event) {
	return func(ev stream.Event) {
		if ev.Kind == stream.EventDelta {
			r.writePlain("%s", ev.Delta)
		}
	}
}

func (r *Runner) writeStats(cmd *cli.Command, stats json.RawMessage) {
	if !cmd.Bool("stats") || len(stats) == 0 {
		return
	}
	r.writePlain("%s\n", stats)
}

func (r *Runner) writeSession(store *chat.Store, id string) error {
	session, err := store.Session(id)
	if err != nil {
		return err
	}
	out, err := formatter.TranscriptToText(session)
	if err != nil {
		return err
	}
	_, err = r.output.Write(out)
	return err
}
