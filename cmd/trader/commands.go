package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"pokemon-trade-client/internal/client"
	"pokemon-trade-client/internal/inventory"
	"pokemon-trade-client/internal/models"
	"pokemon-trade-client/internal/selection"
	"pokemon-trade-client/internal/trade"
)

type app struct {
	store     *inventory.Store
	selection *selection.Controller
	trades    *trade.Controller
	out       *printer
}

// printer serialises output from the prompt and the event dispatcher
type printer struct {
	mu  sync.Mutex
	out *bufio.Writer
}

func (p *printer) printf(format string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format, args...)
	p.out.Flush()
}

func (p *printer) handle(ev trade.Event) {
	switch ev.Type {
	case trade.EventPhaseChanged:
		p.printf("[trade] %s -> %s\n", ev.Previous, ev.Phase)
	case trade.EventStatus:
		if ev.Err != nil {
			p.printf("[trade] status unavailable: %s\n", ev.Message)
			return
		}
		p.printf("[trade] %s: %s\n", ev.StatusCode, ev.Message)
	case trade.EventAttemptFailed:
		p.printf("[trade] %s failed: %s\n", ev.Stage, ev.Message)
	case trade.EventOutcome:
		p.printf("[trade] finished %s: %s\n", ev.Phase, ev.Message)
	case trade.EventItemReceived:
		r := ev.Received
		p.printf("[trade] received %s (#%d L%d) into slot %d\n",
			receivedName(r), r.SpeciesID, r.Level, *r.NewStorageIndex)
	}
}

func receivedName(r *models.ReceivedSummary) string {
	item := models.InventoryItem{SpeciesID: r.SpeciesID, Nickname: r.Nickname}
	return item.DisplayName()
}

const helpText = `Commands:
  list              show the cached inventory
  refresh           reload the inventory from the service
  detail <index>    show one Pokémon in full
  select <index>    toggle the trade target
  clear             clear the trade target
  trade             start a trade with the current target
  status            poll the trade status now
  ack               acknowledge a finished trade
  last              show the last finished trade
  quit              exit
`

// repl reads commands from in until EOF, quit or ctx is done
func (a *app) repl(ctx context.Context, in io.Reader) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	a.out.printf("%d Pokémon loaded. Type 'help' for commands.\n", a.store.Count())
	for {
		a.out.printf("> ")
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if !a.execute(ctx, strings.Fields(line)) {
				return
			}
		}
	}
}

// execute runs one command and reports whether the prompt should continue
func (a *app) execute(ctx context.Context, args []string) bool {
	if len(args) == 0 {
		return true
	}

	switch cmd := strings.ToLower(args[0]); cmd {
	case "help", "?":
		a.out.printf(helpText)
	case "quit", "exit":
		return false
	case "list", "ls":
		a.list()
	case "refresh":
		if err := a.store.Refresh(ctx); err != nil {
			a.out.printf("refresh failed: %s\n", client.Message(err))
			return true
		}
		a.list()
	case "detail", "select":
		index, err := indexArg(args)
		if err != nil {
			a.out.printf("%v\n", err)
			return true
		}
		if cmd == "detail" {
			a.detail(ctx, index)
		} else {
			a.toggle(index)
		}
	case "clear":
		if err := a.selection.ClearTradeTarget(); err != nil {
			a.out.printf("cannot clear: %v\n", err)
		}
	case "trade":
		if err := a.trades.Initiate(ctx); err != nil {
			a.out.printf("trade not started: %s\n", describe(err))
		}
	case "status":
		if err := a.trades.CheckStatus(ctx); err != nil {
			a.out.printf("status check failed: %s\n", client.Message(err))
		}
	case "ack":
		if err := a.trades.Acknowledge(); err != nil {
			a.out.printf("cannot acknowledge: %v\n", err)
		}
	case "last":
		a.last()
	default:
		a.out.printf("unknown command %q, type 'help'\n", cmd)
	}
	return true
}

func indexArg(args []string) (int, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("%s needs a storage index", args[0])
	}
	index, err := strconv.Atoi(args[1])
	if err != nil || index < 0 {
		return 0, fmt.Errorf("invalid storage index %q", args[1])
	}
	return index, nil
}

func (a *app) list() {
	items := a.store.Items()
	if len(items) == 0 {
		a.out.printf("box is empty\n")
		return
	}
	target, hasTarget := a.selection.TradeTarget()

	var b strings.Builder
	for _, item := range items {
		marker := " "
		if hasTarget && item.StorageIndex == target {
			marker = "*"
		}
		fmt.Fprintf(&b, "%s %2d  %-12s #%-3d L%d\n", marker, item.StorageIndex, item.DisplayName(), item.SpeciesID, item.Level)
	}
	a.out.printf("%s", b.String())
}

func (a *app) detail(ctx context.Context, index int) {
	d, err := a.selection.SetDetailTarget(ctx, index)
	switch {
	case errors.Is(err, inventory.ErrStaleDetail):
		return
	case errors.Is(err, client.ErrNotFound):
		a.out.printf("no Pokémon in slot %d\n", index)
		return
	case err != nil:
		a.out.printf("detail failed: %s\n", client.Message(err))
		return
	}

	data := d.Data
	a.out.printf("%s  OT %s (%d)\n  #%d L%d  HP %d/%d  ATK %d DEF %d SPD %d SPC %d\n  moves %v  pp %v\n",
		d.Nickname, d.OTName, data.OriginalTrainerID,
		data.SpeciesID, data.Level, data.CurrentHP, data.MaxHP,
		data.Attack, data.Defense, data.Speed, data.Special,
		data.Moves(), data.PP())
}

func (a *app) toggle(index int) {
	change, err := a.selection.SetTradeTarget(index)
	if err != nil {
		a.out.printf("cannot change trade target: %v\n", err)
		return
	}
	if _, known := a.store.Lookup(index); !known && change == selection.Selected {
		a.out.printf("slot %d is not in the cached inventory; the service will decide\n", index)
	}
	a.out.printf("slot %d %s\n", index, change)
}

func (a *app) last() {
	s, ok := a.trades.LastOutcome()
	if !ok {
		a.out.printf("no finished trade yet\n")
		return
	}
	reason := s.FailureReason
	if reason == "" {
		reason = s.LastMessage
	}
	a.out.printf("%s slot %d after %s: %s\n",
		s.Phase, s.TargetIndex, s.EndedAt.Sub(s.StartedAt).Round(time.Millisecond), reason)
}

func describe(err error) string {
	switch {
	case errors.Is(err, models.ErrNoTargetSelected):
		return "select a Pokémon first"
	case errors.Is(err, models.ErrSessionInProgress):
		return "a trade is already running"
	case errors.Is(err, models.ErrOutcomePending):
		return "acknowledge the finished trade first ('ack')"
	}
	var attemptErr *trade.AttemptError
	if errors.As(err, &attemptErr) {
		return fmt.Sprintf("%s rejected: %s", attemptErr.Stage, client.Message(attemptErr.Err))
	}
	return client.Message(err)
}
