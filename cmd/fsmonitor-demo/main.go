package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/bassamsdata/fsmonitor"
)

const Version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printHelp()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version", "--version", "-v":
		fmt.Printf("fsmonitor-demo v%s\n", Version)
	case "help", "--help", "-h":
		printHelp()
	case "watch":
		handleWatch(os.Args[2:])
	case "checkpoint":
		handleCheckpoint(os.Args[2:])
	case "changes":
		handleChanges(os.Args[2:])
	case "revert":
		handleRevert(os.Args[2:])
	case "stats":
		handleStats(os.Args[2:])
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printHelp()
		os.Exit(1)
	}
}

// handleWatch starts a session rooted at the given directory, prints every
// observed change as it arrives, and blocks until interrupted.
func handleWatch(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	debounce := fs.Int("debounce-ms", 0, "debounce window override in milliseconds")
	prepopulate := fs.Bool("prepopulate", true, "cache existing file contents before watching")
	tool := fs.String("tool", "", "workspace label attributed to unattributed changes")

	fs.Usage = func() {
		fmt.Println("Usage: fsmonitor-demo watch <path> [options]")
		fmt.Println()
		fmt.Println("Watch a directory tree and print changes as they are observed.")
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	path := fs.Arg(0)
	if path == "" {
		path = "."
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		fmt.Printf("Error: failed to resolve path: %v\n", err)
		os.Exit(1)
	}

	cfg := fsmonitor.Config{}
	if *debounce > 0 {
		cfg.DebounceMs = *debounce
	}
	fsmonitor.Setup(cfg)

	meta := fsmonitor.SessionMeta{}
	if *tool != "" {
		meta["workspace_label"] = *tool
	}
	sess := fsmonitor.CreateSession(abs, fsmonitor.CreateSessionOpts{Metadata: meta})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ok, err := sess.Start(ctx, fsmonitor.StartOpts{
		Recursive:   true,
		Prepopulate: *prepopulate,
		OnReady: func(stats fsmonitor.PrepopulateStats) {
			fmt.Printf("prepopulated %d files (%d bytes) in %dms\n", stats.FilesCached, stats.BytesCached, stats.ElapsedMs)
		},
	})
	if err != nil || !ok {
		fmt.Printf("Error: failed to start watch: %v\n", err)
		os.Exit(1)
	}

	// Subscribe only after Start: the session has no monitor to attach to
	// before then.
	sess.Subscribe(func(ev fsmonitor.Event) {
		switch ev.Kind {
		case fsmonitor.EventFileChanged:
			c := ev.Change
			fmt.Printf("[%s] %s\n", c.Kind, c.Path)
		case fsmonitor.EventCheckpoint:
			fmt.Printf("[checkpoint] %s\n", ev.Checkpoint.Label)
		}
	})

	fmt.Printf("watching %s (session %s) — Ctrl+C to stop\n", abs, sess.ID)
	<-ctx.Done()

	sess.Destroy()
	fmt.Println("stopped")
}

func handleCheckpoint(args []string) {
	fs := flag.NewFlagSet("checkpoint", flag.ExitOnError)
	label := fs.String("label", "", "checkpoint label")

	fs.Usage = func() {
		fmt.Println("Usage: fsmonitor-demo checkpoint <session-id> [options]")
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	id := fs.Arg(0)
	if id == "" {
		fmt.Println("Error: session id is required")
		os.Exit(1)
	}

	cp := fsmonitor.CreateCheckpoint(id, *label)
	if cp == nil {
		fmt.Printf("Error: session not found: %s\n", id)
		os.Exit(1)
	}
	fmt.Printf("checkpoint created at %d (%s)\n", cp.Timestamp, cp.Label)
}

func handleChanges(args []string) {
	fs := flag.NewFlagSet("changes", flag.ExitOnError)
	jsonOut := fs.Bool("json", false, "output as JSON")

	fs.Usage = func() {
		fmt.Println("Usage: fsmonitor-demo changes <session-id> [options]")
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	id := fs.Arg(0)
	if id == "" {
		fmt.Println("Error: session id is required")
		os.Exit(1)
	}

	var changes []fsmonitor.Change
	fsmonitor.FlushPendingAndGetChanges(id, func(c []fsmonitor.Change) { changes = c })

	if *jsonOut {
		out, _ := json.MarshalIndent(changes, "", "  ")
		fmt.Println(string(out))
		return
	}
	for _, c := range changes {
		fmt.Printf("%-10s %-12s %s\n", c.Kind, c.ToolName, c.Path)
	}
	fmt.Printf("\nTotal: %d changes\n", len(changes))
}

func handleRevert(args []string) {
	fs := flag.NewFlagSet("revert", flag.ExitOnError)
	original := fs.Bool("original", false, "revert all the way to the pre-session state")

	fs.Usage = func() {
		fmt.Println("Usage: fsmonitor-demo revert <session-id> <checkpoint-index> [options]")
		fmt.Println("       fsmonitor-demo revert <session-id> --original")
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	id := fs.Arg(0)
	if id == "" {
		fmt.Println("Error: session id is required")
		os.Exit(1)
	}

	var result *fsmonitor.RevertResult
	if *original {
		result = fsmonitor.RevertToOriginal(id)
	} else {
		idxStr := fs.Arg(1)
		idx, err := strconv.Atoi(idxStr)
		if err != nil {
			fmt.Println("Error: checkpoint-index must be an integer")
			os.Exit(1)
		}
		result = fsmonitor.RevertToCheckpoint(id, idx)
	}

	if result == nil {
		fmt.Println("Error: nothing to revert (unknown session or checkpoint)")
		os.Exit(1)
	}
	fmt.Printf("reverted %d files (%d errors)\n", result.RevertedCount, result.ErrorCount)
}

func handleStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Println("Usage: fsmonitor-demo stats <session-id>")
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	id := fs.Arg(0)
	if id == "" {
		fmt.Println("Error: session id is required")
		os.Exit(1)
	}

	stats := fsmonitor.GetStats(id)
	if stats == nil {
		fmt.Printf("Error: session not found: %s\n", id)
		os.Exit(1)
	}
	fmt.Printf("active watches: %d\n", stats.ActiveWatches)
	fmt.Printf("cached bytes:   %d\n", stats.BytesCached)
	fmt.Printf("tools:          %v\n", stats.Tools)
	for kind, count := range stats.ByKind {
		fmt.Printf("  %-10s %d\n", kind, count)
	}
}

func printHelp() {
	fmt.Printf("fsmonitor-demo v%s\n", Version)
	fmt.Println("Filesystem change tracker demo CLI")
	fmt.Println()
	fmt.Println("Usage: fsmonitor-demo <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  watch <path>                  Watch a directory and print changes")
	fmt.Println("  checkpoint <id>                Stamp a checkpoint")
	fmt.Println("  changes <id>                   List all recorded changes")
	fmt.Println("  revert <id> <index>            Revert to a checkpoint")
	fmt.Println("  revert <id> --original          Revert to the pre-session state")
	fmt.Println("  stats <id>                      Show session statistics")
	fmt.Println("  version                         Show version")
	fmt.Println("  help                            Show this help")
}
