package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	hasOpenDocument() bool
	List(ctx context.Context, args []string) error
	Save(ctx context.Context, args []string) error
	Open(ctx context.Context, args []string) error
	CloseDocument(ctx context.Context, args []string) error
	Highlight(ctx context.Context, args []string) error
	Highlights(ctx context.Context, args []string) error
	Note(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	Position(ctx context.Context, args []string) error
	Sync(ctx context.Context, args []string) error
	Refetch(ctx context.Context, args []string) error
	Download(ctx context.Context, args []string) error
	Token(ctx context.Context, args []string) error
}

// runREPL starts a simple read–eval–print loop for the readkeeper CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command and the rest as its arguments, and dispatches to methods on 'a'.
// Command errors are printed and the loop goes on. The loop exits on scanner
// EOF or when the user types "exit" or "quit".
//
// Prompt & Commands
//
//	Always:
//	  - help                        show available commands
//	  - (l)ist                      list local documents
//	  - save <title> [ref]          register a document with the service
//	  - open <document id>          open a document (refetches when online)
//	  - sync                        push pending highlights now
//	  - token                       enter an access token
//	  - exit | quit                 leave the program
//
//	With an open document:
//	  - hl <page> <x> <y> <w> <h>   draw a highlight (prompts quote and note)
//	  - show                        list highlights
//	  - note <id|short id>          edit a note
//	  - delete <id|short id>        delete a highlight
//	  - pos <index> <total>         report the reading position
//	  - refetch                     replace local highlights with the remote copy
//	  - download                    cache the document content for offline reading
//	  - close                       close the document
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("rk %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			if a.hasOpenDocument() {
				printlnFn("Available commands: hl, show, note, delete, pos, refetch, download, close, sync, (l)ist, token, exit")
			} else {
				printlnFn("Available commands: (l)ist, save, open, sync, token, exit")
			}

		case "l", "list":
			err = a.List(ctx, args)
		case "save":
			err = a.Save(ctx, args)
		case "open":
			err = a.Open(ctx, args)
		case "close":
			err = a.CloseDocument(ctx, args)
		case "hl", "highlight":
			err = a.Highlight(ctx, args)
		case "show":
			err = a.Highlights(ctx, args)
		case "note":
			err = a.Note(ctx, args)
		case "delete":
			err = a.Delete(ctx, args)
		case "pos":
			err = a.Position(ctx, args)
		case "sync":
			err = a.Sync(ctx, args)
		case "refetch":
			err = a.Refetch(ctx, args)
		case "download":
			err = a.Download(ctx, args)
		case "token":
			err = a.Token(ctx, args)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", err)
		}
	}
}
