package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// printlnFn is a test seam for REPL output.
var printlnFn = fmt.Println

// execIface is the command surface of the REPL. App implements it.
type execIface interface {
	Users(ctx context.Context, args []string) error
	AddUser(ctx context.Context, args []string) error
	Status(ctx context.Context, args []string) error
	Enable(ctx context.Context, args []string) error
	Unlock(ctx context.Context, args []string) error
	Lock(ctx context.Context, args []string) error
	Passwd(ctx context.Context, args []string) error
	Share(ctx context.Context, args []string) error
	Revoke(ctx context.Context, args []string) error
	Shares(ctx context.Context, args []string) error
	Default(ctx context.Context, args []string) error
	Defaults(ctx context.Context, args []string) error
	NoDefault(ctx context.Context, args []string) error
}

const helpText = `Commands:
  users                                        list household members
  adduser [name] [color] [default]             add a member
  status                                       encryption and lock state per member
  enable <user>                                enable encryption (sets password)
  unlock <user> | lock <user>                  open or close a member's keys
  passwd <user>                                change a member's password
  share <type> <id> <owner> <recipient> [perms]
  revoke <type> <id> <recipient>
  shares <type> <id> | shares <user>           list shares of an entity or of a recipient
  default <owner> <recipient> <type|all> [perms]
  defaults <owner> [type]
  nodefault <owner> <recipient> <type|all>
  exit | quit
perms is a comma separated subset of view,combine,reports (default view).`

// runREPL reads commands from reader until EOF or exit and dispatches them
// to a. Command errors are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("finvault%s> ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var cmdErr error
		switch cmd {
		case "help":
			printlnFn(helpText)
		case "users":
			cmdErr = a.Users(ctx, args)
		case "adduser":
			cmdErr = a.AddUser(ctx, args)
		case "status":
			cmdErr = a.Status(ctx, args)
		case "enable":
			cmdErr = a.Enable(ctx, args)
		case "unlock":
			cmdErr = a.Unlock(ctx, args)
		case "lock":
			cmdErr = a.Lock(ctx, args)
		case "passwd":
			cmdErr = a.Passwd(ctx, args)
		case "share":
			cmdErr = a.Share(ctx, args)
		case "revoke":
			cmdErr = a.Revoke(ctx, args)
		case "shares":
			cmdErr = a.Shares(ctx, args)
		case "default":
			cmdErr = a.Default(ctx, args)
		case "defaults":
			cmdErr = a.Defaults(ctx, args)
		case "nodefault":
			cmdErr = a.NoDefault(ctx, args)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", cmd)
		}
		if cmdErr != nil {
			printlnFn(color.RedString("Error:"), cmdErr)
		}

		if err != nil {
			return
		}
	}
}
