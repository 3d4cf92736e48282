// Package cli is the finvault administrative console: a line-oriented REPL
// for managing household members, their encryption keys and sharing.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/finvault/internal/common"
	"github.com/dmitrijs2005/finvault/internal/models"
	"github.com/dmitrijs2005/finvault/internal/vault"
)

// getSimpleText and getPassword are swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

var errPasswordMismatch = errors.New("passwords do not match")

type App struct {
	vault  *vault.Vault
	reader *bufio.Reader
	out    io.Writer
}

func NewApp(v *vault.Vault, in io.Reader, out io.Writer) *App {
	return &App{vault: v, reader: bufio.NewReader(in), out: out}
}

// Run serves commands until EOF or exit, then locks every user.
func (a *App) Run(ctx context.Context) {
	defer a.vault.Close()
	fmt.Fprintln(a.out, "finvault console (type 'help' for commands)")
	runREPL(ctx, a, func() string { return a.status(ctx) }, a.reader)
}

// status renders the prompt suffix, e.g. " (alice)".
func (a *App) status(ctx context.Context) string {
	users, err := a.vault.ListUsers(ctx)
	if err != nil {
		return ""
	}
	var open []string
	for _, u := range users {
		if a.vault.IsUnlocked(u.ID) {
			open = append(open, u.Name)
		}
	}
	if len(open) == 0 {
		return ""
	}
	return fmt.Sprintf(" (%s)", strings.Join(open, ","))
}

func usage(format string) error {
	return fmt.Errorf("usage: %s", format)
}

// resolveUser finds a user by id or by case-insensitive name.
func (a *App) resolveUser(ctx context.Context, ref string) (*models.User, error) {
	users, err := a.vault.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].ID == ref || strings.EqualFold(users[i].Name, ref) {
			return &users[i], nil
		}
	}
	return nil, fmt.Errorf("user %q: %w", ref, common.ErrorNotFound)
}

func (a *App) userNames(ctx context.Context) map[string]string {
	names := map[string]string{}
	users, err := a.vault.ListUsers(ctx)
	if err != nil {
		return names
	}
	for _, u := range users {
		names[u.ID] = u.Name
	}
	return names
}

// newPassword asks for a password twice.
func (a *App) newPassword(prompt string) ([]byte, error) {
	pw, err := getPassword(a.out, prompt)
	if err != nil {
		return nil, err
	}
	again, err := getPassword(a.out, "Repeat password")
	if err != nil {
		common.WipeByteArray(pw)
		return nil, err
	}
	defer common.WipeByteArray(again)

	if len(pw) == 0 {
		return nil, errors.New("empty password")
	}
	if string(pw) != string(again) {
		common.WipeByteArray(pw)
		return nil, errPasswordMismatch
	}
	return pw, nil
}
