package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
)

func (a *App) Users(ctx context.Context, args []string) error {
	users, err := a.vault.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		fmt.Fprintln(a.out, "No users.")
		return nil
	}
	for _, u := range users {
		mark := ""
		if u.IsDefault {
			mark = " *"
		}
		fmt.Fprintf(a.out, "%s  %-16s %s%s\n", u.ID, u.Name, u.Color, mark)
	}
	return nil
}

// AddUser takes the name from args or prompts for it.
func (a *App) AddUser(ctx context.Context, args []string) error {
	var name, color string
	isDefault := false

	if len(args) > 0 {
		name = args[0]
	} else {
		var err error
		name, err = getSimpleText(a.reader, "Enter name", a.out)
		if err != nil {
			return err
		}
	}
	if len(args) > 1 {
		color = args[1]
	}
	if len(args) > 2 {
		isDefault = strings.EqualFold(args[2], "default")
	}

	u, err := a.vault.CreateUser(ctx, name, color, isDefault)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added %s (%s)\n", u.Name, u.ID)
	return nil
}

func (a *App) Status(ctx context.Context, args []string) error {
	users, err := a.vault.ListUsers(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		has, err := a.vault.HasKeys(ctx, u.ID)
		if err != nil {
			return err
		}
		state := color.HiBlackString("no encryption")
		switch {
		case has && a.vault.IsUnlocked(u.ID):
			state = color.GreenString("unlocked")
		case has:
			state = color.YellowString("locked")
		}
		fmt.Fprintf(a.out, "%-16s %s\n", u.Name, state)
	}
	return nil
}
