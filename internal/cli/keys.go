package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/finvault/internal/common"
)

var errUnlockFailed = errors.New("unlock failed")

func (a *App) Enable(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("enable <user>")
	}
	u, err := a.resolveUser(ctx, args[0])
	if err != nil {
		return err
	}

	pw, err := a.newPassword("New password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	if err := a.vault.EnableEncryption(ctx, u.ID, pw); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Encryption enabled for %s, now unlocked.\n", u.Name)
	return nil
}

func (a *App) Unlock(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("unlock <user>")
	}
	u, err := a.resolveUser(ctx, args[0])
	if err != nil {
		return err
	}

	pw, err := getPassword(a.out, "Password for "+u.Name)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	if !a.vault.Unlock(ctx, u.ID, pw) {
		return errUnlockFailed
	}
	fmt.Fprintf(a.out, "%s unlocked.\n", u.Name)
	return nil
}

func (a *App) Lock(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("lock <user>")
	}
	u, err := a.resolveUser(ctx, args[0])
	if err != nil {
		return err
	}
	a.vault.Lock(ctx, u.ID)
	fmt.Fprintf(a.out, "%s locked.\n", u.Name)
	return nil
}

func (a *App) Passwd(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("passwd <user>")
	}
	u, err := a.resolveUser(ctx, args[0])
	if err != nil {
		return err
	}

	old, err := getPassword(a.out, "Current password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(old)

	pw, err := a.newPassword("New password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	if err := a.vault.ChangePassword(ctx, u.ID, old, pw); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Password changed for %s.\n", u.Name)
	return nil
}
