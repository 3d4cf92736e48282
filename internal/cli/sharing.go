package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/finvault/internal/models"
)

func parsePerms(args []string, i int) (models.Permissions, error) {
	if len(args) <= i {
		return models.ViewOnly, nil
	}
	return models.ParsePermissions(args[i])
}

func (a *App) Share(ctx context.Context, args []string) error {
	if len(args) < 4 || len(args) > 5 {
		return usage("share <type> <id> <owner> <recipient> [perms]")
	}
	t, err := models.ParseEntityType(args[0], false)
	if err != nil {
		return err
	}
	owner, err := a.resolveUser(ctx, args[2])
	if err != nil {
		return err
	}
	recipient, err := a.resolveUser(ctx, args[3])
	if err != nil {
		return err
	}
	perms, err := parsePerms(args, 4)
	if err != nil {
		return err
	}

	if _, err := a.vault.ShareEntity(ctx, args[1], t, owner.ID, recipient.ID, perms); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Shared %s %s with %s (%s).\n", t, args[1], recipient.Name, perms)
	return nil
}

func (a *App) Revoke(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return usage("revoke <type> <id> <recipient>")
	}
	t, err := models.ParseEntityType(args[0], false)
	if err != nil {
		return err
	}
	recipient, err := a.resolveUser(ctx, args[2])
	if err != nil {
		return err
	}
	if err := a.vault.Revoke(ctx, args[1], t, recipient.ID); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Revoked %s %s from %s.\n", t, args[1], recipient.Name)
	return nil
}

// Shares lists the shares of one entity, or everything shared with a user.
func (a *App) Shares(ctx context.Context, args []string) error {
	var (
		shares []models.DataShare
		err    error
	)
	switch len(args) {
	case 1:
		recipient, rerr := a.resolveUser(ctx, args[0])
		if rerr != nil {
			return rerr
		}
		shares, err = a.vault.GetSharesForRecipient(ctx, recipient.ID)
	case 2:
		t, perr := models.ParseEntityType(args[0], false)
		if perr != nil {
			return perr
		}
		shares, err = a.vault.GetSharesForEntity(ctx, args[1], t)
	default:
		return usage("shares <type> <id> | shares <user>")
	}
	if err != nil {
		return err
	}

	if len(shares) == 0 {
		fmt.Fprintln(a.out, "No shares.")
		return nil
	}
	names := a.userNames(ctx)
	for _, s := range shares {
		fmt.Fprintf(a.out, "%s %s  %s -> %s  %s\n",
			s.EntityType, s.EntityID, names[s.OwnerID], names[s.RecipientID], s.Permissions)
	}
	return nil
}

func (a *App) Default(ctx context.Context, args []string) error {
	if len(args) < 3 || len(args) > 4 {
		return usage("default <owner> <recipient> <type|all> [perms]")
	}
	owner, err := a.resolveUser(ctx, args[0])
	if err != nil {
		return err
	}
	recipient, err := a.resolveUser(ctx, args[1])
	if err != nil {
		return err
	}
	t, err := models.ParseEntityType(args[2], true)
	if err != nil {
		return err
	}
	perms, err := parsePerms(args, 3)
	if err != nil {
		return err
	}

	if _, err := a.vault.SetSharingDefault(ctx, owner.ID, recipient.ID, t, perms); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "New %s of %s will be shared with %s (%s).\n", t, owner.Name, recipient.Name, perms)
	return nil
}

func (a *App) Defaults(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return usage("defaults <owner> [type]")
	}
	owner, err := a.resolveUser(ctx, args[0])
	if err != nil {
		return err
	}
	var t models.EntityType
	if len(args) == 2 {
		if t, err = models.ParseEntityType(args[1], false); err != nil {
			return err
		}
	}

	defaults, err := a.vault.GetSharingDefaults(ctx, owner.ID, t)
	if err != nil {
		return err
	}
	if len(defaults) == 0 {
		fmt.Fprintln(a.out, "No sharing defaults.")
		return nil
	}
	names := a.userNames(ctx)
	for _, d := range defaults {
		fmt.Fprintf(a.out, "%-18s -> %s  %s\n", d.EntityType, names[d.RecipientID], d.Permissions)
	}
	return nil
}

func (a *App) NoDefault(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return usage("nodefault <owner> <recipient> <type|all>")
	}
	owner, err := a.resolveUser(ctx, args[0])
	if err != nil {
		return err
	}
	recipient, err := a.resolveUser(ctx, args[1])
	if err != nil {
		return err
	}
	t, err := models.ParseEntityType(args[2], true)
	if err != nil {
		return err
	}
	if err := a.vault.RemoveSharingDefault(ctx, owner.ID, recipient.ID, t); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Sharing default removed.")
	return nil
}
